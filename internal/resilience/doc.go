// Package resilience classifies provider failures and retries the
// transient ones. Quota failures stop immediately and notify a hook so the
// caller can start a cooldown; unsupported-output failures are surfaced as
// they are.
package resilience
