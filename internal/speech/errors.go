package speech

import "errors"

// Common speech errors
var (
	// ErrCooldown indicates synthesis is suppressed after a quota failure.
	ErrCooldown = errors.New("voice is on cooldown")

	// ErrNoGenerator indicates the synthesizer was built without a provider.
	ErrNoGenerator = errors.New("no speech generator configured")
)
