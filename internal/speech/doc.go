// Package speech turns tutor replies into voice. It cleans the text,
// spaces requests to the rate-limited TTS endpoint, and holds a cooldown
// window after the provider reports quota exhaustion.
package speech
