// Package audio schedules PCM playback on a shared output clock and
// captures microphone audio. Playback goes through oto/v3.
package audio
