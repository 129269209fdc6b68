// Package cache keeps synthesized speech so repeated phrases do not spend
// TTS quota. It has an in-memory LRU tier and an optional zstd-compressed
// disk tier that survives restarts.
package cache
