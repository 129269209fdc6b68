// Package curriculum holds the fixed course content: levels, subjects and
// their steps, tutor characters and the prompt templates sent to the model.
package curriculum
