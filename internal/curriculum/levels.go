package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a CEFR level with its Portuguese label.
type Level string

// Course levels.
const (
	A1 Level = "A1 (Iniciante)"
	A2 Level = "A2 (Elementar)"
	B1 Level = "B1 (Intermédio)"
	B2 Level = "B2 (Intermédio Alto)"
	C1 Level = "C1 (Avançado)"
)

// Levels lists the levels in order.
var Levels = []Level{A1, A2, B1, B2, C1}

// Code returns the short form, e.g. "A1".
func (l Level) Code() string {
	code, _, _ := strings.Cut(string(l), " ")
	return code
}

// ParseLevel accepts either the short code or the full label.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for _, l := range Levels {
		if strings.EqualFold(s, l.Code()) || s == string(l) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown level %q (want one of A1, A2, B1, B2, C1)", s)
}

// NativeLanguage is a language the tutor explains things in.
type NativeLanguage string

// Supported native languages.
const (
	English NativeLanguage = "English"
	Arabic  NativeLanguage = "Arabic"
	French  NativeLanguage = "French"
	Spanish NativeLanguage = "Spanish"
)

// NativeLanguages lists the supported native languages.
var NativeLanguages = []NativeLanguage{English, Arabic, French, Spanish}

// ParseNativeLanguage matches a language name case-insensitively.
func ParseNativeLanguage(s string) (NativeLanguage, error) {
	for _, l := range NativeLanguages {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported native language %q", s)
}

// LearningMode decides how much Portuguese surrounds the target phrase.
type LearningMode string

// Learning modes.
const (
	Mixed     LearningMode = "mixed"
	Immersion LearningMode = "immersion"
)

// ErrUnknownMode is returned by ParseLearningMode.
var ErrUnknownMode = errors.New("learning mode must be mixed or immersion")

// ParseLearningMode parses "mixed" or "immersion".
func ParseLearningMode(s string) (LearningMode, error) {
	switch LearningMode(strings.ToLower(strings.TrimSpace(s))) {
	case Mixed:
		return Mixed, nil
	case Immersion:
		return Immersion, nil
	}
	return "", ErrUnknownMode
}
