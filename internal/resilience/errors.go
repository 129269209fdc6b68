package resilience

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Common resilience errors.
var (
	// ErrQuotaExhausted indicates the provider rejected the call for quota reasons.
	ErrQuotaExhausted = errors.New("QUOTA_EXHAUSTED")

	// ErrAudioGenFailed indicates the provider could not produce audio for the input.
	ErrAudioGenFailed = errors.New("AUDIO_GEN_FAILED")
)

// Kind identifies how a remote failure should be handled.
type Kind string

const (
	KindOther          Kind = "OTHER"
	KindQuotaExhausted Kind = "QUOTA_EXHAUSTED"
	KindAudioGenFailed Kind = "AUDIO_GEN_FAILED"
	KindTransient      Kind = "SERVER_UNAVAILABLE"
)

// Error is a classified remote failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrQuotaExhausted:
		return e.Kind == KindQuotaExhausted
	case ErrAudioGenFailed:
		return e.Kind == KindAudioGenFailed
	}
	return false
}

// IsQuota reports whether err is a quota failure.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) || Classify(err) == KindQuotaExhausted
}

// IsAudioGen reports whether err is an unsupported-output failure.
func IsAudioGen(err error) bool {
	return errors.Is(err, ErrAudioGenFailed) || Classify(err) == KindAudioGenFailed
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}

var (
	quotaMarkers    = []string{"limit: 0", "quota exceeded", "exhausted"}
	audioGenMarkers = []string{"non-audio response", "audioout"}
	transientCodes  = []string{"500", "503"}
)

// Classify maps a remote error onto a Kind. Quota wins over the other
// kinds because it also has to start the voice cooldown.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	code := statusCode(err)
	msg := strings.ToLower(err.Error())

	if code == 429 || containsAny(msg, quotaMarkers) {
		return KindQuotaExhausted
	}
	if containsAny(msg, audioGenMarkers) {
		return KindAudioGenFailed
	}
	if code == 500 || code == 503 || containsAny(msg, transientCodes) {
		return KindTransient
	}
	return KindOther
}

// statusCode extracts an HTTP status from provider errors.
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return 0
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
