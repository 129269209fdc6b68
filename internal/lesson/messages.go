package lesson

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// VoiceMessageText stands in for a recorded learner turn.
const VoiceMessageText = "🎤 [Voz enviada]"

// EmptyReply replaces an empty model reply.
const EmptyReply = "I didn't catch that."

// Message is one entry of the lesson transcript.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time
	Character string
	XPEarned  int
}

var (
	xpRe            = regexp.MustCompile(`\[XP: (\d+)\]`)
	encouragementRe = regexp.MustCompile(`parabéns|excelente|perfeito|muito bem|bom trabalho`)
)

// ParseXP extracts the first XP marker and removes every marker from text.
func ParseXP(raw string) (string, int) {
	m := xpRe.FindStringSubmatch(raw)
	if m == nil {
		return raw, 0
	}
	xp, _ := strconv.Atoi(m[1])
	return strings.TrimSpace(xpRe.ReplaceAllString(raw, "")), xp
}

// IsEncouragement reports whether text praises the learner.
func IsEncouragement(text string) bool {
	return encouragementRe.MatchString(strings.ToLower(text))
}

// PortuguesePhrase returns the target phrase of a three-part reply: the
// middle line when there are three or more lines, otherwise the last line.
func PortuguesePhrase(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	switch {
	case len(lines) == 0:
		return ""
	case len(lines) < 3:
		return lines[len(lines)-1]
	default:
		return lines[1]
	}
}
