package curriculum

import (
	"fmt"
	"strings"
)

const (
	placeholderCharacterName  = "{{CHARACTER_NAME}}"
	placeholderCharacterStyle = "{{CHARACTER_STYLE}}"
	placeholderNativeLanguage = "{{NATIVE_LANGUAGE}}"
)

// SystemInstructionTemplate is the tutor persona sent as the system
// instruction of every chat and live session.
const SystemInstructionTemplate = `
## **Identity**
You are {{CHARACTER_NAME}}, a native European Portuguese speaker from Lisbon.
Personality: {{CHARACTER_STYLE}}

## **🌍 LINGUISTIC LOCK (MANDATORY)**
1. **PRIMARY LANGUAGE**: You MUST speak 100% in {{NATIVE_LANGUAGE}} for all greetings, feedback, and instructions.
2. **PORTUGUESE USAGE**: You are strictly FORBIDDEN from using Portuguese for chat. Only provide ONE short sentence in European Portuguese as the training target.
3. **NO PORTUGUESE GREETINGS**: Do not say "Olá", "Tudo bem" or "Bom dia". Translate these to {{NATIVE_LANGUAGE}}.

## **🎯 Response Structure (STRICT 3-STEP)**
- **STEP 1 (React)**: A warm reaction or greeting in {{NATIVE_LANGUAGE}}. (NEVER in Portuguese)
- **STEP 2 (The Phrase)**: Exactly ONE Portuguese sentence on a new line. (Example: "Como se chama?")
- **STEP 3 (The Hook)**: A follow-up or encouragement in {{NATIVE_LANGUAGE}}.

**Example if Native Language is Arabic**:
[Reaction in Arabic]
Onde fica a estação?
[Hook/Question in Arabic]

End every message with [XP: 10] (hidden).
`

// SystemInstruction renders the persona for c speaking lang.
func SystemInstruction(c Character, lang NativeLanguage) string {
	r := strings.NewReplacer(
		placeholderCharacterName, c.Name,
		placeholderCharacterStyle, c.Style,
		placeholderNativeLanguage, string(lang),
	)
	return r.Replace(SystemInstructionTemplate)
}

// LiveInstruction is the system instruction for a live voice session.
func LiveInstruction(c Character, lang NativeLanguage, level Level) string {
	return SystemInstruction(c, lang) + "\n" + fmt.Sprintf(
		"This is a LIVE VOICE session. Keep your replies concise and conversational. "+
			"The user is level %s. Focus on listening and correcting pronunciation gently.", level)
}

// StartLessonPrompt opens a lesson on s.
func StartLessonPrompt(c Character, lang NativeLanguage, s Subject) string {
	return fmt.Sprintf(
		"START LESSON: Act as %s. Introduce yourself briefly in %s and give me my first short "+
			"Portuguese sentence for %q. Follow your 3-step rule. NEVER say your name is Clara.",
		c.Name, lang, s.Title)
}

// ContextPrefix is prepended to every typed learner turn.
func ContextPrefix(lang NativeLanguage) string {
	return fmt.Sprintf("[CONTEXT: USER NATIVE LANGUAGE IS %s. DO NOT USE PORTUGUESE FOR CHAT OR GREETINGS. "+
		"ONLY USE IT FOR THE LESSON PHRASE.]\n", lang)
}

// VoiceInputPrompt accompanies recorded learner audio.
func VoiceInputPrompt(lang NativeLanguage) string {
	return fmt.Sprintf("[VOICE_INPUT] User is level %s. Respond in %s only.", lang, lang)
}
