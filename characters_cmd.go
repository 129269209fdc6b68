package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

var charactersCmd = &cobra.Command{
	Use:     "characters",
	Aliases: []string{"tutors"},
	Short:   "Meet the tutors",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		lang := curriculum.English
		var unlocked []string
		if s, acc, err := currentAccount(); err == nil {
			lang = acc.Profile.NativeLanguage
			unlocked = acc.Profile.UnlockedCharacters
			_ = s.Close()
		}

		for _, id := range curriculum.CharacterIDs {
			locked := unlocked != nil && !slices.Contains(unlocked, id)
			fmt.Println(renderCharacter(curriculum.Characters[id], lang, locked))
		}
		return nil
	},
}

func renderCharacter(c curriculum.Character, lang curriculum.NativeLanguage, locked bool) string {
	var b strings.Builder
	title := characterStyle(c.Color).Render(c.Name) + "  " + faint(c.Role+" · voice "+c.Voice+" · "+c.ID)
	if locked {
		title += "  " + warning("locked")
	}
	b.WriteString(title + "\n")
	b.WriteString(indent(wordwrap.String(c.Description, 74), "  ") + "\n")
	b.WriteString(indent(wordwrap.String(fmt.Sprintf("%q", c.Intro(lang)), 74), "  ") + "\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
