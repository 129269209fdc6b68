package main

import (
	"fmt"
	"strings"

	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/profile"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the course with your progress",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		s, acc, err := currentAccount()
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		fmt.Print(renderPath(acc.Profile))
		return nil
	},
}

const (
	markDone    = "✓"
	markCurrent = "▶"
	markTodo    = "·"
)

// renderPath lays out one row per subject with aligned columns. Titles are
// padded by display width since they carry accents.
func renderPath(p *profile.Profile) string {
	titleWidth := 0
	for _, s := range curriculum.Subjects {
		titleWidth = max(titleWidth, runewidth.StringWidth(s.Title))
	}

	var b strings.Builder
	level := curriculum.Level("")
	for _, s := range curriculum.Subjects {
		if s.Level != level {
			level = s.Level
			fmt.Fprintf(&b, "\n%s\n", heading(string(level)))
		}

		mark := markTodo
		switch {
		case p.IsCompleted(s.ID):
			mark = keyword(markDone)
		case s.ID == p.Progress.CurrentSubjectID:
			mark = keyword(markCurrent)
		}

		fmt.Fprintf(&b, "  %s %s  %s\n", mark, runewidth.FillRight(s.Title, titleWidth), faint(s.ID))

		if s.ID == p.Progress.CurrentSubjectID {
			var steps []string
			for i, step := range s.Steps {
				label := step.Label()
				if i == p.Progress.CurrentStepIndex {
					label = keyword(label)
				} else if i < p.Progress.CurrentStepIndex {
					label = faint(label)
				}
				steps = append(steps, label)
			}
			fmt.Fprintf(&b, "      %s\n", strings.Join(steps, " → "))
		}
	}
	return b.String()
}
