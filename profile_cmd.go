package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/profile"
	"github.com/lusa-tutor/lusa/internal/store"
	"github.com/spf13/cobra"
)

var (
	setLevel     string
	setNative    string
	setMode      string
	setCharacter string
	setSubject   string
	setInterests []string

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Show or change your learner profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileShow,
	}

	profileShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show your learner profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileShow,
	}

	profileSetCmd = &cobra.Command{
		Use:     "set",
		Short:   "Change profile settings",
		Example: paragraph("lusa profile set --level B1 --character miguel\nlusa profile set --interests futebol,música"),
		Args:    cobra.NoArgs,
		RunE:    runProfileSet,
	}
)

func init() {
	profileSetCmd.Flags().StringVar(&setLevel, "level", "", "level: A1, A2, B1, B2 or C1")
	profileSetCmd.Flags().StringVar(&setNative, "native", "", "language the tutor explains in")
	profileSetCmd.Flags().StringVar(&setMode, "mode", "", "learning mode: mixed or immersion")
	profileSetCmd.Flags().StringVar(&setCharacter, "character", "", "tutor to learn with")
	profileSetCmd.Flags().StringVar(&setSubject, "subject", "", "subject to continue with (id or name)")
	profileSetCmd.Flags().StringSliceVar(&setInterests, "interests", nil, "comma-separated interests")

	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
}

func currentAccount() (*store.Store, *store.Account, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	acc, err := s.Accounts.Current()
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, acc, nil
}

func runProfileShow(*cobra.Command, []string) error {
	s, acc, err := currentAccount()
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	fmt.Print(renderProfile(acc))
	return nil
}

func renderProfile(acc *store.Account) string {
	p := acc.Profile
	c := p.Character()
	subject := p.CurrentSubject()

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", heading(p.Name), faint(acc.Email))
	fmt.Fprintf(&b, "  Level      %s\n", p.Level)
	fmt.Fprintf(&b, "  Native     %s\n", p.NativeLanguage)
	fmt.Fprintf(&b, "  Mode       %s\n", p.LearningMode)
	fmt.Fprintf(&b, "  Tutor      %s\n", characterStyle(c.Color).Render(c.Name))
	fmt.Fprintf(&b, "  XP         %s\n", keyword(humanize.Comma(int64(p.XP))))
	fmt.Fprintf(&b, "  Streak     %d\n", p.Streak)
	fmt.Fprintf(&b, "  Subject    %s (%s), step %d/%d\n", subject.Title, subject.ID, p.Progress.CurrentStepIndex+1, len(subject.Steps))
	fmt.Fprintf(&b, "  Completed  %d/%d subjects\n", len(p.Progress.CompletedSubjects), len(curriculum.Subjects))
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "  Interests  %s\n", strings.Join(p.Interests, ", "))
	}
	fmt.Fprintf(&b, "  Member     since %s\n", humanize.Time(acc.CreatedAt))
	return b.String()
}

func runProfileSet(cmd *cobra.Command, _ []string) error {
	s, acc, err := currentAccount()
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	if err := applyProfileFlags(cmd, acc.Profile); err != nil {
		return err
	}
	if err := s.Accounts.UpdateProfile(acc.Email, acc.Profile); err != nil {
		return err
	}
	fmt.Print(renderProfile(acc))
	return nil
}

func applyProfileFlags(cmd *cobra.Command, p *profile.Profile) error {
	flags := cmd.Flags()
	if flags.Changed("level") {
		l, err := curriculum.ParseLevel(setLevel)
		if err != nil {
			return err
		}
		p.SetLevel(l)
	}
	if flags.Changed("native") {
		l, err := curriculum.ParseNativeLanguage(setNative)
		if err != nil {
			return err
		}
		p.SetNativeLanguage(l)
	}
	if flags.Changed("mode") {
		m, err := curriculum.ParseLearningMode(setMode)
		if err != nil {
			return err
		}
		p.SetLearningMode(m)
	}
	if flags.Changed("character") {
		if err := p.SelectCharacter(strings.ToLower(strings.TrimSpace(setCharacter))); err != nil {
			return fmt.Errorf("%w: %q", err, setCharacter)
		}
	}
	if flags.Changed("subject") {
		subject, err := curriculum.FindSubject(setSubject)
		if err != nil {
			return fmt.Errorf("%w: %q", err, setSubject)
		}
		if err := p.SelectSubject(subject.ID); err != nil {
			return err
		}
	}
	if flags.Changed("interests") {
		p.SetInterests(setInterests)
	}
	return nil
}
