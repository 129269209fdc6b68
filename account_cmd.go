package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	accountEmail string
	accountName  string

	signupLevel     string
	signupNative    string
	signupMode      string
	signupCharacter string

	accountCmd = &cobra.Command{
		Use:   "account",
		Short: "Sign up, log in and out",
		Args:  cobra.NoArgs,
	}

	signupCmd = &cobra.Command{
		Use:     "signup",
		Short:   "Create an account and log in",
		Example: paragraph("lusa account signup --email ana@example.com --native French --level A2"),
		Args:    cobra.NoArgs,
		RunE:    runSignup,
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in to an existing account",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Log out",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			if err := s.Accounts.Logout(); err != nil {
				return err
			}
			fmt.Println("Até logo!")
			return nil
		},
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			acc, err := s.Accounts.Current()
			if errors.Is(err, store.ErrNotLoggedIn) {
				fmt.Println("Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", keyword(acc.Profile.Name), acc.Email)
			return nil
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVarP(&accountEmail, "email", "e", "", "account email address")
	}
	signupCmd.Flags().StringVarP(&accountName, "name", "n", "", "your name (defaults to the email name)")
	signupCmd.Flags().StringVar(&signupLevel, "level", "A1", "your level: A1, A2, B1, B2 or C1")
	signupCmd.Flags().StringVar(&signupNative, "native", string(curriculum.English), "language the tutor explains in")
	signupCmd.Flags().StringVar(&signupMode, "mode", string(curriculum.Mixed), "learning mode: mixed or immersion")
	signupCmd.Flags().StringVar(&signupCharacter, "character", curriculum.DefaultCharacterID, "starting tutor")

	accountCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}

func runSignup(*cobra.Command, []string) error {
	level, err := curriculum.ParseLevel(signupLevel)
	if err != nil {
		return err
	}
	lang, err := curriculum.ParseNativeLanguage(signupNative)
	if err != nil {
		return err
	}
	mode, err := curriculum.ParseLearningMode(signupMode)
	if err != nil {
		return err
	}

	email, err := promptIfEmpty(accountEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	acc, err := s.Accounts.Signup(email, password, accountName)
	if err != nil {
		return err
	}
	if err := acc.Profile.Onboard(level, lang, mode, signupCharacter); err != nil {
		return err
	}
	if err := s.Accounts.UpdateProfile(acc.Email, acc.Profile); err != nil {
		return err
	}

	c := acc.Profile.Character()
	fmt.Printf("Bem-vindo, %s! Your tutor is %s.\n", keyword(acc.Profile.Name), characterStyle(c.Color).Render(c.Name))
	fmt.Println(faint(c.Intro(lang)))
	return nil
}

func runLogin(*cobra.Command, []string) error {
	email, err := promptIfEmpty(accountEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	acc, err := s.Accounts.Login(email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Olá outra vez, %s!\n", keyword(acc.Profile.Name))
	return nil
}

var stdin = bufio.NewReader(os.Stdin)

func promptIfEmpty(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("unable to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo on a terminal and a plain line otherwise.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("unable to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return string(b), nil
}
