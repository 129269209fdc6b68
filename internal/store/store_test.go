package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"

	_ "modernc.org/sqlite"
)

var dbCounter atomic.Int64

func newTestStore(t testing.TB) *Store {
	t.Helper()
	name := fmt.Sprintf("file:lusa_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := sql.Open("sqlite", name)
	require.NoError(t, err)

	s, err := New(db, NewQueueForTest(db))
	require.NoError(t, err)
	s.Accounts.cost = bcrypt.MinCost
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSignup_CreatesDefaultProfileAndLogsIn(t *testing.T) {
	s := newTestStore(t)

	acc, err := s.Accounts.Signup(" Ana@Example.com ", "segredo", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", acc.Email)
	assert.NotEqual(t, "segredo", acc.PasswordHash)
	assert.Equal(t, "Ana", acc.Profile.Name)
	assert.Equal(t, curriculum.A1, acc.Profile.Level)

	cur, err := s.Accounts.Current()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", cur.Email)
	assert.Equal(t, "a1_intro", cur.Profile.Progress.CurrentSubjectID)
	assert.Equal(t, []string{"sofia"}, cur.Profile.UnlockedCharacters)
}

func TestSignup_Duplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Accounts.Signup("ana@example.com", "a", "Ana")
	require.NoError(t, err)
	_, err = s.Accounts.Signup("ANA@example.com", "b", "Outra")
	assert.ErrorIs(t, err, ErrAccountExists)

	n, err := s.Accounts.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSignup_Validation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Accounts.Signup("not-an-email", "pw", "X")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = s.Accounts.Signup("x@example.com", "", "X")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	acc, err := s.Accounts.Signup("joana@example.com", "pw", "  ")
	require.NoError(t, err)
	assert.Equal(t, "joana", acc.Profile.Name)
}

func TestLogin(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Accounts.Signup("ana@example.com", "segredo", "Ana")
	require.NoError(t, err)
	require.NoError(t, s.Accounts.Logout())

	_, err = s.Accounts.Login("ana@example.com", "errado")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Accounts.Login("ninguem@example.com", "segredo")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Accounts.Current()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	acc, err := s.Accounts.Login("ANA@example.com", "segredo")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", acc.Email)

	cur, err := s.Accounts.Current()
	require.NoError(t, err)
	assert.Equal(t, acc.Email, cur.Email)
}

func TestLogout_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Accounts.Logout())
	require.NoError(t, s.Accounts.Logout())
}

func TestUpdateProfile(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Accounts.Signup("ana@example.com", "segredo", "Ana")
	require.NoError(t, err)

	p := acc.Profile
	p.AddXP(30)
	_, err = p.CompleteStep("a1_intro", 5)
	require.NoError(t, err)
	require.NoError(t, p.SelectCharacter("miguel"))
	require.NoError(t, s.Accounts.UpdateProfile(acc.Email, p))

	got, err := s.Accounts.Get(acc.Email)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Profile.XP)
	assert.Equal(t, "a1_greetings", got.Profile.Progress.CurrentSubjectID)
	assert.Equal(t, []string{"a1_intro"}, got.Profile.Progress.CompletedSubjects)
	assert.Equal(t, "miguel", got.Profile.SelectedCharacter)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	err = s.Accounts.UpdateProfile("ghost@example.com", p)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lusa.db")
	s, err := Open(path)
	require.NoError(t, err)
	s.Accounts.cost = bcrypt.MinCost

	_, err = s.Accounts.Signup("ana@example.com", "pw", "Ana")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	cur, err := reopened.Accounts.Current()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", cur.Email)
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	_, err := s.queue.Execute(func(db *sql.DB) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("database is locked")
		}
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = s.queue.Execute(func(db *sql.DB) (any, error) {
		calls++
		return nil, ErrAccountExists
	})
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.Equal(t, 1, calls, "final errors are not retried")
}

// Profiles survive a store round trip unchanged.
func TestProfileRoundTripProperty(t *testing.T) {
	s := newTestStore(t)
	acc, err := s.Accounts.Signup("prop@example.com", "pw", "Prop")
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		p := acc.Profile
		p.XP = rapid.IntRange(0, 1_000_000).Draw(rt, "xp")
		p.Streak = rapid.IntRange(0, 365).Draw(rt, "streak")
		p.SetLevel(rapid.SampledFrom(curriculum.Levels).Draw(rt, "level"))
		p.SetNativeLanguage(rapid.SampledFrom(curriculum.NativeLanguages).Draw(rt, "lang"))
		require.NoError(rt, p.SelectCharacter(rapid.SampledFrom(curriculum.CharacterIDs).Draw(rt, "character")))
		p.Progress.CurrentStepIndex = rapid.IntRange(0, curriculum.LastStep).Draw(rt, "step")
		p.SetInterests(rapid.SliceOfN(rapid.StringMatching(`[a-zà-ú ]{1,12}`), 0, 5).Draw(rt, "interests"))

		require.NoError(rt, s.Accounts.UpdateProfile(acc.Email, p))
		got, err := s.Accounts.Get(acc.Email)
		require.NoError(rt, err)

		assert.Equal(rt, p.XP, got.Profile.XP)
		assert.Equal(rt, p.Streak, got.Profile.Streak)
		assert.Equal(rt, p.Level, got.Profile.Level)
		assert.Equal(rt, p.NativeLanguage, got.Profile.NativeLanguage)
		assert.Equal(rt, p.SelectedCharacter, got.Profile.SelectedCharacter)
		assert.Equal(rt, p.Progress, got.Profile.Progress)
		assert.Equal(rt, strings.Join(p.Interests, "|"), strings.Join(got.Profile.Interests, "|"))
	})
}
