package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/lusa-tutor/lusa/internal/profile"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmptyPassword      = errors.New("password must not be empty")
)

// Account is a stored learner account.
type Account struct {
	Email        string
	PasswordHash string
	Profile      *profile.Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountRepository manages accounts and the logged-in session.
type AccountRepository struct {
	queue *Queue
	cost  int
	now   func() time.Time
}

// NewAccountRepository creates a repository using bcrypt's default cost.
func NewAccountRepository(queue *Queue) *AccountRepository {
	return &AccountRepository{queue: queue, cost: bcrypt.DefaultCost, now: time.Now}
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Signup creates an account with a fresh profile and logs it in.
func (r *AccountRepository) Signup(email, password, name string) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	p := profile.New(strings.TrimSpace(name))
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	now := r.now().UTC()
	acc := &Account{Email: email, PasswordHash: string(hash), Profile: p, CreatedAt: now, UpdatedAt: now}

	_, err = r.queue.Execute(func(db *sql.DB) (any, error) {
		tx, err := db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback() //nolint:errcheck

		var exists int
		err = tx.QueryRow(`SELECT COUNT(*) FROM accounts WHERE email = ?`, email).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			return nil, ErrAccountExists
		}

		if _, err := tx.Exec(`
			INSERT INTO accounts (email, password_hash, profile, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, email, acc.PasswordHash, string(data), now, now); err != nil {
			return nil, err
		}
		if err := setSession(tx, email, now); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Login checks the password and records the session.
func (r *AccountRepository) Login(email, password string) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	acc, err := r.Get(email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := r.now().UTC()
	_, err = r.queue.Execute(func(db *sql.DB) (any, error) {
		return nil, setSession(db, email, now)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setSession(e execer, email string, at time.Time) error {
	_, err := e.Exec(`
		INSERT INTO session (id, email, logged_in_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			logged_in_at = excluded.logged_in_at
	`, email, at)
	return err
}

// Logout forgets the session. Logging out twice is not an error.
func (r *AccountRepository) Logout() error {
	_, err := r.queue.Execute(func(db *sql.DB) (any, error) {
		_, err := db.Exec(`DELETE FROM session WHERE id = 1`)
		return nil, err
	})
	return err
}

// Current returns the logged-in account.
func (r *AccountRepository) Current() (*Account, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (any, error) {
		var email string
		err := db.QueryRow(`SELECT email FROM session WHERE id = 1`).Scan(&email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotLoggedIn
		}
		return email, err
	})
	if err != nil {
		return nil, err
	}

	acc, err := r.Get(result.(string))
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrNotLoggedIn
	}
	return acc, err
}

// Get loads an account by email.
func (r *AccountRepository) Get(email string) (*Account, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (any, error) {
		row := db.QueryRow(`
			SELECT email, password_hash, profile, created_at, updated_at
			FROM accounts WHERE email = ?
		`, email)

		var acc Account
		var data string
		err := row.Scan(&acc.Email, &acc.PasswordHash, &data, &acc.CreatedAt, &acc.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		if err != nil {
			return nil, err
		}

		acc.Profile = &profile.Profile{}
		if err := json.Unmarshal([]byte(data), acc.Profile); err != nil {
			return nil, fmt.Errorf("decode profile of %s: %w", email, err)
		}
		return &acc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Account), nil
}

// UpdateProfile replaces the stored profile of email.
func (r *AccountRepository) UpdateProfile(email string, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	now := r.now().UTC()

	_, err = r.queue.Execute(func(db *sql.DB) (any, error) {
		res, err := db.Exec(`UPDATE accounts SET profile = ?, updated_at = ? WHERE email = ?`, string(data), now, email)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrAccountNotFound
		}
		return nil, nil
	})
	return err
}

// Count returns the number of accounts.
func (r *AccountRepository) Count() (int, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (any, error) {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}
