package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/planwise/internal/model"
)

var ErrEmailTaken = errors.New("email already registered")

type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var lastLogin sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Provider, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, provider, created_at, updated_at, last_login_at`

// Create inserts a user. Emails are stored lowercased and must be unique.
func (s *UserStore) Create(email, name, passwordHash, provider string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, name, password_hash, provider) VALUES (?, ?, ?, ?)`,
		normalizeEmail(email), name, passwordHash, provider,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EnsureProviderUser returns the user for an OAuth identity, creating a
// password-less row on first sight.
func (s *UserStore) EnsureProviderUser(email, name, provider string) (*model.User, error) {
	u, err := s.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	u, err = s.Create(email, name, "", provider)
	if errors.Is(err, ErrEmailTaken) {
		return s.GetByEmail(email)
	}
	return u, err
}

func (s *UserStore) RecordLogin(id int64) error {
	now := s.now().UTC()
	_, err := s.db.Exec(
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
