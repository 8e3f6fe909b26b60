package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 6

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike, so login failures don't reveal which was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserExists is returned when registering an email that is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrPasswordTooShort is returned for passwords under MinPasswordLen.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)

	// ErrPasswordMismatch is returned when a confirmation doesn't match.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// User represents a local launcher user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterUser creates a new user with a bcrypt-hashed password.
func (db *DB) RegisterUser(email, password string) (*User, error) {
	if len(password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}

	existing, err := db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.New().String()
	now := time.Now()

	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, email, string(hash), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByEmail retrieves a user by their email. Returns nil if not found.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by email.
func (db *DB) ListUsers() ([]*User, error) {
	rows, err := db.Query(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM users ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered users. The UI uses this to
// decide whether first-run registration is required.
func (db *DB) CountUsers() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Authenticate verifies an email/password pair and returns the user.
func (db *DB) Authenticate(email, password string) (*User, error) {
	u, err := db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces a user's password after verifying the current one.
func (db *DB) ChangePassword(email, current, newPassword, confirm string) error {
	if _, err := db.Authenticate(email, current); err != nil {
		return err
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if len(newPassword) < MinPasswordLen {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = db.Exec(`
		UPDATE users SET password_hash = ?, updated_at = ?
		WHERE email = ?
	`, string(hash), time.Now(), email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteUser deletes a user by email.
func (db *DB) DeleteUser(email string) error {
	res, err := db.Exec(`DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no user with email %s", email)
	}
	return nil
}
