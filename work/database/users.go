package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"streamview/work/types"
)

// Sentinel errors surfaced by the credential store. Handlers map these to
// HTTP statuses; everything else is treated as an internal error.
var (
	ErrUserExists      = errors.New("email already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileActive   = errors.New("profile is active")
)

// CreateUser inserts a new account row and returns it with the generated id.
// A duplicate email returns ErrUserExists.
func (db *DB) CreateUser(email, passwordHash string) (*types.User, error) {
	result, err := db.Exec(`
		INSERT INTO users (email, password_hash)
		VALUES (?, ?)`,
		email, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return db.GetUserByID(id)
}

// GetUserByEmail returns the account with the given email, or
// ErrUserNotFound when no such account exists.
func (db *DB) GetUserByEmail(email string) (*types.User, error) {
	user := &types.User{}
	err := db.QueryRow(`
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?`,
		email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID returns the account with the given id, or ErrUserNotFound.
func (db *DB) GetUserByID(id int64) (*types.User, error) {
	user := &types.User{}
	err := db.QueryRow(`
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = ?`,
		id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
