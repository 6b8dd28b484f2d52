package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"streamview/work/database"
	"streamview/work/logger"
	"streamview/work/types"
)

// Errors surfaced by registration and login. ErrInvalidCredentials covers
// both unknown email and wrong password so responses never reveal which
// accounts exist.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Service handles account registration and credential verification against
// the credential store.
type Service struct {
	db  *database.DB
	log *logger.Logger
}

// NewService creates an auth service backed by the given store.
func NewService(db *database.DB, log *logger.Logger) *Service {
	return &Service{
		db:  db,
		log: log,
	}
}

// Register validates the email and password, hashes the password with
// bcrypt and creates the account. A duplicate email surfaces as
// database.ErrUserExists.
func (s *Service) Register(email, password string) (*types.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.db.CreateUser(email, string(hash))
	if err != nil {
		return nil, err
	}

	s.log.Info("{auth - Register} registered account %d", user.ID)
	return user, nil
}

// Login verifies the email and password pair. Unknown email and wrong
// password both return ErrInvalidCredentials.
func (s *Service) Login(email, password string) (*types.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Debug("{auth - Login} password mismatch for account %d", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// validEmail performs a minimal shape check. The store's unique index is
// the real gatekeeper; this only rejects obviously broken input.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\n")
}
