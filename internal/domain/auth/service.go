// Package auth authenticates the built-in accounts and issues their tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgauth "github.com/zoumson/OpenFreeAI/pkg/auth"
)

// Roles carried in issued tokens.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Account is one login. Only the bcrypt hash of the password is kept.
type Account struct {
	Username     string
	Role         string
	PasswordHash string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is returned after a successful Login.
type Result struct {
	Token    string
	Username string
	Role     string
}

// Service verifies credentials against a fixed account set.
type Service struct {
	accounts map[string]Account
	issuer   *pkgauth.Issuer
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(issuer *pkgauth.Issuer, logger *slog.Logger, accounts ...Account) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byName[a.Username] = a
	}
	return &Service{accounts: byName, issuer: issuer, logger: logger}
}

// BuiltinAccounts hashes the admin and user passwords. An empty password
// leaves that account disabled.
func BuiltinAccounts(adminPassword, userPassword string) ([]Account, error) {
	var out []Account
	for _, a := range []struct{ name, role, password string }{
		{"admin", RoleAdmin, adminPassword},
		{"user", RoleUser, userPassword},
	} {
		if a.password == "" {
			continue
		}
		hash, err := pkgauth.HashPassword(a.password)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.name, err)
		}
		out = append(out, Account{Username: a.name, Role: a.role, PasswordHash: hash})
	}
	return out, nil
}

// Enabled reports how many accounts can log in.
func (s *Service) Enabled() int { return len(s.accounts) }

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	acct, ok := s.accounts[input.Username]
	if !ok {
		s.logFailure(ctx, input.Username, "unknown_user")
		return nil, ErrInvalidCredentials
	}
	if !pkgauth.VerifyPassword(acct.PasswordHash, input.Password) {
		s.logFailure(ctx, input.Username, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(acct.Username, acct.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	s.logger.InfoContext(ctx, "login", "username", acct.Username, "role", acct.Role)
	return &Result{Token: token, Username: acct.Username, Role: acct.Role}, nil
}

func (s *Service) logFailure(ctx context.Context, username, reason string) {
	s.logger.WarnContext(ctx, "login failed", "username", username, "reason", reason)
}
