package handlers

import (
	"context"
	"errors"
	"net/http"

	domainauth "github.com/zoumson/OpenFreeAI/internal/domain/auth"
)

// Authenticator verifies credentials; *domainauth.Service satisfies it.
type Authenticator interface {
	Login(ctx context.Context, input domainauth.LoginInput) (*domainauth.Result, error)
}

// AuthHandler handles POST /auth/login.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginResponse carries the signed token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

// Login handles POST /auth/login.
//
// Response codes:
//   - 200 OK: login successful
//   - 400 Bad Request: invalid JSON or missing fields
//   - 401 Unauthorized: invalid credentials
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domainauth.LoginInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateLoginRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		Role:        result.Role,
	})
}

func validateLoginRequest(req domainauth.LoginInput) error {
	if req.Username == "" {
		return errors.New("username is required")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	return nil
}
