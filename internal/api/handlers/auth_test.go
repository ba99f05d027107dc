package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	domainauth "github.com/zoumson/OpenFreeAI/internal/domain/auth"
)

type fakeAuthenticator struct {
	err error
}

func (f *fakeAuthenticator) Login(_ context.Context, in domainauth.LoginInput) (*domainauth.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domainauth.Result{Token: "tok", Username: in.Username, Role: domainauth.RoleUser}, nil
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"ok", `{"username":"user","password":"pw"}`, nil, http.StatusOK},
		{"missing password", `{"username":"user"}`, nil, http.StatusBadRequest},
		{"missing username", `{"password":"pw"}`, nil, http.StatusBadRequest},
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"bad credentials", `{"username":"user","password":"x"}`, domainauth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"failure", `{"username":"user","password":"x"}`, errors.New("sign"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := postJSON(NewAuthHandler(&fakeAuthenticator{err: tc.err}).Login, "/auth/login", tc.body)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
		if tc.want == http.StatusOK && !strings.Contains(w.Body.String(), `"access_token":"tok"`) {
			t.Errorf("%s: body = %s", tc.name, w.Body.String())
		}
	}
}
