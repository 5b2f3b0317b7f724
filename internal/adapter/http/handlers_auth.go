package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"movierec/internal/app"
	"movierec/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
)

const stateCookie = "oauth_state"

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterRequest
	if err := parseJSON(w, r, &req); err != nil {
		s.fail(w, r, "Register", err)
		return
	}

	res, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.fail(w, r, "Register", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req app.LoginRequest
	if err := parseJSON(w, r, &req); err != nil {
		s.fail(w, r, "Login", err)
		return
	}

	res, err := s.auth.Login(r.Context(), req)
	if errors.Is(err, app.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid Username or Password")
		return
	}
	if err != nil {
		s.fail(w, r, "Login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.opts.OIDC.Enabled {
		writeError(w, http.StatusNotFound, "sso disabled")
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.opts.OIDC.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.opts.OIDC.Enabled {
		writeError(w, http.StatusNotFound, "sso disabled")
		return
	}
	log := logging.Ctx(r.Context())

	state, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != state.Value {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, MaxAge: -1, Path: "/"})

	token, err := s.opts.OIDC.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Warn().Err(err).Msg("sso code exchange failed")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	verifier := s.opts.OIDC.Provider.Verifier(&oidc.Config{ClientID: s.opts.OIDC.OAuth2Config.ClientID})
	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		log.Warn().Err(err).Msg("sso id token rejected")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err = idToken.Claims(&claims); err != nil {
		s.fail(w, r, "SSOLogin", err)
		return
	}

	res, err := s.auth.LoginWithEmail(r.Context(), claims.Email, claims.Name)
	if errors.Is(err, app.ErrSSOIdentity) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		s.fail(w, r, "SSOLogin", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
