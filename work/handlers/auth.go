package handlers

import (
	"errors"
	"net/http"

	"streamview/work/auth"
	"streamview/work/metrics"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account. The response carries the account shape
// but no session; the UI follows up with a login.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Auth.Register(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.storeError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and establishes the session cookie. Bad
// credentials are a 401 with no detail about which half was wrong.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.storeError(w, err)
		return
	}

	token, err := h.Sessions.Issue(user.ID, user.Email)
	if err != nil {
		h.storeError(w, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.Sessions.SetTokenCookie(w, token)
	writeJSON(w, http.StatusOK, user)
}

// Logout clears the session and cached profile cookies. There is no
// server-side session state, so logging out twice is harmless.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
