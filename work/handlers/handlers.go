package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamview/work/auth"
	"streamview/work/cache"
	"streamview/work/config"
	"streamview/work/database"
	"streamview/work/epg"
	"streamview/work/logger"
	"streamview/work/playback"
	"streamview/work/session"
	"streamview/work/upstream"
)

// Handlers bundles every dependency the HTTP layer needs. One instance is
// built at startup and shared across all routes.
type Handlers struct {
	Cfg      *config.Config
	Log      *logger.Logger
	DB       *database.DB
	Sessions *session.Manager
	Auth     *auth.Service
	Gateway  *upstream.Gateway
	Warmer   *upstream.Warmer
	EPG      *epg.Service
	Playback *playback.Manager
	Cache    *cache.Cache
}

// writeJSON serializes a success payload.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError serializes an error body in the API's uniform shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// storeError maps credential store and gateway sentinels to API statuses.
// Anything unrecognized is a 500 with a generic body; the real error is
// logged server-side only.
func (h *Handlers) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, database.ErrProfileActive):
		writeError(w, http.StatusConflict, "cannot delete the active profile")
	case errors.Is(err, database.ErrUserExists):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, upstream.ErrNoCredentials):
		writeError(w, http.StatusBadRequest, "no IPTV profile is active and no fallback is configured")
	case errors.Is(err, upstream.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "unsupported action")
	default:
		h.Log.Error("{handlers - storeError} internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody parses a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
