package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streamview/work/middleware"
	"streamview/work/playback"
	"streamview/work/types"
)

// StartPlayback creates a playback session. The stream id is resolved to a
// playable URL first, then the session begins loading in the background;
// the response is the initial session snapshot, which the UI polls.
func (h *Handlers) StartPlayback(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req struct {
		StreamID int    `json:"streamId"`
		Type     string `json:"type"`
		URL      string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	streamURL := req.URL
	if streamURL == "" {
		if req.Type == "" {
			req.Type = string(types.StreamLive)
		}
		if !types.ValidStreamKind(req.Type) {
			writeError(w, http.StatusBadRequest, "type must be live, movie or series")
			return
		}
		creds, _, err := h.Gateway.CredentialsFor(identity.UserID)
		if err != nil {
			h.storeError(w, err)
			return
		}
		streamURL, err = h.Gateway.Resolve(r.Context(), creds, req.StreamID, types.StreamKind(req.Type))
		if err != nil {
			h.storeError(w, err)
			return
		}
	}

	session := h.Playback.Start(identity.UserID, streamURL)
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

// GetPlayback returns the current session snapshot.
func (h *Handlers) GetPlayback(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	session, err := h.Playback.Get(mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "playback session not found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// SetPlaybackQuality selects a quality level for the session. The body may
// be {"quality": n} for a variant index or {"quality": -1} for automatic.
func (h *Handlers) SetPlaybackQuality(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	session, err := h.Playback.Get(mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "playback session not found")
		return
	}

	var req struct {
		Quality *int `json:"quality"`
	}
	if err := decodeBody(r, &req); err != nil || req.Quality == nil {
		writeError(w, http.StatusBadRequest, "quality is required")
		return
	}

	if err := session.SetQuality(*req.Quality); err != nil {
		if errors.Is(err, playback.ErrBadQuality) {
			writeError(w, http.StatusBadRequest,
				"quality must be -1 or an index below "+strconv.Itoa(len(session.Snapshot().Qualities)))
			return
		}
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// ReportPlaybackEvent applies a client-observed transition or media error to
// the session state machine.
func (h *Handlers) ReportPlaybackEvent(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	session, err := h.Playback.Get(mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "playback session not found")
		return
	}

	var req struct {
		Event  string `json:"event"`
		Detail string `json:"detail"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Event {
	case "playing":
		session.ReportState(playback.StatePlaying)
	case "buffering":
		session.ReportState(playback.StateBuffering)
	case "ended":
		session.ReportState(playback.StateEnded)
	case "mediaError":
		session.RecoverMediaError(req.Detail)
	default:
		writeError(w, http.StatusBadRequest, "unknown event")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// StopPlayback tears the session down unconditionally.
func (h *Handlers) StopPlayback(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	if err := h.Playback.Close(mux.Vars(r)["id"], identity.UserID); err != nil {
		writeError(w, http.StatusNotFound, "playback session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
