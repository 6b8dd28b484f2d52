package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"streamview/work/filter"
	"streamview/work/middleware"
	"streamview/work/types"
)

// IPTV relays catalog requests to the upstream provider. The action
// parameter selects the player_api.php action; list responses are filtered
// through the active profile's include/exclude patterns before leaving the
// server. get_stream_url is handled locally by the resolver.
func (h *Handlers) IPTV(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	action := r.URL.Query().Get("action")
	if action == "" {
		writeError(w, http.StatusBadRequest, "action parameter is required")
		return
	}

	creds, profile, err := h.Gateway.CredentialsFor(identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	filters := filter.ForProfile(profile, h.Log)

	ctx := r.Context()
	categoryID := r.URL.Query().Get("category_id")

	switch action {
	case "get_live_categories":
		categories, err := h.Gateway.LiveCategories(ctx, creds)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)

	case "get_live_streams":
		streams, err := h.Gateway.LiveStreams(ctx, creds, categoryID)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, filters.FilterLive(streams))

	case "get_vod_categories":
		categories, err := h.Gateway.VODCategories(ctx, creds)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)

	case "get_vod_streams":
		streams, err := h.Gateway.VODStreams(ctx, creds, categoryID)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, filters.FilterVOD(streams))

	case "get_series_categories":
		categories, err := h.Gateway.SeriesCategories(ctx, creds)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)

	case "get_series":
		series, err := h.Gateway.Series(ctx, creds, categoryID)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, filters.FilterSeries(series))

	case "get_series_info":
		seriesID := r.URL.Query().Get("series_id")
		if seriesID == "" {
			writeError(w, http.StatusBadRequest, "series_id parameter is required")
			return
		}
		info, err := h.Gateway.SeriesInfo(ctx, creds, seriesID)
		if err != nil {
			h.storeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(info)

	case "get_stream_url":
		h.streamURL(w, r, creds)

	default:
		writeError(w, http.StatusBadRequest, "unsupported action")
	}
}

// streamURL resolves the playable URL for a content id.
func (h *Handlers) streamURL(w http.ResponseWriter, r *http.Request, creds *types.Credentials) {
	id, err := strconv.Atoi(r.URL.Query().Get("stream_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "stream_id must be an integer")
		return
	}

	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = string(types.StreamLive)
	}
	if !types.ValidStreamKind(kind) {
		writeError(w, http.StatusBadRequest, "type must be live, movie or series")
		return
	}

	resolved, err := h.Gateway.Resolve(r.Context(), creds, id, types.StreamKind(kind))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": resolved})
}

// Stream normalizes an arbitrary stream URL by following provider redirects
// server-side. Only URLs on the session's provider host are accepted, so
// the relay cannot be pointed at internal services.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	creds, _, err := h.Gateway.CredentialsFor(identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	base, err := url.Parse(creds.BaseURL)
	if err != nil || target.Host != base.Host {
		writeError(w, http.StatusBadRequest, "url is not on the active provider")
		return
	}

	final, err := h.Gateway.FollowRedirects(r.Context(), rawURL)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": final})
}
