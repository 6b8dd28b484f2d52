package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streamview/work/metrics"
	"streamview/work/middleware"
	"streamview/work/types"
	"streamview/work/utils"
)

type profileRequest struct {
	Name               string `json:"name"`
	IPTVURL            string `json:"iptvUrl"`
	IPTVUsername       string `json:"iptvUsername"`
	IPTVPassword       string `json:"iptvPassword"`
	LiveIncludeRegex   string `json:"liveIncludeRegex"`
	LiveExcludeRegex   string `json:"liveExcludeRegex"`
	VODIncludeRegex    string `json:"vodIncludeRegex"`
	VODExcludeRegex    string `json:"vodExcludeRegex"`
	SeriesIncludeRegex string `json:"seriesIncludeRegex"`
	SeriesExcludeRegex string `json:"seriesExcludeRegex"`
	Verify             bool   `json:"verify"`
}

// ListProfiles returns every profile belonging to the session user.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	profiles, err := h.DB.ListProfilesByUser(identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if profiles == nil {
		profiles = []*types.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// CreateProfile saves a new IPTV service profile. When the request asks for
// verification the credentials are probed first, but a failed probe only
// annotates the response; the profile is stored either way.
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.IPTVURL == "" || req.IPTVUsername == "" || req.IPTVPassword == "" {
		writeError(w, http.StatusBadRequest, "name, iptvUrl, iptvUsername and iptvPassword are required")
		return
	}

	verified := true
	if req.Verify {
		verified = h.Gateway.VerifyCredentials(r.Context(), &types.Credentials{
			BaseURL:  utils.NormalizeBaseURL(req.IPTVURL),
			Username: req.IPTVUsername,
			Password: req.IPTVPassword,
		})
		if !verified {
			h.Log.Info("{handlers - CreateProfile} credential probe failed for user %d", identity.UserID)
		}
	}

	profile, err := h.DB.CreateProfile(&types.Profile{
		UserID:             identity.UserID,
		Name:               req.Name,
		IPTVURL:            utils.NormalizeBaseURL(req.IPTVURL),
		IPTVUsername:       req.IPTVUsername,
		IPTVPassword:       req.IPTVPassword,
		LiveIncludeRegex:   req.LiveIncludeRegex,
		LiveExcludeRegex:   req.LiveExcludeRegex,
		VODIncludeRegex:    req.VODIncludeRegex,
		VODExcludeRegex:    req.VODExcludeRegex,
		SeriesIncludeRegex: req.SeriesIncludeRegex,
		SeriesExcludeRegex: req.SeriesExcludeRegex,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile":  profile,
		"verified": verified,
	})
}

// UpdateProfile rewrites an owned profile's fields.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.DB.UpdateProfile(&types.Profile{
		ID:                 id,
		UserID:             identity.UserID,
		Name:               req.Name,
		IPTVURL:            utils.NormalizeBaseURL(req.IPTVURL),
		IPTVUsername:       req.IPTVUsername,
		IPTVPassword:       req.IPTVPassword,
		LiveIncludeRegex:   req.LiveIncludeRegex,
		LiveExcludeRegex:   req.LiveExcludeRegex,
		VODIncludeRegex:    req.VODIncludeRegex,
		VODExcludeRegex:    req.VODExcludeRegex,
		SeriesIncludeRegex: req.SeriesIncludeRegex,
		SeriesExcludeRegex: req.SeriesExcludeRegex,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	// The cached cookie may now describe stale credentials.
	if profile.IsActive {
		h.Sessions.SetActiveProfileCookie(w, profile)
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile removes an owned, inactive profile. Deleting the active
// profile is refused with a conflict.
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	if err := h.DB.DeleteProfile(id, identity.UserID); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetActiveProfile makes one profile the user's active profile, refreshes
// the client-side cache cookie and kicks off a catalog warmup.
func (h *Handlers) SetActiveProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	var req struct {
		ProfileID int64 `json:"profileId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.DB.SetActiveProfile(req.ProfileID, identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	metrics.ActiveProfileSwitches.Inc()
	h.Sessions.SetActiveProfileCookie(w, profile)

	// Catalogs from the previous provider must not survive the switch.
	h.Cache.InvalidateAll()
	h.Warmer.Warm(&types.Credentials{
		BaseURL:  utils.NormalizeBaseURL(profile.IPTVURL),
		Username: profile.IPTVUsername,
		Password: profile.IPTVPassword,
	})

	writeJSON(w, http.StatusOK, profile)
}

// GetActiveProfile returns the active profile, preferring the cookie cache
// when fresh and falling back to the database. A null body means no profile
// is active.
func (h *Handlers) GetActiveProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	if cached := h.Sessions.CachedActiveProfile(w, r); cached != nil {
		// Ownership still has to hold even for cached entries.
		if cached.UserID == identity.UserID {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		h.Sessions.ClearActiveProfileCookie(w)
	}

	profile, err := h.DB.GetActiveProfileForUser(identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	h.Sessions.SetActiveProfileCookie(w, profile)
	writeJSON(w, http.StatusOK, profile)
}

// ClearActiveProfile deactivates the active profile and drops the cookie
// cache. Clearing when nothing is active succeeds.
func (h *Handlers) ClearActiveProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	if err := h.DB.ClearActiveProfile(identity.UserID); err != nil {
		h.storeError(w, err)
		return
	}
	h.Sessions.ClearActiveProfileCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
