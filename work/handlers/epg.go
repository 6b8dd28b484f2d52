package handlers

import (
	"net/http"

	"streamview/work/middleware"
)

// EPG serves the simplified program guide for the session's credentials,
// optionally restricted to one channel via ?channel=.
func (h *Handlers) GetEPG(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r)

	creds, _, err := h.Gateway.CredentialsFor(identity.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	guide, err := h.EPG.Guide(r.Context(), creds, r.URL.Query().Get("channel"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}
