package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamview/work/handlers"
	"streamview/work/middleware"
	"streamview/work/session"
)

// registerRoutes wires every API surface onto the router. Register, login,
// health and metrics are open; everything else sits behind the auth guard.
func registerRoutes(r *mux.Router, h *handlers.Handlers, sessions *session.Manager) {
	r.Use(middleware.CORS)

	// Open endpoints
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost, http.MethodOptions)

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(sessions))
	api.Use(middleware.Compression)

	api.HandleFunc("/profiles", h.ListProfiles).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/profiles", h.CreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/setActive", h.SetActiveProfile).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/profiles/getActive", h.GetActiveProfile).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/profiles/clearActive", h.ClearActiveProfile).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/profiles/{id:[0-9]+}", h.UpdateProfile).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/profiles/{id:[0-9]+}", h.DeleteProfile).Methods(http.MethodDelete)

	api.HandleFunc("/iptv", h.IPTV).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stream", h.Stream).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/epg", h.GetEPG).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/playback", h.StartPlayback).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/playback/{id}", h.GetPlayback).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/playback/{id}/quality", h.SetPlaybackQuality).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/playback/{id}/event", h.ReportPlaybackEvent).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/playback/{id}", h.StopPlayback).Methods(http.MethodDelete)
}
