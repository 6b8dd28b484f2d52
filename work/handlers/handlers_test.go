package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/work/auth"
	"streamview/work/cache"
	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/database"
	"streamview/work/epg"
	"streamview/work/logger"
	"streamview/work/middleware"
	"streamview/work/playback"
	"streamview/work/session"
	"streamview/work/types"
	"streamview/work/upstream"
)

// fakeProvider is a minimal Xtream-Codes endpoint for handler tests.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/player_api.php":
			switch r.URL.Query().Get("action") {
			case "get_live_streams":
				w.Write([]byte(`[{"stream_id":1,"name":"News"},{"stream_id":2,"name":"Adult Channel"}]`))
			case "get_live_categories":
				w.Write([]byte(`[{"category_id":"5","category_name":"General","parent_id":0}]`))
			case "":
				w.Write([]byte(`{"user_info":{"auth":1}}`))
			default:
				w.Write([]byte(`[]`))
			}
		case "/xmltv.php":
			w.Write([]byte(`<?xml version="1.0"?><tv><channel id="c1"><display-name>C1</display-name></channel></tv>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	router *mux.Router
	db     *database.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		SessionSecret: "test-secret",
		CacheDuration: time.Minute,
		UpstreamRPS:   100,
		StreamTimeout: 5 * time.Second,
		WorkerThreads: 2,
	}
	log := logger.New("ERROR")

	db, err := database.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions, err := session.New(cfg.SessionSecret, false)
	require.NoError(t, err)

	httpClient := client.New(cfg.StreamTimeout)
	respCache := cache.New(64, cfg.CacheDuration)
	gateway := upstream.NewGateway(httpClient, respCache, db, cfg, log)
	warmer, err := upstream.NewWarmer(gateway, cfg.WorkerThreads)
	require.NoError(t, err)
	t.Cleanup(warmer.Release)

	playbackMgr := playback.NewManager(httpClient, &config.Config{
		StreamTimeout:  cfg.StreamTimeout,
		SessionMaxIdle: time.Hour,
	}, log)
	t.Cleanup(playbackMgr.Shutdown)

	h := &Handlers{
		Cfg:      cfg,
		Log:      log,
		DB:       db,
		Sessions: sessions,
		Auth:     auth.NewService(db, log),
		Gateway:  gateway,
		Warmer:   warmer,
		EPG:      epg.NewService(httpClient, respCache, cfg, log),
		Playback: playbackMgr,
		Cache:    respCache,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(sessions))
	api.HandleFunc("/profiles", h.ListProfiles).Methods(http.MethodGet)
	api.HandleFunc("/profiles", h.CreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/setActive", h.SetActiveProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/getActive", h.GetActiveProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/clearActive", h.ClearActiveProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id:[0-9]+}", h.DeleteProfile).Methods(http.MethodDelete)
	api.HandleFunc("/iptv", h.IPTV).Methods(http.MethodGet)
	api.HandleFunc("/epg", h.GetEPG).Methods(http.MethodGet)

	return &testApp{router: router, db: db}
}

// do runs one request through the router, attaching any cookies given.
func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// loginUser registers and logs a user in, returning the session cookies.
func (a *testApp) loginUser(t *testing.T, email string) []*http.Cookie {
	t.Helper()
	creds := map[string]string{"email": email, "password": "correct-horse"}

	rec := a.do(t, http.MethodPost, "/api/auth/register", creds, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/login", creds, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestRegisterLoginProfileActivateFlow(t *testing.T) {
	app := newTestApp(t)
	provider := fakeProvider(t)
	cookies := app.loginUser(t, "user@example.com")

	// No session means no profiles.
	rec := app.do(t, http.MethodGet, "/api/profiles", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Create two profiles.
	var created struct {
		Profile types.Profile `json:"profile"`
	}
	rec = app.do(t, http.MethodPost, "/api/profiles", map[string]interface{}{
		"name": "Home", "iptvUrl": provider.URL, "iptvUsername": "u", "iptvPassword": "p",
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	first := created.Profile

	rec = app.do(t, http.MethodPost, "/api/profiles", map[string]interface{}{
		"name": "Backup", "iptvUrl": provider.URL, "iptvUsername": "u2", "iptvPassword": "p2",
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	second := created.Profile

	// Nothing is active yet.
	rec = app.do(t, http.MethodGet, "/api/profiles/getActive", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())

	// Activate the first, then the second; only one stays active.
	rec = app.do(t, http.MethodPost, "/api/profiles/setActive", map[string]int64{"profileId": first.ID}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/profiles/setActive", map[string]int64{"profileId": second.ID}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	profiles, err := app.db.ListProfilesByUser(first.UserID)
	require.NoError(t, err)
	activeCount := 0
	for _, p := range profiles {
		if p.IsActive {
			activeCount++
			assert.Equal(t, second.ID, p.ID)
		}
	}
	assert.Equal(t, 1, activeCount)

	// Deleting the active profile is refused.
	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", second.ID), nil, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Deleting the inactive one works.
	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", first.ID), nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Clearing leaves no active profile.
	rec = app.do(t, http.MethodPost, "/api/profiles/clearActive", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	active, err := app.db.GetActiveProfileForUser(first.UserID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLoginBadCredentials(t *testing.T) {
	app := newTestApp(t)
	app.loginUser(t, "user@example.com")

	rec := app.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "user@example.com", "password": "wrong-horse",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestProfileOwnershipAcrossUsers(t *testing.T) {
	app := newTestApp(t)
	provider := fakeProvider(t)

	ownerCookies := app.loginUser(t, "owner@example.com")
	intruderCookies := app.loginUser(t, "intruder@example.com")

	var created struct {
		Profile types.Profile `json:"profile"`
	}
	rec := app.do(t, http.MethodPost, "/api/profiles", map[string]interface{}{
		"name": "Owned", "iptvUrl": provider.URL, "iptvUsername": "u", "iptvPassword": "p",
	}, ownerCookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Another user cannot activate or delete it, and learns nothing.
	rec = app.do(t, http.MethodPost, "/api/profiles/setActive", map[string]int64{"profileId": created.Profile.ID}, intruderCookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", created.Profile.ID), nil, intruderCookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIPTVRelayWithFilters(t *testing.T) {
	app := newTestApp(t)
	provider := fakeProvider(t)
	cookies := app.loginUser(t, "user@example.com")

	var created struct {
		Profile types.Profile `json:"profile"`
	}
	rec := app.do(t, http.MethodPost, "/api/profiles", map[string]interface{}{
		"name": "Filtered", "iptvUrl": provider.URL,
		"iptvUsername": "u", "iptvPassword": "p",
		"liveExcludeRegex": "(?i)adult",
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = app.do(t, http.MethodPost, "/api/profiles/setActive", map[string]int64{"profileId": created.Profile.ID}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/iptv?action=get_live_streams", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var streams []types.XCLiveStream
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	require.Len(t, streams, 1)
	assert.Equal(t, "News", streams[0].Name)
}

func TestIPTVWithoutCredentials(t *testing.T) {
	app := newTestApp(t)
	cookies := app.loginUser(t, "user@example.com")

	// No active profile and no environment fallback configured.
	rec := app.do(t, http.MethodGet, "/api/iptv?action=get_live_streams", nil, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIPTVStreamURLAction(t *testing.T) {
	app := newTestApp(t)
	provider := fakeProvider(t)
	cookies := app.loginUser(t, "user@example.com")

	var created struct {
		Profile types.Profile `json:"profile"`
	}
	rec := app.do(t, http.MethodPost, "/api/profiles", map[string]interface{}{
		"name": "Home", "iptvUrl": provider.URL, "iptvUsername": "u", "iptvPassword": "p",
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	rec = app.do(t, http.MethodPost, "/api/profiles/setActive", map[string]int64{"profileId": created.Profile.ID}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/iptv?action=get_stream_url&stream_id=42&type=live", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, provider.URL+"/live/u/p/42.m3u8", body["url"])
}

func TestLogoutClearsCookies(t *testing.T) {
	app := newTestApp(t)
	cookies := app.loginUser(t, "user@example.com")

	rec := app.do(t, http.MethodPost, "/api/auth/logout", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
		assert.Negative(t, c.MaxAge)
	}
	assert.True(t, names[session.TokenCookie])
	assert.True(t, names[session.ActiveProfileCookie])
}
