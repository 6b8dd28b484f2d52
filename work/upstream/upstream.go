package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"streamview/work/cache"
	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/database"
	"streamview/work/logger"
	"streamview/work/metrics"
	"streamview/work/types"
	"streamview/work/utils"
)

// Errors surfaced by the gateway. ErrNoCredentials means neither an active
// profile nor the environment fallback is available; ErrUpstreamStatus
// wraps any non-2xx provider response.
var (
	ErrNoCredentials  = errors.New("no upstream credentials available")
	ErrUpstreamStatus = errors.New("upstream returned an error status")
	ErrUnknownAction  = errors.New("unknown upstream action")
)

// allowedActions is the set of player_api.php actions the relay forwards.
// Anything else is rejected before a request is built.
var allowedActions = map[string]bool{
	"get_live_categories":   true,
	"get_live_streams":      true,
	"get_vod_categories":    true,
	"get_vod_streams":       true,
	"get_series_categories": true,
	"get_series":            true,
	"get_series_info":       true,
}

// Gateway proxies catalog requests to the Xtream-Codes player_api.php
// endpoint. Responses are cached with a TTL and calls against each provider
// base URL are rate limited so a burst of UI navigation cannot hammer the
// upstream into blocking the account.
type Gateway struct {
	client   *client.HeaderSettingClient
	cache    *cache.Cache
	db       *database.DB
	cfg      *config.Config
	log      *logger.Logger
	limiters *xsync.MapOf[string, ratelimit.Limiter]
}

// NewGateway creates the upstream gateway.
func NewGateway(httpClient *client.HeaderSettingClient, respCache *cache.Cache, db *database.DB, cfg *config.Config, log *logger.Logger) *Gateway {
	return &Gateway{
		client:   httpClient,
		cache:    respCache,
		db:       db,
		cfg:      cfg,
		log:      log,
		limiters: xsync.NewMapOf[string, ratelimit.Limiter](),
	}
}

// CredentialsFor resolves the upstream credentials for a user: the active
// profile when one exists, otherwise the environment fallback. Neither
// available yields ErrNoCredentials.
func (g *Gateway) CredentialsFor(userID int64) (*types.Credentials, *types.Profile, error) {
	profile, err := g.db.GetActiveProfileForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	if profile != nil {
		return &types.Credentials{
			BaseURL:  utils.NormalizeBaseURL(profile.IPTVURL),
			Username: profile.IPTVUsername,
			Password: profile.IPTVPassword,
		}, profile, nil
	}

	if g.cfg.HasFallbackCredentials() {
		return &types.Credentials{
			BaseURL:  utils.NormalizeBaseURL(g.cfg.IPTVBaseURL),
			Username: g.cfg.IPTVUsername,
			Password: g.cfg.IPTVPassword,
		}, nil, nil
	}

	return nil, nil, ErrNoCredentials
}

// limiter returns the rate limiter for a provider base URL, creating it on
// first use.
func (g *Gateway) limiter(baseURL string) ratelimit.Limiter {
	if lim, ok := g.limiters.Load(baseURL); ok {
		return lim
	}
	lim, _ := g.limiters.LoadOrStore(baseURL, ratelimit.New(g.cfg.UpstreamRPS))
	return lim
}

// Call executes a player_api.php request and returns the raw JSON body.
// Responses are cached keyed by credentials, action and extra parameters;
// the action must be in the allowed set.
func (g *Gateway) Call(ctx context.Context, creds *types.Credentials, action string, params url.Values) ([]byte, error) {
	if !allowedActions[action] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	key := cache.Key(creds.BaseURL, creds.Username, creds.Password, action, params.Encode())
	if body, ok := g.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		if g.cfg.Debug {
			g.log.Debug("{upstream - Call} cache hit for %s", action)
		}
		return body, nil
	}
	metrics.CacheMisses.Inc()

	body, err := g.fetch(ctx, creds, action, params)
	if err != nil {
		return nil, err
	}

	g.cache.Set(key, body)
	return body, nil
}

// fetch performs the actual upstream request, bypassing the cache.
func (g *Gateway) fetch(ctx context.Context, creds *types.Credentials, action string, params url.Values) ([]byte, error) {
	// Pace requests per provider before touching the network
	g.limiter(creds.BaseURL).Take()

	q := url.Values{}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	apiURL := fmt.Sprintf("%s/player_api.php?%s", creds.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(action, "error").Inc()
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(action, "error").Inc()
		if g.cfg.Debug {
			g.log.Debug("{upstream - fetch} request failed for %s: %v", utils.LogURL(g.cfg, creds.BaseURL), err)
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(action, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if g.cfg.Debug {
			g.log.Debug("{upstream - fetch} HTTP %d from %s for action %s", resp.StatusCode, utils.LogURL(g.cfg, creds.BaseURL), action)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if g.cfg.Debug {
		g.log.Debug("{upstream - fetch} %s returned %d bytes", action, len(body))
	}
	return body, nil
}

// fetchTyped executes a cached upstream call and decodes the JSON array
// response into the requested element type.
func fetchTyped[T any](ctx context.Context, g *Gateway, creds *types.Credentials, action string, params url.Values) ([]T, error) {
	body, err := g.Call(ctx, creds, action, params)
	if err != nil {
		return nil, err
	}

	var data []T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", action, err)
	}
	return data, nil
}

// LiveCategories fetches the live channel category list.
func (g *Gateway) LiveCategories(ctx context.Context, creds *types.Credentials) ([]types.XCCategory, error) {
	return fetchTyped[types.XCCategory](ctx, g, creds, "get_live_categories", nil)
}

// LiveStreams fetches the live channel list, optionally scoped to a category.
func (g *Gateway) LiveStreams(ctx context.Context, creds *types.Credentials, categoryID string) ([]types.XCLiveStream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	return fetchTyped[types.XCLiveStream](ctx, g, creds, "get_live_streams", params)
}

// VODCategories fetches the video-on-demand category list.
func (g *Gateway) VODCategories(ctx context.Context, creds *types.Credentials) ([]types.XCCategory, error) {
	return fetchTyped[types.XCCategory](ctx, g, creds, "get_vod_categories", nil)
}

// VODStreams fetches the VOD list, optionally scoped to a category.
func (g *Gateway) VODStreams(ctx context.Context, creds *types.Credentials, categoryID string) ([]types.XCVODStream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	return fetchTyped[types.XCVODStream](ctx, g, creds, "get_vod_streams", params)
}

// SeriesCategories fetches the series category list.
func (g *Gateway) SeriesCategories(ctx context.Context, creds *types.Credentials) ([]types.XCCategory, error) {
	return fetchTyped[types.XCCategory](ctx, g, creds, "get_series_categories", nil)
}

// Series fetches the series list, optionally scoped to a category.
func (g *Gateway) Series(ctx context.Context, creds *types.Credentials, categoryID string) ([]types.XCSeries, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}
	return fetchTyped[types.XCSeries](ctx, g, creds, "get_series", params)
}

// SeriesInfo fetches the episode breakdown for one series. The provider
// response shape varies too much to model, so it passes through raw.
func (g *Gateway) SeriesInfo(ctx context.Context, creds *types.Credentials, seriesID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	return g.Call(ctx, creds, "get_series_info", params)
}

// VerifyCredentials probes player_api.php with no action, which Xtream
// servers answer with account info when the credentials are good. Used as
// an optional check at profile creation; failures never block insertion.
func (g *Gateway) VerifyCredentials(ctx context.Context, creds *types.Credentials) bool {
	probeURL := fmt.Sprintf("%s/player_api.php?username=%s&password=%s",
		creds.BaseURL, url.QueryEscape(creds.Username), url.QueryEscape(creds.Password))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}

	g.limiter(creds.BaseURL).Take()
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	// A well-formed account payload carries user_info; auth failures come
	// back as {"user_info":{"auth":0}} or an empty body.
	var probe struct {
		UserInfo struct {
			Auth json.Number `json:"auth"`
		} `json:"user_info"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.UserInfo.Auth.String() == "1"
}
