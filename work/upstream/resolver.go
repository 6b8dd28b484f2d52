package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"streamview/work/types"
	"streamview/work/utils"
)

// maxRedirectHops bounds how many Location headers the relay follows when
// normalizing a VOD or series URL.
const maxRedirectHops = 5

// Resolve composes the playable stream URL for a content id. All three
// content types use the same URL shape; VOD and series additionally pass
// through the redirect relay because those providers commonly bounce the
// first request to a tokenized URL that players must hit directly.
// Live URLs are returned as composed, skipping the relay hop.
func (g *Gateway) Resolve(ctx context.Context, creds *types.Credentials, id int, kind types.StreamKind) (string, error) {
	streamURL := fmt.Sprintf("%s/%s/%s/%s/%d.m3u8",
		creds.BaseURL, kind, creds.Username, creds.Password, id)

	if kind == types.StreamLive {
		return streamURL, nil
	}

	final, err := g.FollowRedirects(ctx, streamURL)
	if err != nil {
		// The relay is best-effort: a provider that refuses probe
		// requests still serves the composed URL to real players.
		if g.cfg.Debug {
			g.log.Debug("{upstream - Resolve} relay failed for %s: %v", utils.LogURL(g.cfg, streamURL), err)
		}
		return streamURL, nil
	}
	return final, nil
}

// FollowRedirects chases Location headers from rawURL and returns the final
// URL without downloading stream content. Relative redirects are resolved
// against the hop they came from.
func (g *Gateway) FollowRedirects(ctx context.Context, rawURL string) (string, error) {
	nc := g.client.NoRedirect()
	current := rawURL

	for hop := 0; hop < maxRedirectHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create relay request: %w", err)
		}

		resp, err := nc.Do(req)
		if err != nil {
			return "", fmt.Errorf("relay request failed: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			if resp.StatusCode >= 400 {
				return "", fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, resp.StatusCode)
			}
			return current, nil
		}

		loc := resp.Header.Get("Location")
		if loc == "" {
			return current, nil
		}

		base, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("invalid relay URL: %w", err)
		}
		next, err := base.Parse(loc)
		if err != nil {
			return "", fmt.Errorf("invalid redirect location: %w", err)
		}
		current = next.String()
	}

	return current, nil
}
