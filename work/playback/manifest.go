package playback

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/grafov/m3u8"

	"streamview/work/metrics"
	"streamview/work/utils"
)

// errStreamBusy marks an HTTP 403 from the provider, which Xtream servers
// use when the account's connection limit is reached.
var errStreamBusy = errors.New("stream is busy")

// loadLoop drives a session from Idle through Loading to Playing, retrying
// manifest failures against the shared budget. An HTTP 403 triggers a
// ten-second countdown before its reload; the countdown attempt consumes
// the same budget as an ordinary retry. When the budget runs out the
// session fails terminally and nothing restarts it.
func (m *Manager) loadLoop(s *Session) {
	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()

	for {
		if s.ctx.Err() != nil {
			return
		}

		qualities, err := m.fetchManifest(s)
		if err == nil {
			s.mu.Lock()
			s.qualities = qualities
			s.state = StatePlaying
			s.busyUntil = time.Time{}
			s.lastError = ""
			s.lastActive = time.Now()
			s.mu.Unlock()

			if m.cfg.Debug {
				m.log.Debug("{playback - loadLoop} session %s playing with %d quality levels", s.ID, len(qualities))
			}
			return
		}

		s.mu.Lock()
		s.retriesUsed++
		used := s.retriesUsed
		s.mu.Unlock()

		if used >= maxRetries {
			metrics.PlaybackErrors.WithLabelValues("fatal").Inc()
			m.log.Warn("{playback - loadLoop} session %s failed after %d attempts: %v", s.ID, used, err)
			s.fail(err.Error())
			return
		}

		metrics.PlaybackRetries.Inc()

		delay := m.retryDelay
		if errors.Is(err, errStreamBusy) {
			metrics.PlaybackErrors.WithLabelValues("busy").Inc()
			delay = m.busyCountdown
			s.mu.Lock()
			s.lastError = "Stream is busy"
			s.busyUntil = time.Now().Add(m.busyCountdown)
			s.mu.Unlock()
			m.log.Info("{playback - loadLoop} session %s busy, reloading in %s", s.ID, m.busyCountdown)
		} else {
			metrics.PlaybackErrors.WithLabelValues("network").Inc()
			s.mu.Lock()
			s.lastError = err.Error()
			s.mu.Unlock()
			if m.cfg.Debug {
				m.log.Debug("{playback - loadLoop} session %s attempt %d failed: %v", s.ID, used, err)
			}
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		s.state = StateLoading
		s.busyUntil = time.Time{}
		s.mu.Unlock()
	}
}

// fetchManifest downloads and parses the stream manifest, returning the
// quality levels when it is a master playlist. Media playlists are valid
// streams with a single implicit quality.
func (m *Manager) fetchManifest(s *Session) ([]Quality, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.StreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, errStreamBusy
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest returned HTTP %d", resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest from %s: %w", utils.LogURL(m.cfg, s.StreamURL), err)
	}

	if listType != m3u8.MASTER {
		// A media playlist plays directly; no variant selection available.
		return nil, nil
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type from %s", utils.LogURL(m.cfg, s.StreamURL))
	}

	qualities := make([]Quality, 0, len(master.Variants))
	for i, v := range master.Variants {
		if v == nil {
			continue
		}
		qualities = append(qualities, Quality{
			Index:      i,
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			Name:       v.Name,
			URI:        v.URI,
		})
	}
	return qualities, nil
}
