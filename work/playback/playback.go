package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/logger"
	"streamview/work/metrics"
	"streamview/work/utils"
)

// State is the lifecycle phase of a playback session.
type State string

const (
	StateIdle      State = "idle"      // Session created, load not yet started
	StateLoading   State = "loading"   // Manifest load or reload in progress
	StatePlaying   State = "playing"   // Stream loaded and playing
	StateBuffering State = "buffering" // Temporarily stalled, expected to resume
	StateEnded     State = "ended"     // Stream finished normally
	StateError     State = "error"     // Terminal failure, no further automatic attempts
)

const (
	// maxRetries bounds manifest load attempts per session. The budget is
	// shared between plain failures and busy-stream reloads.
	maxRetries = 5

	// retryDelay is the fixed wait between ordinary manifest retries.
	retryDelay = 2 * time.Second

	// busyCountdown is the wait after an HTTP 403 before the single reload.
	busyCountdown = 10 * time.Second

	// reapInterval is how often idle sessions are scanned for cleanup.
	reapInterval = time.Minute
)

// ErrSessionNotFound is returned for lookups of unknown or closed sessions.
var ErrSessionNotFound = errors.New("playback session not found")

// ErrBadQuality is returned when SetQuality names a level the manifest does
// not have.
var ErrBadQuality = errors.New("unknown quality level")

// Quality is one variant stream parsed from the master manifest.
type Quality struct {
	Index      int    `json:"index"`                // Position in the manifest variant list
	Bandwidth  uint32 `json:"bandwidth"`            // Declared bandwidth in bits per second
	Resolution string `json:"resolution,omitempty"` // Declared resolution (e.g. "1920x1080")
	Name       string `json:"name,omitempty"`       // Declared variant name when present
	URI        string `json:"-"`                    // Variant playlist URI (never serialized)
}

// Session is one playback attempt against a stream URL. All mutable fields
// are guarded by mu; the load loop runs in its own goroutine and the HTTP
// handlers observe state through snapshots.
type Session struct {
	ID        string
	UserID    int64
	StreamURL string

	mu          sync.Mutex
	state       State
	qualities   []Quality
	quality     int // Selected variant index, -1 for automatic
	retriesUsed int
	lastError   string
	busyUntil   time.Time // Countdown deadline after a busy response, zero otherwise
	lastActive  time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Snapshot is the JSON-facing view of a session at one instant.
type Snapshot struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	Qualities   []Quality `json:"qualities,omitempty"`
	Quality     int       `json:"quality"`
	RetriesUsed int       `json:"retriesUsed"`
	RetriesLeft int       `json:"retriesLeft"`
	LastError   string    `json:"lastError,omitempty"`
	BusyUntil   time.Time `json:"busyUntil,omitzero"`
	BusySeconds int       `json:"busySeconds,omitempty"`
	StreamURL   string    `json:"streamUrl"`
}

// Manager owns every live playback session and runs the idle reaper.
type Manager struct {
	sessions *xsync.MapOf[string, *Session]
	client   *client.HeaderSettingClient
	cfg      *config.Config
	log      *logger.Logger

	retryDelay    time.Duration
	busyCountdown time.Duration

	reapCancel context.CancelFunc
}

// NewManager creates the session manager and starts the idle reaper.
func NewManager(httpClient *client.HeaderSettingClient, cfg *config.Config, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:      xsync.NewMapOf[string, *Session](),
		client:        httpClient,
		cfg:           cfg,
		log:           log,
		retryDelay:    retryDelay,
		busyCountdown: busyCountdown,
		reapCancel:    cancel,
	}
	go m.reapLoop(ctx)
	return m
}

// Start creates a session for the stream URL and begins loading it in the
// background. The returned session is observable immediately; callers poll
// Get for progress.
func (m *Manager) Start(userID int64, streamURL string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		StreamURL:  streamURL,
		state:      StateIdle,
		quality:    -1,
		lastActive: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}

	m.sessions.Store(s.ID, s)
	metrics.PlaybackSessionsActive.Inc()

	if m.cfg.Debug {
		m.log.Debug("{playback - Start} session %s for %s", s.ID, utils.LogURL(m.cfg, streamURL))
	}

	go m.loadLoop(s)
	return s
}

// Get returns a session owned by userID, or ErrSessionNotFound. Lookups
// refresh the idle timer.
func (m *Manager) Get(id string, userID int64) (*Session, error) {
	s, ok := m.sessions.Load(id)
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	return s, nil
}

// Close cancels a session's work and removes it from the registry. Closing
// is unconditional: a session mid-countdown or mid-retry is torn down the
// same as a playing one. Closing an unknown id returns ErrSessionNotFound.
func (m *Manager) Close(id string, userID int64) error {
	s, ok := m.sessions.Load(id)
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	m.sessions.Delete(id)
	s.cancel()
	metrics.PlaybackSessionsActive.Dec()

	if m.cfg.Debug {
		m.log.Debug("{playback - Close} session %s closed", id)
	}
	return nil
}

// Shutdown tears down every session and stops the reaper.
func (m *Manager) Shutdown() {
	m.reapCancel()
	m.sessions.Range(func(id string, s *Session) bool {
		m.sessions.Delete(id)
		s.cancel()
		metrics.PlaybackSessionsActive.Dec()
		return true
	})
}

// reapLoop periodically closes sessions that have not been touched within
// the configured idle window.
func (m *Manager) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.cfg.SessionMaxIdle)
			m.sessions.Range(func(id string, s *Session) bool {
				s.mu.Lock()
				idle := s.lastActive.Before(cutoff)
				s.mu.Unlock()
				if idle {
					m.sessions.Delete(id)
					s.cancel()
					metrics.PlaybackSessionsActive.Dec()
					m.log.Info("{playback - reapLoop} reaped idle session %s", id)
				}
				return true
			})
		}
	}
}

// Snapshot returns the current observable state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		State:       s.state,
		Qualities:   s.qualities,
		Quality:     s.quality,
		RetriesUsed: s.retriesUsed,
		RetriesLeft: maxRetries - s.retriesUsed,
		LastError:   s.lastError,
		StreamURL:   s.StreamURL,
	}
	if !s.busyUntil.IsZero() && time.Now().Before(s.busyUntil) {
		snap.BusyUntil = s.busyUntil
		snap.BusySeconds = int(time.Until(s.busyUntil).Seconds() + 0.5)
	}
	return snap
}

// SetQuality selects a variant by index, or automatic selection with -1.
// Switching quality is an explicit user action and never consumes the
// retry budget, even when the previous state was an error.
func (s *Session) SetQuality(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index != -1 && (index < 0 || index >= len(s.qualities)) {
		return ErrBadQuality
	}
	s.quality = index
	s.lastActive = time.Now()
	return nil
}

// ReportState applies a client-observed transition: playing, buffering or
// ended. Transitions out of a terminal state are ignored, as are unknown
// state names.
func (s *Session) ReportState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateError || s.state == StateEnded {
		return
	}
	switch state {
	case StatePlaying, StateBuffering, StateEnded:
		s.state = state
		s.lastActive = time.Now()
	}
}

// RecoverMediaError handles a recoverable media-level error in place: the
// session drops to buffering and is expected to resume, without restarting
// the load or consuming the retry budget.
func (s *Session) RecoverMediaError(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateError || s.state == StateEnded {
		return
	}
	metrics.PlaybackErrors.WithLabelValues("media").Inc()
	s.state = StateBuffering
	s.lastError = detail
	s.lastActive = time.Now()
}

// fail moves the session to the terminal error state.
func (s *Session) fail(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.lastError = detail
	s.busyUntil = time.Time{}
}
