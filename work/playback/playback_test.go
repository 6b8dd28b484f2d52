package playback

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/logger"
)

const masterManifest = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=7680000,RESOLUTION=1920x1080
high/index.m3u8
`

const mediaManifest = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.0,
seg0.ts
#EXT-X-ENDLIST
`

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{
		StreamTimeout:  5 * time.Second,
		SessionMaxIdle: time.Hour,
	}
	m := NewManager(client.New(5*time.Second), cfg, logger.New("ERROR"))
	m.retryDelay = 10 * time.Millisecond
	m.busyCountdown = 50 * time.Millisecond
	t.Cleanup(m.Shutdown)
	return m
}

// waitFor polls the session until cond holds or the deadline passes.
func waitFor(t *testing.T, s *Session, timeout time.Duration, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := s.Snapshot()
	t.Fatalf("condition not reached before deadline, state=%s retries=%d lastError=%q",
		snap.State, snap.RetriesUsed, snap.LastError)
	return snap
}

func TestLoadMasterManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/live/u/p/42.m3u8")

	snap := waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StatePlaying
	})
	require.Len(t, snap.Qualities, 3)
	assert.Equal(t, uint32(1280000), snap.Qualities[0].Bandwidth)
	assert.Equal(t, "1920x1080", snap.Qualities[2].Resolution)
	assert.Equal(t, -1, snap.Quality)
	assert.Zero(t, snap.RetriesUsed)
}

func TestLoadMediaManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mediaManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/stream.m3u8")

	snap := waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StatePlaying
	})
	assert.Empty(t, snap.Qualities)
}

func TestRetryBudgetExhaustionIsTerminal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/broken.m3u8")

	snap := waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StateError
	})
	assert.Equal(t, maxRetries, snap.RetriesUsed)
	assert.Zero(t, snap.RetriesLeft)
	assert.NotEmpty(t, snap.LastError)

	// No further automatic attempts after the terminal failure.
	attempts := hits.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, attempts, hits.Load())
	assert.Equal(t, StateError, s.Snapshot().State)
}

func TestBusyStreamCountdownThenReload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/busy.m3u8")

	// The busy response surfaces as a countdown before the single reload.
	waitFor(t, s, time.Second, func(snap Snapshot) bool {
		return snap.LastError == "Stream is busy"
	})

	snap := waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StatePlaying
	})
	// The busy reload consumed one unit of the shared budget.
	assert.Equal(t, 1, snap.RetriesUsed)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPersistentBusyStreamExhaustsBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/busy.m3u8")

	snap := waitFor(t, s, 3*time.Second, func(snap Snapshot) bool {
		return snap.State == StateError
	})
	assert.Equal(t, maxRetries, snap.RetriesUsed)
}

func TestSetQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/live.m3u8")
	waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StatePlaying
	})

	require.NoError(t, s.SetQuality(2))
	assert.Equal(t, 2, s.Snapshot().Quality)

	require.NoError(t, s.SetQuality(-1))
	assert.Equal(t, -1, s.Snapshot().Quality)

	assert.ErrorIs(t, s.SetQuality(9), ErrBadQuality)
	assert.ErrorIs(t, s.SetQuality(-2), ErrBadQuality)

	// Quality switching never consumes the retry budget.
	assert.Zero(t, s.Snapshot().RetriesUsed)
}

func TestMediaErrorRecoversInPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/live.m3u8")
	waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StatePlaying
	})

	s.RecoverMediaError("decode stall")
	snap := s.Snapshot()
	assert.Equal(t, StateBuffering, snap.State)
	assert.Zero(t, snap.RetriesUsed)

	// Playback resumes without a restart.
	s.ReportState(StatePlaying)
	assert.Equal(t, StatePlaying, s.Snapshot().State)
}

func TestTerminalStatesIgnoreReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/broken.m3u8")
	waitFor(t, s, 2*time.Second, func(snap Snapshot) bool {
		return snap.State == StateError
	})

	s.ReportState(StatePlaying)
	s.RecoverMediaError("ignored")
	assert.Equal(t, StateError, s.Snapshot().State)
}

func TestCloseIsUnconditional(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	defer close(block)

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/hung.m3u8")

	// Close while the load is still in flight.
	require.NoError(t, m.Close(s.ID, 1))

	_, err := m.Get(s.ID, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The session context is cancelled so the loader goroutine unblocks.
	select {
	case <-s.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("session context not cancelled by Close")
	}
}

func TestSessionOwnership(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterManifest))
	}))
	defer srv.Close()

	m := newTestManager(t)
	s := m.Start(1, srv.URL+"/live.m3u8")

	_, err := m.Get(s.ID, 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = m.Close(s.ID, 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
