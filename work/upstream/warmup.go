package upstream

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"

	"streamview/work/types"
	"streamview/work/utils"
)

// Warmer prefetches the three catalog lists into the response cache when a
// profile is activated, so the first UI navigation after a switch hits warm
// data instead of three cold upstream round trips.
type Warmer struct {
	gateway *Gateway
	pool    *ants.Pool
}

// NewWarmer creates a warmup runner backed by a bounded worker pool.
func NewWarmer(gateway *Gateway, workers int) (*Warmer, error) {
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	return &Warmer{
		gateway: gateway,
		pool:    pool,
	}, nil
}

// Warm schedules background prefetches of the live, VOD and series catalogs
// for the given credentials. Failures are logged and otherwise ignored; the
// cache simply stays cold for that list.
func (w *Warmer) Warm(creds *types.Credentials) {
	g := w.gateway
	jobs := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"live", func(ctx context.Context) error {
			_, err := g.LiveStreams(ctx, creds, "")
			return err
		}},
		{"vod", func(ctx context.Context) error {
			_, err := g.VODStreams(ctx, creds, "")
			return err
		}},
		{"series", func(ctx context.Context) error {
			_, err := g.Series(ctx, creds, "")
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		err := w.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*g.cfg.StreamTimeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				g.log.Debug("{upstream - Warm} %s prefetch failed for %s: %v",
					job.name, utils.LogURL(g.cfg, creds.BaseURL), err)
			}
		})
		if err != nil {
			g.log.Warn("{upstream - Warm} failed to submit %s prefetch: %v", job.name, err)
		}
	}
}

// Release shuts the worker pool down. Pending jobs get a grace period.
func (w *Warmer) Release() {
	w.pool.ReleaseTimeout(5 * time.Second)
}
