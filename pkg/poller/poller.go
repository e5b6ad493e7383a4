package poller

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tbenr/protovis/pkg/history"
)

// DefaultInterval is the capture cadence when none is configured. One slot
// on mainnet is 12 seconds; polling each slot captures every head change.
const DefaultInterval = 12 * time.Second

// Poller captures snapshots from a beacon node on a fixed interval.
//
// Every tick it fetches one dump, wraps it in a snapshot, and appends it to
// the store. A failed poll is logged and skipped; the loop keeps its
// cadence regardless.
type Poller struct {
	client   *Client
	store    history.Store
	interval time.Duration
	logger   *log.Logger

	// OnSnapshot, when set, is called after each successful capture. It runs
	// on the polling goroutine, so callbacks must return quickly.
	OnSnapshot func(history.Snapshot)
}

// New creates a poller appending to store every interval. A non-positive
// interval falls back to DefaultInterval, a nil logger to the default one.
func New(client *Client, store history.Store, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		client:   client,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Interval returns the capture cadence.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls immediately, then on every interval tick until ctx is
// cancelled. It always returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling fork choice",
		"endpoint", p.client.Endpoint(), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	data, err := p.client.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("poll failed, will retry next tick",
			"endpoint", p.client.Endpoint(), "err", err)
		return
	}

	s := history.NewSnapshot(data)
	if err := p.store.Append(ctx, s); err != nil {
		p.logger.Error("storing snapshot failed", "id", s.ID, "err", err)
		return
	}

	p.logger.Debug("snapshot captured", "id", s.ID, "bytes", len(data))
	if p.OnSnapshot != nil {
		p.OnSnapshot(s)
	}
}
