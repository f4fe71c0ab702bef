// Package sync exports the feed as JSONL and ships snapshots to backup
// destinations on a schedule.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// Destination receives exported snapshots.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Report describes the outcome of one sync.
type Report struct {
	At     time.Time
	Bytes  int
	Failed int
	Err    error
}

// Scheduler exports a store to its destinations, once or every interval.
type Scheduler struct {
	store    store.Store
	dests    []Destination
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last Report
	stop context.CancelFunc
	done chan struct{}
}

// NewScheduler returns a Scheduler. A non-positive interval means Run syncs
// once and returns.
func NewScheduler(s store.Store, dests []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: s, dests: dests, interval: interval, logger: logger.With("component", "sync")}
}

// Run syncs immediately and then every interval until ctx is done. Failed
// syncs are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sync failed", "err", err)
		}
		if s.interval <= 0 {
			return
		}
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Start runs Run in the background. Calling Start on a running scheduler
// does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stop, s.done = cancel, done
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
}

// Stop cancels a background Run and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// Last returns the report of the most recent sync.
func (s *Scheduler) Last() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SyncOnce exports the store and writes the snapshot to every destination.
// A failing destination does not stop the others; their errors are joined.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	rep := Report{At: time.Now()}
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		rep.Err = fmt.Errorf("export: %w", err)
		s.record(rep)
		return rep.Err
	}
	rep.Bytes = buf.Len()

	var errs []error
	for i, d := range s.dests {
		if err := d.Write(ctx, buf.Bytes()); err != nil {
			errs = append(errs, fmt.Errorf("destination %d (%T): %w", i, d, err))
		}
	}
	rep.Failed = len(errs)
	rep.Err = errors.Join(errs...)
	s.record(rep)

	s.logger.Info("sync finished", "destinations", len(s.dests), "failed", rep.Failed, "bytes", rep.Bytes)
	return rep.Err
}

func (s *Scheduler) record(r Report) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}
