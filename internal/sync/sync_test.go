package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSchedulerStartStop(t *testing.T) {
	s := seedStore(t)
	dest := &mockDestination{}

	sched := NewScheduler(s, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Wait for at least the initial sync + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memory.New(), nil, time.Minute, testLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerZeroIntervalSyncsOnce(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seedStore(t), []Destination{dest}, 0, nil)
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes != 1 {
		t.Fatalf("expected exactly 1 write, got %d", writes)
	}
}

func TestSyncOnce_DestinationFailure(t *testing.T) {
	boom := errors.New("bucket gone")
	bad := &mockDestination{err: boom}
	good := &mockDestination{}

	sched := NewScheduler(seedStore(t), []Destination{bad, good}, time.Minute, testLogger())
	err := sched.SyncOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected destination error, got %v", err)
	}
	if good.writes.Load() != 1 {
		t.Fatal("a failing destination should not stop the others")
	}
	last := sched.Last()
	if last.Failed != 1 || !errors.Is(last.Err, boom) || last.Bytes == 0 {
		t.Fatalf("Last() = %+v", last)
	}
}

func TestSyncOnce_ExportFailure(t *testing.T) {
	s := memory.New()
	s.Close()
	dest := &mockDestination{}

	sched := NewScheduler(s, []Destination{dest}, time.Minute, testLogger())
	if err := sched.SyncOnce(context.Background()); err == nil {
		t.Fatal("expected export error from closed store")
	}
	if dest.writes.Load() != 0 {
		t.Fatal("nothing should be written when the export fails")
	}
	if sched.Last().Err == nil {
		t.Fatal("Last() should carry the export error")
	}
}

func TestSchedulerRun_ReturnsOnCancel(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seedStore(t), []Destination{dest}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for dest.writes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if writes := dest.writes.Load(); writes != 1 {
		t.Fatalf("expected 1 write, got %d", writes)
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seedStore(t), []Destination{dest}, 0, testLogger())
	sched.Start()
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()
	sched.Stop()

	if writes := dest.writes.Load(); writes != 1 {
		t.Fatalf("expected exactly 1 write, got %d", writes)
	}
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}

	sched := NewScheduler(seedStore(t), []Destination{dest1, dest2}, time.Second, testLogger())
	sched.Start()

	// Wait for the initial sync.
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() < 1 {
		t.Fatal("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Fatal("dest2 expected at least 1 write")
	}
}
