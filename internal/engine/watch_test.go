package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(250 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}

	d.Trigger()
	d.Cancel()
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired after cancel: %d times", got)
	}
}

func TestWatchRunsOnFileEvents(t *testing.T) {
	dir := newTestTree(t)
	writeFile(t, dir, "issues/rm-1.md", issueDoc("rm-1", "Watch one", ""))
	writeFile(t, dir, "issues/rm-2.md", issueDoc("rm-2", "Watch two", ""))
	writeFile(t, dir, "issues/rm-3.md", issueDoc("rm-3", "Watch three", ""))

	eng, store := newFileEngine(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan *RunStats, 8)
	done := make(chan error, 1)
	go func() {
		done <- eng.Watch(ctx, Options{}, func(stats *RunStats, err error) {
			if err != nil {
				t.Errorf("watch run: %v", err)
				return
			}
			runs <- stats
		})
	}()

	select {
	case first := <-runs:
		if first.Files.Mode != ModeFullRebuild {
			t.Errorf("initial run mode = %s, want %s", first.Files.Mode, ModeFullRebuild)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("initial watch run never fired")
	}

	// One new file out of four keeps the next run incremental.
	writeFile(t, dir, "issues/rm-4.md", issueDoc("rm-4", "New arrival", ""))

	select {
	case second := <-runs:
		if second.Files.Mode != ModeIncremental || second.Files.FilesSynced != 1 {
			t.Errorf("event run = %+v", second.Files)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch run never fired after the file event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}

	issue, err := store.GetIssue(context.Background(), "rm-4")
	if err != nil || issue == nil {
		t.Fatalf("watched file never synced: %v, %v", issue, err)
	}
}
