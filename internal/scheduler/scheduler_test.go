package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitForFires(t *testing.T, fires *atomic.Int32, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("job did not fire within %s, fires=%d", within, fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSchedulerFiresJob(t *testing.T) {
	var fires atomic.Int32
	sched := New()
	if err := sched.Add(Job{Name: "kb-refresh", Schedule: "* * * * * *", Run: func() { fires.Add(1) }}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitForFires(t, &fires, 2500*time.Millisecond)
}

func TestSchedulerEveryDescriptor(t *testing.T) {
	var fires atomic.Int32
	sched := New()
	if err := sched.Add(Job{Name: "kb-refresh", Schedule: "@every 1s", Run: func() { fires.Add(1) }}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitForFires(t, &fires, 2500*time.Millisecond)
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	sched := New()
	if err := sched.Add(Job{Name: "bad", Schedule: "not a cron", Run: func() {}}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := Validate("*/5 * * * *"); err != nil {
		t.Errorf("5-field expression should be valid: %v", err)
	}
}

func TestSchedulerReload(t *testing.T) {
	var fires atomic.Int32
	sched := New()
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	if err := sched.Add(Job{Name: "late", Schedule: "* * * * * *", Run: func() { fires.Add(1) }}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Reload(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitForFires(t, &fires, 2500*time.Millisecond)
}

func TestSchedulerReplace(t *testing.T) {
	var old, replaced atomic.Int32
	sched := New()
	if err := sched.Add(Job{Name: "kb-refresh", Schedule: "@every 1h", Run: func() { old.Add(1) }}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	if err := sched.Replace(Job{Name: "kb-refresh", Schedule: "* * * * * *", Run: func() { replaced.Add(1) }}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Reload(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitForFires(t, &replaced, 2500*time.Millisecond)
	if old.Load() != 0 {
		t.Errorf("replaced job fired %d times", old.Load())
	}
	if len(sched.jobs) != 1 {
		t.Errorf("expected 1 job after replace, got %d", len(sched.jobs))
	}
	if err := sched.Replace(Job{Name: "kb-refresh", Schedule: "bogus"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
