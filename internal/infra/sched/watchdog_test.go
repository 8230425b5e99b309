// File: internal/infra/sched/watchdog_test.go
//go:build !integration

package sched

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	redisinfra "ai-generation-queue/internal/infra/redis"
)

type stubStuckJobs struct {
	repository.JobRepository

	stuck    []*model.Job
	requeued map[string]string
	failed   map[string]string
	alive    map[string]bool
}

func (s *stubStuckJobs) ListStuckProcessing(_ context.Context, _ time.Time, _ int) ([]*model.Job, error) {
	return s.stuck, nil
}

func (s *stubStuckJobs) Requeue(_ context.Context, id, reason string) (bool, error) {
	if s.alive[id] {
		return false, nil
	}
	s.requeued[id] = reason
	return true, nil
}

func (s *stubStuckJobs) Fail(_ context.Context, id, reason string) (bool, error) {
	if s.alive[id] {
		return false, nil
	}
	s.failed[id] = reason
	return true, nil
}

type heldLocker struct{}

func (heldLocker) TryLock(context.Context, string, time.Duration) (string, error) {
	return "", redisinfra.ErrLockHeld
}
func (heldLocker) Unlock(context.Context, string, string) error { return nil }

func stuckJob(id string, attempts, maxAttempts int) *model.Job {
	return &model.Job{
		ID: id, Kind: model.KindImage, Status: model.JobStatusProcessing,
		Attempts: attempts, MaxAttempts: maxAttempts,
	}
}

func newStub(stuck ...*model.Job) *stubStuckJobs {
	return &stubStuckJobs{
		stuck:    stuck,
		requeued: make(map[string]string),
		failed:   make(map[string]string),
		alive:    make(map[string]bool),
	}
}

func newWatchdog(jobs repository.JobRepository, locker redisinfra.Locker) *Watchdog {
	l := zerolog.Nop()
	return NewWatchdog(time.Minute, 10*time.Minute, jobs, locker, &l)
}

func TestSweepRequeuesWhileAttemptsRemain(t *testing.T) {
	jobs := newStub(stuckJob("j1", 1, 3))
	w := newWatchdog(jobs, nil)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	if jobs.requeued["j1"] != "request timed out" {
		t.Errorf("requeued = %q, want timeout reason", jobs.requeued["j1"])
	}
	if len(jobs.failed) != 0 {
		t.Error("job with attempts remaining must not fail")
	}
}

func TestSweepFailsExhaustedJob(t *testing.T) {
	jobs := newStub(stuckJob("j1", 3, 3))
	w := newWatchdog(jobs, nil)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	if jobs.failed["j1"] != "request timed out" {
		t.Errorf("failed = %q, want timeout reason", jobs.failed["j1"])
	}
}

func TestSweepSkipsJobFinishedMeanwhile(t *testing.T) {
	jobs := newStub(stuckJob("j1", 1, 3), stuckJob("j2", 1, 3))
	jobs.alive["j1"] = true
	w := newWatchdog(jobs, nil)

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped = %d, want only the genuinely stuck job", n)
	}
	if _, ok := jobs.requeued["j1"]; ok {
		t.Error("lost conditional update must not count as reaped")
	}
}

func TestSweepYieldsWhenLockHeld(t *testing.T) {
	jobs := newStub(stuckJob("j1", 1, 3))
	w := newWatchdog(jobs, heldLocker{})

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 || len(jobs.requeued) != 0 {
		t.Error("sweep must yield while another instance holds the lock")
	}
}
