// File: internal/usecase/mocks_test.go
//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- job repository ---

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.Job)}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (m *memJobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *memJobRepo) CountActiveByUser(_ context.Context, _ repository.Tx, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.UserID == userID && (j.Status.IsWaiting() || j.Status == model.JobStatusProcessing) {
			n++
		}
	}
	return n, nil
}

func (m *memJobRepo) CountProcessing(_ context.Context) (repository.ProcessingCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := repository.ProcessingCounts{ByTier: make(map[string]int)}
	for _, j := range m.jobs {
		if j.Status == model.JobStatusProcessing {
			counts.Total++
			counts.ByTier[j.Tier.Name]++
		}
	}
	return counts, nil
}

func (m *memJobRepo) waitingSorted() []*model.Job {
	var out []*model.Job
	for _, j := range m.jobs {
		if j.Status.IsWaiting() {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func (m *memJobRepo) ListWaiting(_ context.Context, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiting := m.waitingSorted()
	if len(waiting) > limit {
		waiting = waiting[:limit]
	}
	out := make([]*model.Job, len(waiting))
	for i, j := range waiting {
		out[i] = cloneJob(j)
	}
	return out, nil
}

func (m *memJobRepo) Claim(_ context.Context, id string) (*model.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || !j.Status.IsWaiting() {
		return nil, false, nil
	}
	now := time.Now()
	j.Status = model.JobStatusProcessing
	if j.Attempts < j.MaxAttempts {
		j.Attempts++
	}
	j.Progress = 0
	j.QueuePosition = 0
	j.StartedAt = &now
	j.UpdatedAt = now
	return cloneJob(j), true, nil
}

func (m *memJobRepo) UpdateProgress(_ context.Context, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status == model.JobStatusProcessing && progress > j.Progress {
		j.Progress = progress
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memJobRepo) transition(id string, from func(model.JobStatus) bool, apply func(*model.Job)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || !from(j.Status) {
		return false, nil
	}
	apply(j)
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *memJobRepo) Complete(_ context.Context, id, result string) (bool, error) {
	return m.transition(id,
		func(s model.JobStatus) bool { return s == model.JobStatusProcessing },
		func(j *model.Job) {
			now := time.Now()
			j.Status = model.JobStatusCompleted
			j.Result = result
			j.Progress = 100
			j.Error = ""
			j.CompletedAt = &now
		})
}

func (m *memJobRepo) Requeue(_ context.Context, id, reason string) (bool, error) {
	return m.transition(id,
		func(s model.JobStatus) bool { return s == model.JobStatusProcessing },
		func(j *model.Job) {
			j.Status = model.JobStatusQueued
			j.Error = reason
			j.RetryCount++
			j.StartedAt = nil
		})
}

func (m *memJobRepo) Fail(_ context.Context, id, reason string) (bool, error) {
	return m.transition(id,
		func(s model.JobStatus) bool { return s == model.JobStatusProcessing },
		func(j *model.Job) {
			now := time.Now()
			j.Status = model.JobStatusFailed
			j.Error = reason
			j.CompletedAt = &now
		})
}

func (m *memJobRepo) RetryFailed(_ context.Context, id string) (bool, error) {
	return m.transition(id,
		func(s model.JobStatus) bool { return s == model.JobStatusFailed },
		func(j *model.Job) {
			j.Status = model.JobStatusQueued
			j.Error = ""
			j.Result = ""
			j.Progress = 0
			j.RetryCount++
			j.StartedAt = nil
			j.CompletedAt = nil
		})
}

func (m *memJobRepo) Cancel(_ context.Context, id string) (bool, error) {
	return m.transition(id,
		func(s model.JobStatus) bool { return s.IsWaiting() },
		func(j *model.Job) { j.Status = model.JobStatusCancelled })
}

func (m *memJobRepo) SetResourceKey(_ context.Context, id, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.ResourceKeyID = keyID
	return nil
}

func (m *memJobRepo) ListStuckProcessing(_ context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.Status == model.JobStatusProcessing && j.UpdatedAt.Before(cutoff) {
			out = append(out, cloneJob(j))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memJobRepo) RecomputeQueuePositions(_ context.Context) ([]repository.QueuePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiting := m.waitingSorted()
	out := make([]repository.QueuePosition, len(waiting))
	for i, j := range waiting {
		j.QueuePosition = i + 1
		out[i] = repository.QueuePosition{JobID: j.ID, Position: i + 1}
	}
	return out, nil
}

// setStatus force-sets a job state for test setup, bypassing transitions.
func (m *memJobRepo) setStatus(id string, status model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
	}
}

// --- account repository ---

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.UserAccount
	ledger   []*model.TokenTransaction
}

var _ repository.AccountRepository = (*memAccountRepo)(nil)

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*model.UserAccount)}
}

func (m *memAccountRepo) Save(_ context.Context, _ repository.Tx, acc *model.UserAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *acc
	m.accounts[acc.ID] = &c
	return nil
}

func (m *memAccountRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *acc
	return &c, nil
}

func (m *memAccountRepo) Debit(_ context.Context, userID string, amount int64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if acc.Balance < amount {
		return false, nil
	}
	acc.Balance -= amount
	m.ledger = append(m.ledger, &model.TokenTransaction{
		ID: model.NewJobID(), UserID: userID, Delta: -amount,
		Reason: reason, ResultingBalance: acc.Balance, CreatedAt: time.Now(),
	})
	return true, nil
}

func (m *memAccountRepo) Credit(_ context.Context, userID string, amount int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[userID]
	if !ok {
		return domain.ErrNotFound
	}
	acc.Balance += amount
	m.ledger = append(m.ledger, &model.TokenTransaction{
		ID: model.NewJobID(), UserID: userID, Delta: amount,
		Reason: reason, ResultingBalance: acc.Balance, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memAccountRepo) ListTransactions(_ context.Context, userID string, limit int) ([]*model.TokenTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TokenTransaction
	for i := len(m.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if m.ledger[i].UserID == userID {
			c := *m.ledger[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- tier repository ---

type memTierRepo struct {
	mu    sync.Mutex
	tiers map[string]*model.TierConfig
}

var _ repository.TierRepository = (*memTierRepo)(nil)

func newMemTierRepo(tiers ...model.TierConfig) *memTierRepo {
	m := &memTierRepo{tiers: make(map[string]*model.TierConfig)}
	for _, t := range tiers {
		c := t
		m.tiers[t.Name] = &c
	}
	return m
}

func (m *memTierRepo) Save(_ context.Context, _ repository.Tx, tier *model.TierConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *tier
	m.tiers[tier.Name] = &c
	return nil
}

func (m *memTierRepo) FindByName(_ context.Context, _ repository.Tx, name string) (*model.TierConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memTierRepo) ListAll(_ context.Context, _ repository.Tx) ([]*model.TierConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.TierConfig, 0, len(m.tiers))
	for _, t := range m.tiers {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

// --- resource key repository ---

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*model.ResourceKey
}

var _ repository.ResourceKeyRepository = (*memKeyRepo)(nil)

func newMemKeyRepo(keys ...model.ResourceKey) *memKeyRepo {
	m := &memKeyRepo{keys: make(map[string]*model.ResourceKey)}
	for _, k := range keys {
		c := k
		m.keys[k.ID] = &c
	}
	return m
}

func (m *memKeyRepo) Save(_ context.Context, _ repository.Tx, key *model.ResourceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *key
	m.keys[key.ID] = &c
	return nil
}

func (m *memKeyRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.ResourceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *k
	return &c, nil
}

func (m *memKeyRepo) ListByService(_ context.Context, service string) ([]*model.ResourceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ResourceKey
	for _, k := range m.keys {
		if k.Service == service {
			c := *k
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memKeyRepo) AcquireLeastLoaded(_ context.Context, service string, day time.Time) (*model.ResourceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day = model.UTCDay(day)
	var best *model.ResourceKey
	for _, k := range m.keys {
		if k.Service != service || !k.IsActive || k.Exhausted(day) {
			continue
		}
		if best == nil ||
			k.UsageOn(day) < best.UsageOn(day) ||
			(k.UsageOn(day) == best.UsageOn(day) && k.ID < best.ID) {
			best = k
		}
	}
	if best == nil {
		return nil, domain.ErrNoResourceKey
	}
	if best.UsageDay.Equal(day) {
		best.UsageToday++
	} else {
		best.UsageDay = day
		best.UsageToday = 1
	}
	now := time.Now()
	best.LastUsedAt = &now
	c := *best
	return &c, nil
}

func (m *memKeyRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return domain.ErrNotFound
	}
	k.IsActive = false
	return nil
}

// --- position cache ---

type memPositions struct {
	mu        sync.Mutex
	positions map[string]int
}

var _ PositionIndex = (*memPositions)(nil)

func newMemPositions() *memPositions {
	return &memPositions{positions: make(map[string]int)}
}

func (m *memPositions) Replace(_ context.Context, positions map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = make(map[string]int, len(positions))
	for k, v := range positions {
		m.positions[k] = v
	}
	return nil
}

func (m *memPositions) Get(_ context.Context, jobID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[jobID], nil
}

// --- waker ---

type countWaker struct {
	mu sync.Mutex
	n  int
}

func (w *countWaker) Wake() {
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
}

func (w *countWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}
