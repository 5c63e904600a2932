package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePurger) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, f.err
}

func (f *fakePurger) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestPurgeStaleSessionsCutoff(t *testing.T) {
	p := &fakePurger{}
	s := NewScheduler(p, 72*time.Hour, "")
	s.now = func() time.Time { return time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC) }

	s.purgeStaleSessions()

	require.Len(t, p.calls(), 1)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), p.calls()[0])
}

func TestPurgeStaleSessionsError(t *testing.T) {
	p := &fakePurger{err: errors.New("mongo down")}
	s := NewScheduler(p, time.Hour, "")

	assert.NotPanics(t, s.purgeStaleSessions)
	assert.Len(t, p.calls(), 1)
}

func TestNewSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&fakePurger{}, time.Hour, "")
	assert.Equal(t, DefaultSpec, s.spec)
	assert.NotEmpty(t, s.instanceID)
}

func TestStartRunsJob(t *testing.T) {
	p := &fakePurger{}
	s := NewScheduler(p, time.Hour, "@every 1s")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return len(p.calls()) > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestStartBadSpec(t *testing.T) {
	s := NewScheduler(&fakePurger{}, time.Hour, "not a spec")
	assert.Error(t, s.Start())
}

func TestStartRetentionDisabled(t *testing.T) {
	p := &fakePurger{}
	s := NewScheduler(p, 0, "@every 1s")
	require.NoError(t, s.Start())
	s.Stop()

	assert.Empty(t, p.calls())
	assert.Empty(t, s.cron.Entries())
}
