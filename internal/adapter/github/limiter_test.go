package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	quota  Quota
	err    error
	probes int
}

func (p *fakeProbe) Probe(context.Context) (Quota, error) {
	p.probes++
	if p.err != nil {
		return Quota{}, p.err
	}
	return p.quota, nil
}

func testLimiter(probe QuotaProbe) (*Limiter, *time.Time, *[]time.Duration) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration
	l := NewLimiter(probe)
	l.clock = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	return l, &now, &slept
}

func TestCheckCachesWithinInterval(t *testing.T) {
	probe := &fakeProbe{quota: Quota{Remaining: 4000, Limit: 5000, ResetAt: time.Now().Add(30 * time.Minute)}}
	l, now, _ := testLimiter(probe)

	first := l.Check(context.Background())
	assert.Equal(t, 4000, first.Remaining)
	assert.Equal(t, 1, probe.probes)

	// Within the interval the cached view is served.
	*now = now.Add(30 * time.Second)
	l.Check(context.Background())
	assert.Equal(t, 1, probe.probes)

	// Past the interval the probe fires again.
	*now = now.Add(31 * time.Second)
	l.Check(context.Background())
	assert.Equal(t, 2, probe.probes)
}

func TestCheckProbeFailureUsesConservativeDefaults(t *testing.T) {
	probe := &fakeProbe{err: errors.New("network down")}
	l, _, _ := testLimiter(probe)

	q := l.Check(context.Background())
	assert.Equal(t, fallbackRemaining, q.Remaining)
	assert.Equal(t, fallbackResetIn, q.ResetIn)
}

func TestWaitIfNeededPassesWithHeadroom(t *testing.T) {
	probe := &fakeProbe{quota: Quota{Remaining: 500, Limit: 5000}}
	l, _, slept := testLimiter(probe)

	require.NoError(t, l.WaitIfNeeded(context.Background(), 10))
	assert.Empty(t, *slept, "500 remaining clears cost 10 plus margin 100")
}

func TestWaitIfNeededBlocksUntilReset(t *testing.T) {
	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	probe := &fakeProbe{quota: Quota{Remaining: 50, Limit: 5000, ResetAt: start.Add(10 * time.Minute)}}
	l, now, slept := testLimiter(probe)

	require.NoError(t, l.WaitIfNeeded(context.Background(), 10))
	require.Len(t, *slept, 1)
	// Sleeps until one second past the reset.
	assert.Equal(t, 10*time.Minute+time.Second, (*slept)[0])
	// The wait forces a fresh probe so the next caller sees the new window.
	assert.Equal(t, 2, probe.probes)

	probe.quota = Quota{Remaining: 5000, Limit: 5000, ResetAt: start.Add(70 * time.Minute)}
	*now = now.Add(2 * time.Minute)
	q := l.Check(context.Background())
	assert.Equal(t, 5000, q.Remaining)
}

func TestWaitIfNeededHonoursContext(t *testing.T) {
	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	probe := &fakeProbe{quota: Quota{Remaining: 0, Limit: 5000, ResetAt: start.Add(time.Hour)}}
	l, _, _ := testLimiter(probe)
	l.sleep = func(ctx context.Context, _ time.Duration) error { return context.DeadlineExceeded }

	err := l.WaitIfNeeded(context.Background(), 1)
	assert.Error(t, err)
}

func TestRepoCache(t *testing.T) {
	c := NewRepoCache()
	_, ok := c.Get("acme/widgets")
	assert.False(t, ok)

	c.Put("acme/widgets", Repository{FullName: "acme/widgets", DefaultBranch: "main"})
	got, ok := c.Get("acme/widgets")
	require.True(t, ok)
	assert.Equal(t, "main", got.DefaultBranch)
	assert.Equal(t, 1, c.Len())
}
