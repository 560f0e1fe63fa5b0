package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/clock"
	"github.com/use-agent/pageclip/metrics"
	"github.com/use-agent/pageclip/models"
)

func newSessions(t *testing.T, d Deliverer, maxSize int) (*Sessions, *clock.Fake, *metrics.Metrics) {
	t.Helper()
	fc := clock.NewFake(start)
	m := metrics.New(prometheus.NewRegistry())
	s := NewSessions(testConfig(), Deps{
		Registry:  adapter.NewRegistry(staticAdapter("stub", body), nil),
		Deliverer: d,
		Notifier:  NotifierFunc(func(models.Signal) {}),
		Clock:     fc,
		Metrics:   m,
	}, time.Minute, maxSize)
	return s, fc, m
}

func TestSessionsGetIsPerContext(t *testing.T) {
	s, _, m := newSessions(t, succeed(), 8)

	a := s.Get("tab-1")
	assert.Same(t, a, s.Get("tab-1"))
	b := s.Get("tab-2")
	assert.NotSame(t, a, b)
	assert.Equal(t, "tab-2", b.ContextID())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sessions))

	// Each context owns its cooldown.
	ctx := context.Background()
	_, err := a.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)
	_, err = b.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)
}

func TestSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	s, fc, _ := newSessions(t, succeed(), 2)

	first := s.Get("tab-1")
	fc.Advance(5 * time.Second)
	s.Get("tab-2")
	fc.Advance(5 * time.Second)
	s.Get("tab-3")

	assert.Equal(t, 2, s.Len())
	assert.NotSame(t, first, s.Get("tab-1"), "tab-1 was the oldest and got evicted")
}

func TestSessionsKeepCoolingDownOrchestrators(t *testing.T) {
	s, fc, _ := newSessions(t, succeed(), 1)
	ctx := context.Background()

	first := s.Get("tab-1")
	_, err := first.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)

	fc.Advance(500 * time.Millisecond)
	_, err = s.Get("tab-2").Trigger(ctx, page(t, "https://example.com/b"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len(), "tab-1 is still inside its cooldown")

	fc.Advance(500 * time.Millisecond)
	again := s.Get("tab-1")
	assert.Same(t, first, again)
	_, err = again.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	assert.True(t, models.HasCode(err, models.ErrCodeCooldown))
}

func TestSessionsSweepKeepsCoolingDownOrchestrators(t *testing.T) {
	fc := clock.NewFake(start)
	s := NewSessions(testConfig(), Deps{
		Registry:  adapter.NewRegistry(staticAdapter("stub", body), nil),
		Deliverer: succeed(),
		Notifier:  NotifierFunc(func(models.Signal) {}),
		Clock:     fc,
	}, time.Second, 8)
	ctx := context.Background()

	first := s.Get("tab-1")
	_, err := first.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)

	fc.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, s.Sweep())
	_, err = s.Get("tab-1").Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	assert.True(t, models.HasCode(err, models.ErrCodeCooldown))

	fc.Advance(4 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestSessionsKeepBusyOrchestrators(t *testing.T) {
	d := never()
	s, fc, _ := newSessions(t, d, 1)
	busy := s.Get("tab-1")

	done := make(chan error, 1)
	go func() {
		_, err := busy.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
		done <- err
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntil(ctx, 1))

	s.Get("tab-2")
	assert.Equal(t, 2, s.Len())
	assert.Same(t, busy, s.Get("tab-1"))

	fc.Advance(10 * time.Second)
	<-done
}

func TestSessionsSweep(t *testing.T) {
	s, fc, m := newSessions(t, succeed(), 8)

	s.Get("old")
	fc.Advance(45 * time.Second)
	fresh := s.Get("fresh")
	fc.Advance(30 * time.Second)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.Same(t, fresh, s.Get("fresh"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions))
}
