package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	name    string
	healthy atomic.Int32
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() == 1 }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) {}

func TestServiceHealthChecker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &fakeChecker{name: "store"}
	b := &fakeChecker{name: "cache"}
	a.healthy.Store(1)
	b.healthy.Store(1)

	svc := NewServiceHealthChecker(zerolog.Nop(), a, b)
	go svc.Start(ctx, 10*time.Millisecond)

	waitTrue(t, func() bool { return svc.IsHealthy() })

	b.healthy.Store(0)
	waitTrue(t, func() bool { return !svc.IsHealthy() })
	assert.Equal(t, []string{"cache"}, svc.Down())

	b.healthy.Store(1)
	waitTrue(t, func() bool { return svc.IsHealthy() })
	assert.Empty(t, svc.Down())
}

func TestPingChecker_Probe(t *testing.T) {
	var fail atomic.Bool
	c := NewPingChecker("backend", PingFunc(func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	}), zerolog.Nop(), 0)

	assert.False(t, c.IsHealthy(), "starts unhealthy")
	assert.True(t, c.Probe(context.Background()))
	assert.True(t, c.IsHealthy())

	fail.Store(true)
	assert.False(t, c.Probe(context.Background()))
	assert.False(t, c.IsHealthy())
	assert.Equal(t, "backend", c.Name())
}

func TestPingChecker_ProbeHonoursTimeout(t *testing.T) {
	c := NewPingChecker("slow", PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), zerolog.Nop(), 20*time.Millisecond)

	start := time.Now()
	assert.False(t, c.Probe(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
