package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/health"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// NewHealthChecker returns a checker named "store". It prefers the driver's
// HealthPing and otherwise falls back to a cheap folder listing.
func NewHealthChecker(s Store, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	return health.NewPingChecker("store", pinger(s), log, probeTimeout)
}

func pinger(s Store) health.HealthPinger {
	if p, ok := s.(health.HealthPinger); ok {
		return p
	}
	return health.PingFunc(func(ctx context.Context) error {
		_, err := s.Folders().List(ctx, "__health_check__")
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	})
}
