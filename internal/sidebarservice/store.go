package sidebarservice

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/config"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/memstore"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/postgres"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/sqlite"
)

// NewStore selects the storage adapter from cfg.DBDriver and applies its
// schema. The returned closer releases the connection pool.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, io.Closer, error) {
	switch cfg.DBDriver {
	case "sqlite":
		st, err := sqlite.OpenStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("SQLite store ready")
		return st, st.DB(), nil
	case "postgres":
		st, err := postgres.OpenStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("Postgres store ready")
		return st, st.DB(), nil
	case "memory":
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		return memstore.New(time.Now), closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
