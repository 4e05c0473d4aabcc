package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jekabolt/delivery-analytics/config"
	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/fixture"
	"github.com/jekabolt/delivery-analytics/internal/store"
)

// Sources is the order source and user store selected by the config: the
// fixture file when fixture.path is set, the database otherwise.
type Sources struct {
	Orders dependency.OrderSource
	Users  dependency.Users
	Health func(ctx context.Context) error
	// Repository is nil in fixture mode.
	Repository dependency.Repository
}

// OpenSources opens the configured sources, resolving dates in loc.
func OpenSources(ctx context.Context, c *config.Config, loc *time.Location) (*Sources, error) {
	if c.Fixture.Path != "" {
		src, err := fixture.Load(c.Fixture.Path, loc)
		if err != nil {
			return nil, err
		}
		slog.Default().InfoContext(ctx, "serving orders from fixture",
			slog.String("path", c.Fixture.Path),
			slog.Int("orders", len(src.Facts())),
		)
		return &Sources{
			Orders: src,
			Users:  src.Users(),
		}, nil
	}

	if c.DB.DSN == "" {
		return nil, fmt.Errorf("either db.dsn or fixture.path must be set")
	}
	dbCfg := c.DB
	dbCfg.Location = loc
	repo, err := store.New(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	return &Sources{
		Orders:     repo.Orders(),
		Users:      repo.Users(),
		Health:     repo.Ping,
		Repository: repo,
	}, nil
}

// Close releases the database connection if one was opened.
func (s *Sources) Close() {
	if s.Repository != nil {
		s.Repository.Close()
	}
}
