package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jekabolt/delivery-analytics/config"
	"github.com/jekabolt/delivery-analytics/internal/analytics"
	httpapi "github.com/jekabolt/delivery-analytics/internal/api/http"
	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/bucket"
	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/mail"
	"github.com/jekabolt/delivery-analytics/internal/metrics"
	"github.com/jekabolt/delivery-analytics/internal/ratelimit"
)

const shutdownTimeout = 15 * time.Second

// App is the main application
type App struct {
	c       *config.Config
	src     *Sources
	hs      *httpapi.Server
	limiter *ratelimit.LoginLimiter
	digests *mail.DigestWorker
	done    chan struct{}
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
	}
}

// Start starts the app
func (a *App) Start(ctx context.Context) error {
	slog.Default().InfoContext(ctx, "starting delivery analytics")

	loc, err := a.c.Analytics.Location()
	if err != nil {
		return err
	}

	a.src, err = OpenSources(ctx, a.c, loc)
	if err != nil {
		slog.Default().ErrorContext(ctx, "couldn't open order source", slog.String("err", err.Error()))
		return err
	}

	analyticsS, err := analytics.New(&a.c.Analytics, a.src.Orders)
	if err != nil {
		return err
	}

	authS, err := auth.New(&a.c.Auth, a.src.Users)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed create new auth service", slog.String("err", err.Error()))
		return err
	}

	a.limiter, err = ratelimit.NewLoginLimiter(a.c.RateLimit)
	if err != nil {
		return err
	}

	var files dependency.FileStore
	if a.c.Bucket.Enabled() {
		b, err := bucket.New(&a.c.Bucket)
		if err != nil {
			slog.Default().ErrorContext(ctx, "failed create bucket", slog.String("err", err.Error()))
			return err
		}
		files = b
	} else {
		slog.Default().WarnContext(ctx, "bucket is not configured, snapshots are disabled")
	}

	a.hs, err = httpapi.New(&a.c.HTTP, httpapi.Deps{
		Analytics: analyticsS,
		Auth:      authS,
		Limiter:   a.limiter,
		Files:     files,
		Health:    a.src.Health,
		Registry:  metrics.NewRegistry(),
	})
	if err != nil {
		return err
	}
	if err = a.hs.Start(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server", slog.String("err", err.Error()))
		return err
	}

	if a.c.Mailer.Enabled() && len(a.c.Mailer.Digests) > 0 {
		mailer, err := mail.New(&a.c.Mailer)
		if err != nil {
			return fmt.Errorf("cannot create mailer: %w", err)
		}
		a.digests, err = mail.NewDigestWorker(&a.c.Mailer, mailer, analyticsS, loc)
		if err != nil {
			return fmt.Errorf("cannot create digest worker: %w", err)
		}
		if err := a.digests.Start(ctx); err != nil {
			return err
		}
	}

	go func() {
		<-a.hs.Done()
		close(a.done)
	}()

	return nil
}

// Stop stops the app
func (a *App) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.digests != nil {
		if err := a.digests.Stop(); err != nil {
			slog.Default().ErrorContext(ctx, "cannot stop digest worker", slog.String("err", err.Error()))
		}
	}
	if a.hs != nil {
		if err := a.hs.Stop(ctx); err != nil {
			slog.Default().ErrorContext(ctx, "cannot stop http server", slog.String("err", err.Error()))
		}
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.src != nil {
		a.src.Close()
	}
}

// Done returns a channel that is closed when the application is done
func (a *App) Done() <-chan struct{} {
	return a.done
}
