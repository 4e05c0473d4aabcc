package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/jekabolt/delivery-analytics/internal/metrics"
)

const (
	defaultWorkerInterval = 24 * time.Hour
	defaultLookbackDays   = 90
)

// DigestConfig describes one churn digest and who receives it.
type DigestConfig struct {
	Name         string   `mapstructure:"name"`
	Recipients   []string `mapstructure:"recipients"`
	CompanyIds   []int    `mapstructure:"company_ids"`
	BrandIds     []int    `mapstructure:"brand_ids"`
	Channels     []string `mapstructure:"channels"`
	LookbackDays int      `mapstructure:"lookback_days"`
	Limit        int      `mapstructure:"limit"`
}

func (d DigestConfig) Validate() error {
	channels := make([]any, len(entity.Channels))
	for i, ch := range entity.Channels {
		channels[i] = string(ch)
	}
	return v.ValidateStruct(&d,
		v.Field(&d.Name, v.Required),
		v.Field(&d.Recipients, v.Required, v.Each(is.EmailFormat)),
		v.Field(&d.CompanyIds, v.Each(v.Required, v.Min(1))),
		v.Field(&d.BrandIds, v.Each(v.Required, v.Min(1))),
		v.Field(&d.Channels, v.Each(v.In(channels...))),
		v.Field(&d.LookbackDays, v.Min(0)),
		v.Field(&d.Limit, v.Min(0)),
	)
}

// Filters returns the order filters of the lookback window ending on the day of now.
func (d DigestConfig) Filters(now time.Time) entity.OrderFilters {
	days := d.LookbackDays
	if days <= 0 {
		days = defaultLookbackDays
	}
	f := entity.OrderFilters{
		CompanyIds: d.CompanyIds,
		BrandIds:   d.BrandIds,
		StartDate:  now.AddDate(0, 0, -(days - 1)).Format(entity.DateLayout),
		EndDate:    now.Format(entity.DateLayout),
	}
	for _, ch := range d.Channels {
		f.ChannelIds = append(f.ChannelIds, entity.ChannelId(strings.ToLower(ch)))
	}
	return f
}

type churnScorer interface {
	ChurnRisk(ctx context.Context, f entity.OrderFilters, limit int) ([]entity.CustomerChurnRisk, error)
}

// DigestWorker periodically mails the churn digests of the config.
type DigestWorker struct {
	mailer   dependency.Mailer
	scorer   churnScorer
	digests  []DigestConfig
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDigestWorker validates the digests; dates are computed in loc.
func NewDigestWorker(c *Config, mailer dependency.Mailer, scorer churnScorer, loc *time.Location) (*DigestWorker, error) {
	for i, d := range c.Digests {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("digest %d (%s): %w", i, d.Name, err)
		}
	}
	interval := c.WorkerInterval
	if interval <= 0 {
		interval = defaultWorkerInterval
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DigestWorker{
		mailer:   mailer,
		scorer:   scorer,
		digests:  c.Digests,
		interval: interval,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// Start starts the worker
func (w *DigestWorker) Start(ctx context.Context) error {
	if w.ctx != nil && w.cancel != nil {
		return fmt.Errorf("digest worker already started")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	go w.worker(w.ctx)
	return nil
}

// Stop stops the worker gracefully
func (w *DigestWorker) Stop() error {
	if w.cancel == nil {
		return fmt.Errorf("digest worker already stopped or not started")
	}

	w.cancel()
	w.cancel = nil
	return nil
}

func (w *DigestWorker) worker(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SendAll(ctx); err != nil {
				slog.Default().ErrorContext(ctx, "can't send churn digests",
					slog.String("err", err.Error()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SendAll scores and mails every configured digest. A failing digest is
// logged and does not stop the others; only cancellation aborts the run.
func (w *DigestWorker) SendAll(ctx context.Context) error {
	now := w.now().In(w.loc)
	for _, dc := range w.digests {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.send(ctx, dc, now)
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't send churn digest",
				slog.String("digest", dc.Name),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

func (w *DigestWorker) send(ctx context.Context, dc DigestConfig, now time.Time) error {
	f := dc.Filters(now)
	entries, err := w.scorer.ChurnRisk(ctx, f, dc.Limit)
	if err != nil {
		metrics.DigestsSent.WithLabelValues(metrics.Status(err)).Inc()
		return fmt.Errorf("can't score churn risk: %w", err)
	}
	if len(entries) == 0 {
		slog.Default().InfoContext(ctx, "no customers at risk, digest skipped",
			slog.String("digest", dc.Name),
		)
		return nil
	}

	err = w.mailer.SendChurnDigest(ctx, &entity.ChurnDigest{
		Name:        dc.Name,
		Recipients:  dc.Recipients,
		Filters:     f,
		GeneratedAt: now,
		Entries:     entries,
	})
	metrics.DigestsSent.WithLabelValues(metrics.Status(err)).Inc()
	return err
}
