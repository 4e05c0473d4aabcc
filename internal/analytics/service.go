package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/jekabolt/delivery-analytics/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Config holds analytics settings.
type Config struct {
	// Timezone used to resolve filter dates and cohort periods, e.g. Europe/Madrid.
	Timezone   string `mapstructure:"timezone"`
	ChurnLimit int    `mapstructure:"churn_limit"`
}

// Service fetches orders from a source and reduces them into analyses.
type Service struct {
	source     dependency.OrderSource
	loc        *time.Location
	churnLimit int
	now        func() time.Time
}

// Location loads the configured timezone, UTC when empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("can't load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// New creates a new analytics service.
func New(c *Config, source dependency.OrderSource) (*Service, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	limit := c.ChurnLimit
	if limit <= 0 {
		limit = DefaultChurnLimit
	}
	return &Service{
		source:     source,
		loc:        loc,
		churnLimit: limit,
		now:        time.Now,
	}, nil
}

// Location returns the timezone filter dates are resolved in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) fetch(ctx context.Context, kind string, f entity.OrderFilters) ([]entity.Order, error) {
	if _, err := f.Range(s.loc); err != nil {
		metrics.Analyses.WithLabelValues(kind, metrics.Status(err)).Inc()
		return nil, err
	}
	orders, err := s.source.FetchCustomerOrders(ctx, f)
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't fetch customer orders",
			slog.String("err", err.Error()),
			slog.String("analysis", kind),
			slog.String("start_date", f.StartDate),
			slog.String("end_date", f.EndDate),
		)
		metrics.Analyses.WithLabelValues(kind, metrics.Status(err)).Inc()
		return nil, err
	}
	metrics.Analyses.WithLabelValues(kind, metrics.Status(nil)).Inc()
	return orders, nil
}

func (s *Service) CustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetrics, error) {
	orders, err := s.fetch(ctx, "customers", f)
	if err != nil {
		return nil, err
	}
	m := CustomerMetrics(orders)
	return &m, nil
}

// CompareCustomerMetrics computes metrics for the filter window and for the
// window of the same length right before it. Both fetches run concurrently.
func (s *Service) CompareCustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetricsComparison, error) {
	period, err := f.Range(s.loc)
	if err != nil {
		return nil, err
	}
	prevFilters, err := f.Previous(s.loc)
	if err != nil {
		return nil, err
	}
	comparePeriod, err := prevFilters.Range(s.loc)
	if err != nil {
		return nil, err
	}

	var current, previous []entity.Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.fetch(gctx, "customers_compare", f)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.fetch(gctx, "customers_compare", prevFilters)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cur := CustomerMetrics(current)
	prev := CustomerMetrics(previous)
	return &entity.CustomerMetricsComparison{
		Period:        period,
		ComparePeriod: comparePeriod,
		Current:       cur,
		Previous:      prev,
		ChangePct:     compareCustomerMetrics(cur, prev),
	}, nil
}

func (s *Service) Cohorts(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity) ([]entity.CohortData, error) {
	orders, err := s.fetch(ctx, "cohorts", f)
	if err != nil {
		return nil, err
	}
	return BuildCohorts(orders, g, s.loc), nil
}

func (s *Service) ChurnRisk(ctx context.Context, f entity.OrderFilters, limit int) ([]entity.CustomerChurnRisk, error) {
	orders, err := s.fetch(ctx, "churn", f)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.churnLimit
	}
	return ScoreChurnRisk(orders, s.now(), limit), nil
}

func (s *Service) SpendDistribution(ctx context.Context, f entity.OrderFilters) (*entity.SpendDistribution, error) {
	orders, err := s.fetch(ctx, "distribution", f)
	if err != nil {
		return nil, err
	}
	d := SpendDistribution(orders)
	return &d, nil
}

func (s *Service) MultiPlatform(ctx context.Context, f entity.OrderFilters) (*entity.MultiPlatformAnalysis, error) {
	orders, err := s.fetch(ctx, "platforms", f)
	if err != nil {
		return nil, err
	}
	a := MultiPlatform(orders)
	return &a, nil
}

// Snapshot computes every analysis over a single fetch.
func (s *Service) Snapshot(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity, churnLimit int) (*entity.AnalyticsSnapshot, error) {
	orders, err := s.fetch(ctx, "snapshot", f)
	if err != nil {
		return nil, err
	}
	if churnLimit <= 0 {
		churnLimit = s.churnLimit
	}
	now := s.now()
	return &entity.AnalyticsSnapshot{
		Filters:       f,
		GeneratedAt:   now,
		OrdersCount:   len(orders),
		Customers:     CustomerMetrics(orders),
		Cohorts:       BuildCohorts(orders, g, s.loc),
		ChurnRisk:     ScoreChurnRisk(orders, now, churnLimit),
		Distribution:  SpendDistribution(orders),
		MultiPlatform: MultiPlatform(orders),
	}, nil
}
