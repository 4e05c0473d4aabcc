package dependency

import (
	"context"
	"database/sql"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type (
	// OrderSource returns every order matching the filters.
	OrderSource interface {
		FetchCustomerOrders(ctx context.Context, filters entity.OrderFilters) ([]entity.Order, error)
	}

	Orders interface {
		OrderSource
		// Channels returns the physical to logical channel catalog.
		Channels(ctx context.Context) ([]entity.ChannelMapping, error)
		// AddOrderFacts inserts order facts, used to load fixtures into a database.
		AddOrderFacts(ctx context.Context, facts []entity.OrderFact) error
		// AddChannels upserts channel mappings.
		AddChannels(ctx context.Context, mappings []entity.ChannelMapping) error
	}

	Users interface {
		GetUserByEmail(ctx context.Context, email string) (*entity.PortalUser, error)
		AddUser(ctx context.Context, u *entity.PortalUser) (int, error)
	}

	Repository interface {
		Orders() Orders
		Users() Users
		// Tx runs f in a serializable transaction, retrying on serialization failures.
		Tx(ctx context.Context, f func(context.Context, Repository) error) error
		Ping(ctx context.Context) error
		Close()
	}

	// Analytics computes analyses over fetched orders.
	Analytics interface {
		CustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetrics, error)
		CompareCustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetricsComparison, error)
		Cohorts(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity) ([]entity.CohortData, error)
		ChurnRisk(ctx context.Context, f entity.OrderFilters, limit int) ([]entity.CustomerChurnRisk, error)
		SpendDistribution(ctx context.Context, f entity.OrderFilters) (*entity.SpendDistribution, error)
		MultiPlatform(ctx context.Context, f entity.OrderFilters) (*entity.MultiPlatformAnalysis, error)
		Snapshot(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity, churnLimit int) (*entity.AnalyticsSnapshot, error)
	}

	// FileStore keeps exported analytics snapshots.
	FileStore interface {
		UploadSnapshot(ctx context.Context, snapshot *entity.AnalyticsSnapshot) (*entity.SnapshotObject, error)
	}

	Sender interface {
		SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
	}

	Mailer interface {
		SendChurnDigest(ctx context.Context, digest *entity.ChurnDigest) error
	}

	DB interface {
		sqlx.ExtContext
		sqlx.PreparerContext
		NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
		QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
		SelectContext(ctx context.Context, dest any, query string, args ...any) error
		GetContext(ctx context.Context, dest any, query string, args ...any) error
		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}
)
