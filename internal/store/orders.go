package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/jekabolt/delivery-analytics/internal/metrics"
)

// insertChunk bounds the number of rows per INSERT statement.
const insertChunk = 500

type orderStore struct {
	*SQLStore
}

// Orders returns an object implementing order interface
func (ms *SQLStore) Orders() dependency.Orders {
	return &orderStore{
		SQLStore: ms,
	}
}

func (ms *orderStore) Channels(ctx context.Context) ([]entity.ChannelMapping, error) {
	query := `SELECT ref, channel FROM channel ORDER BY ref`
	mappings, err := QueryListNamed[entity.ChannelMapping](ctx, ms.db, query, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("can't get channels: %w", err)
	}
	return mappings, nil
}

// buildOrdersQuery returns the page query for the filters. The caller binds
// from, to, limit and offset.
func buildOrdersQuery(f entity.OrderFilters, refs []string, filterChannels bool) (string, map[string]any) {
	var sb strings.Builder
	sb.WriteString(`
	SELECT
		id,
		company_id,
		brand_id,
		channel_ref,
		customer_id,
		order_date,
		total_price,
		promotions,
		refunds,
		is_new_customer
	FROM order_fact
	WHERE order_date >= :from AND order_date < :to`)

	params := map[string]any{}
	if len(f.CompanyIds) > 0 {
		sb.WriteString(" AND company_id IN (:companyIds)")
		params["companyIds"] = f.CompanyIds
	}
	if len(f.BrandIds) > 0 {
		sb.WriteString(" AND brand_id IN (:brandIds)")
		params["brandIds"] = f.BrandIds
	}
	if filterChannels {
		sb.WriteString(" AND channel_ref IN (:channelRefs)")
		params["channelRefs"] = refs
	}
	sb.WriteString(" ORDER BY order_date, id LIMIT :limit OFFSET :offset")
	return sb.String(), params
}

// FetchCustomerOrders reads every order matching the filters page by page,
// ordered by date. Pages are requested until a short page comes back.
func (ms *orderStore) FetchCustomerOrders(ctx context.Context, f entity.OrderFilters) (orders []entity.Order, err error) {
	const source = "store"
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(source, metrics.Status(err)).Observe(time.Since(start).Seconds())
	}()

	r, err := f.Range(ms.loc)
	if err != nil {
		return nil, err
	}

	catalog, err := ms.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gerr.ErrDataFetch, err)
	}
	logical := make(map[string]entity.ChannelId, len(catalog))
	for _, m := range catalog {
		logical[m.Ref] = m.Channel
	}

	refs, filterChannels := entity.ChannelRefs(catalog, f.ChannelIds)
	if filterChannels && len(refs) == 0 {
		return []entity.Order{}, nil
	}

	query, params := buildOrdersQuery(f, refs, filterChannels)
	params["from"] = r.From
	params["to"] = r.To
	params["limit"] = ms.pageSize

	orders = []entity.Order{}
	unmapped := map[string]struct{}{}
	for offset := 0; ; offset += ms.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", gerr.ErrDataFetch, err)
		}
		params["offset"] = offset

		page, err := QueryListNamed[entity.OrderFact](ctx, ms.db, query, params)
		if err != nil {
			return nil, fmt.Errorf("%w: page at offset %d: %w", gerr.ErrDataFetch, offset, err)
		}
		metrics.OrderPagesFetched.WithLabelValues(source).Inc()
		metrics.OrdersFetched.WithLabelValues(source).Add(float64(len(page)))
		slog.Default().DebugContext(ctx, "fetched order page",
			slog.Int("offset", offset),
			slog.Int("rows", len(page)),
		)

		for _, of := range page {
			ch, ok := logical[of.ChannelRef]
			if !ok {
				ch = entity.ChannelId(of.ChannelRef)
				unmapped[of.ChannelRef] = struct{}{}
			}
			orders = append(orders, entity.Order{
				CustomerId:    of.CustomerId,
				OrderDate:     of.OrderDate,
				TotalPrice:    of.TotalPrice,
				Promotions:    of.Promotions,
				Refunds:       of.Refunds,
				IsNewCustomer: of.IsNewCustomer,
				ChannelId:     ch,
				CompanyId:     of.CompanyId,
				BrandId:       of.BrandId,
				ChannelRef:    of.ChannelRef,
			})
		}
		if len(page) < ms.pageSize {
			break
		}
	}

	for ref := range unmapped {
		slog.Default().WarnContext(ctx, "order channel ref is missing from channel catalog",
			slog.String("channel_ref", ref),
		)
	}
	return orders, nil
}

func (ms *orderStore) AddChannels(ctx context.Context, mappings []entity.ChannelMapping) error {
	query := `INSERT INTO channel (ref, channel) VALUES (:ref, :channel)
	ON CONFLICT (ref) DO UPDATE SET channel = EXCLUDED.channel`
	if ms.driver == DriverMySQL {
		query = `INSERT INTO channel (ref, channel) VALUES (:ref, :channel)
		ON DUPLICATE KEY UPDATE channel = VALUES(channel)`
	}
	for _, m := range mappings {
		err := ExecNamed(ctx, ms.db, query, map[string]any{
			"ref":     m.Ref,
			"channel": string(m.Channel),
		})
		if err != nil {
			return fmt.Errorf("can't add channel %s: %w", m.Ref, err)
		}
	}
	return nil
}

func (ms *orderStore) AddOrderFacts(ctx context.Context, facts []entity.OrderFact) error {
	columns := []string{
		"company_id",
		"brand_id",
		"channel_ref",
		"customer_id",
		"order_date",
		"total_price",
		"promotions",
		"refunds",
		"is_new_customer",
	}
	for chunk := range slices.Chunk(facts, insertChunk) {
		rows := make([]map[string]any, 0, len(chunk))
		for _, f := range chunk {
			rows = append(rows, map[string]any{
				"company_id":      f.CompanyId,
				"brand_id":        f.BrandId,
				"channel_ref":     f.ChannelRef,
				"customer_id":     f.CustomerId,
				"order_date":      f.OrderDate,
				"total_price":     f.TotalPrice,
				"promotions":      f.Promotions,
				"refunds":         f.Refunds,
				"is_new_customer": f.IsNewCustomer,
			})
		}
		if err := BulkInsert(ctx, ms.db, "order_fact", columns, rows); err != nil {
			return fmt.Errorf("can't add order facts: %w", err)
		}
	}
	return nil
}
