package entity

import (
	"fmt"
	"slices"
	"time"

	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/shopspring/decimal"
)

// DateLayout is the format of filter dates.
const DateLayout = "2006-01-02"

// ChannelId is a logical delivery platform.
type ChannelId string

const (
	ChannelGlovo    ChannelId = "glovo"
	ChannelUberEats ChannelId = "ubereats"
	ChannelJustEat  ChannelId = "justeat"
)

// Channels lists the logical channels in canonical order.
var Channels = []ChannelId{ChannelGlovo, ChannelUberEats, ChannelJustEat}

// ChannelRank returns the canonical position of a channel, unknown channels sort last.
func ChannelRank(c ChannelId) int {
	for i, ch := range Channels {
		if ch == c {
			return i
		}
	}
	return len(Channels)
}

func (c ChannelId) Valid() bool {
	return ChannelRank(c) < len(Channels)
}

// Order is a single order fact as fetched for analysis.
type Order struct {
	CustomerId    string
	OrderDate     time.Time
	TotalPrice    decimal.Decimal
	Promotions    decimal.Decimal
	Refunds       decimal.Decimal
	IsNewCustomer bool
	ChannelId     ChannelId
	CompanyId     int
	BrandId       int
	// ChannelRef is the upstream integration identifier the order came through.
	ChannelRef string
}

// OrderFact represents the order_fact table
type OrderFact struct {
	ID            int64           `db:"id"`
	CompanyId     int             `db:"company_id"`
	BrandId       int             `db:"brand_id"`
	ChannelRef    string          `db:"channel_ref"`
	CustomerId    string          `db:"customer_id"`
	OrderDate     time.Time       `db:"order_date"`
	TotalPrice    decimal.Decimal `db:"total_price"`
	Promotions    decimal.Decimal `db:"promotions"`
	Refunds       decimal.Decimal `db:"refunds"`
	IsNewCustomer bool            `db:"is_new_customer"`
}

// ChannelMapping represents the channel table
type ChannelMapping struct {
	Ref     string    `db:"ref"`
	Channel ChannelId `db:"channel"`
}

// ChannelRefs resolves requested logical channels into physical refs. filter is
// false when no channel clause is needed, either because nothing was requested
// or because the request covers every logical channel of the catalog.
func ChannelRefs(catalog []ChannelMapping, requested []ChannelId) (refs []string, filter bool) {
	if len(requested) == 0 {
		return nil, false
	}

	byChannel := make(map[ChannelId][]string)
	for _, m := range catalog {
		byChannel[m.Channel] = append(byChannel[m.Channel], m.Ref)
	}

	covered := 0
	for ch := range byChannel {
		if slices.Contains(requested, ch) {
			covered++
		}
	}
	if len(byChannel) > 0 && covered == len(byChannel) {
		return nil, false
	}

	refs = []string{}
	seen := make(map[ChannelId]struct{}, len(requested))
	for _, ch := range requested {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		refs = append(refs, byChannel[ch]...)
	}
	slices.Sort(refs)
	return refs, true
}

// OrderFilters selects orders for analysis. Dates are YYYY-MM-DD and inclusive.
type OrderFilters struct {
	CompanyIds []int       `json:"companyIds,omitempty"`
	BrandIds   []int       `json:"brandIds,omitempty"`
	ChannelIds []ChannelId `json:"channelIds,omitempty"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
}

// IsEmpty reports whether no tenant scoping filter is set.
func (f OrderFilters) IsEmpty() bool {
	return len(f.CompanyIds) == 0 && len(f.BrandIds) == 0 && len(f.ChannelIds) == 0
}

// Range resolves the inclusive date filter into the half-open window
// [StartDate 00:00, EndDate+1 00:00) in loc.
func (f OrderFilters) Range(loc *time.Location) (TimeRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, err := time.ParseInLocation(DateLayout, f.StartDate, loc)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: start date %q", gerr.ErrInvalidRequest, f.StartDate)
	}
	to, err := time.ParseInLocation(DateLayout, f.EndDate, loc)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: end date %q", gerr.ErrInvalidRequest, f.EndDate)
	}
	if to.Before(from) {
		return TimeRange{}, fmt.Errorf("%w: end date before start date", gerr.ErrInvalidRequest)
	}
	return TimeRange{From: from, To: to.AddDate(0, 0, 1)}, nil
}

// Previous returns filters for the window of the same number of days that
// ends right before StartDate.
func (f OrderFilters) Previous(loc *time.Location) (OrderFilters, error) {
	r, err := f.Range(loc)
	if err != nil {
		return OrderFilters{}, err
	}
	days := int(r.To.Sub(r.From).Hours()/24 + 0.5)
	prev := f
	prev.StartDate = r.From.AddDate(0, 0, -days).Format(DateLayout)
	prev.EndDate = r.From.AddDate(0, 0, -1).Format(DateLayout)
	return prev, nil
}
