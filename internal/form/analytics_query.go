package form

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jekabolt/delivery-analytics/internal/entity"
)

const maxChurnLimit = 1000

// AnalyticsQuery holds the query parameters shared by analytics endpoints.
type AnalyticsQuery struct {
	CompanyIds  []int    `json:"company_id"`
	BrandIds    []int    `json:"brand_id"`
	Channels    []string `json:"channel"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Compare     bool     `json:"compare"`
	Granularity string   `json:"granularity"`
	Limit       int      `json:"limit"`
}

// ParseAnalyticsQuery reads company_id, brand_id and channel (repeated or comma
// separated), start_date, end_date, compare, granularity and limit.
func ParseAnalyticsQuery(q url.Values) (*AnalyticsQuery, error) {
	fields := map[string]string{}
	r := &AnalyticsQuery{
		Channels:    splitList(q["channel"]),
		StartDate:   strings.TrimSpace(q.Get("start_date")),
		EndDate:     strings.TrimSpace(q.Get("end_date")),
		Granularity: strings.ToLower(strings.TrimSpace(q.Get("granularity"))),
	}

	var err error
	if r.CompanyIds, err = parseInts(q["company_id"]); err != nil {
		fields["company_id"] = formatErrMsg(err.Error())
	}
	if r.BrandIds, err = parseInts(q["brand_id"]); err != nil {
		fields["brand_id"] = formatErrMsg(err.Error())
	}
	if s := q.Get("compare"); s != "" {
		if r.Compare, err = strconv.ParseBool(s); err != nil {
			fields["compare"] = "Must be a boolean."
		}
	}
	if s := q.Get("limit"); s != "" {
		if r.Limit, err = strconv.Atoi(s); err != nil {
			fields["limit"] = "Must be an integer."
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return r, nil
}

func (r *AnalyticsQuery) Validate() error {
	channels := make([]any, len(entity.Channels))
	for i, ch := range entity.Channels {
		channels[i] = string(ch)
	}
	return ValidateStruct(r,
		v.Field(&r.StartDate, v.Required, v.Date(entity.DateLayout)),
		v.Field(&r.EndDate, v.Required, v.Date(entity.DateLayout), v.By(r.notBeforeStart)),
		v.Field(&r.CompanyIds, v.Each(v.Required, v.Min(1))),
		v.Field(&r.BrandIds, v.Each(v.Required, v.Min(1))),
		v.Field(&r.Channels, v.Each(v.In(channels...))),
		v.Field(&r.Granularity, v.In(string(entity.CohortWeek), string(entity.CohortMonth))),
		v.Field(&r.Limit, v.Min(0), v.Max(maxChurnLimit)),
	)
}

func (r *AnalyticsQuery) notBeforeStart(value interface{}) error {
	end, _ := value.(string)
	// both dates share one layout so lexical order is date order
	if r.StartDate != "" && end != "" && end < r.StartDate {
		return fmt.Errorf("must not be before start_date")
	}
	return nil
}

// Filters converts the query into order filters.
func (r *AnalyticsQuery) Filters() entity.OrderFilters {
	f := entity.OrderFilters{
		CompanyIds: r.CompanyIds,
		BrandIds:   r.BrandIds,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
	}
	for _, ch := range r.Channels {
		f.ChannelIds = append(f.ChannelIds, entity.ChannelId(ch))
	}
	return f
}

// CohortGranularity returns the requested granularity, month by default.
func (r *AnalyticsQuery) CohortGranularity() entity.CohortGranularity {
	if r.Granularity == string(entity.CohortWeek) {
		return entity.CohortWeek
	}
	return entity.CohortMonth
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseInts(values []string) ([]int, error) {
	var out []int
	for _, s := range splitList(values) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		out = append(out, n)
	}
	return out, nil
}
