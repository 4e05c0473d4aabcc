package form

import (
	"errors"
	"net/url"
	"testing"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalyticsQuery(t *testing.T) {
	q := url.Values{
		"company_id":  {"1,2", "3"},
		"brand_id":    {"7"},
		"channel":     {"Glovo, ubereats"},
		"start_date":  {"2025-01-01"},
		"end_date":    {"2025-01-31"},
		"compare":     {"true"},
		"granularity": {"WEEK"},
		"limit":       {"5"},
	}
	r, err := ParseAnalyticsQuery(q)
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, []int{1, 2, 3}, r.CompanyIds)
	assert.True(t, r.Compare)
	assert.Equal(t, 5, r.Limit)
	assert.Equal(t, entity.CohortWeek, r.CohortGranularity())
	assert.Equal(t, entity.OrderFilters{
		CompanyIds: []int{1, 2, 3},
		BrandIds:   []int{7},
		ChannelIds: []entity.ChannelId{entity.ChannelGlovo, entity.ChannelUberEats},
		StartDate:  "2025-01-01",
		EndDate:    "2025-01-31",
	}, r.Filters())
}

func TestParseAnalyticsQuery_BadNumbers(t *testing.T) {
	_, err := ParseAnalyticsQuery(url.Values{"company_id": {"abc"}, "limit": {"ten"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, gerr.ErrInvalidRequest)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "company_id")
	assert.Contains(t, ve.Fields, "limit")
}

func TestAnalyticsQuery_Validate(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{name: "missing start", query: url.Values{"end_date": {"2025-01-31"}}, field: "start_date"},
		{name: "bad end format", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"31/01/2025"}}, field: "end_date"},
		{name: "end before start", query: url.Values{"start_date": {"2025-02-01"}, "end_date": {"2025-01-31"}}, field: "end_date"},
		{name: "unknown channel", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "channel": {"deliveroo"}}, field: "channel"},
		{name: "bad granularity", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "granularity": {"day"}}, field: "granularity"},
		{name: "limit too high", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "limit": {"5000"}}, field: "limit"},
		{name: "non positive company", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "company_id": {"0"}}, field: "company_id"},
		{name: "zero brand", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "brand_id": {"0"}}, field: "brand_id"},
		{name: "negative brand", query: url.Values{"start_date": {"2025-01-01"}, "end_date": {"2025-01-31"}, "brand_id": {"4", "-2"}}, field: "brand_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseAnalyticsQuery(tt.query)
			require.NoError(t, err)
			err = r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, gerr.ErrInvalidRequest)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "manager@example.com", Password: "pw"}).Validate())
	assert.ErrorIs(t, (&LoginRequest{Email: "not-an-email", Password: "pw"}).Validate(), gerr.ErrInvalidRequest)
	assert.ErrorIs(t, (&LoginRequest{Email: "manager@example.com"}).Validate(), gerr.ErrInvalidRequest)
}
