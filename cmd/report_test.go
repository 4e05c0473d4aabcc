package main

import (
	"strings"
	"testing"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func testSnapshot() *entity.AnalyticsSnapshot {
	return &entity.AnalyticsSnapshot{
		Filters: entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-03-31"},
		Customers: entity.CustomerMetrics{
			TotalCustomers: 1234,
			NewCustomers:   1000,
			TotalOrders:    5678,
			TotalRevenue:   decimal.RequireFromString("98765.4"),
			RetentionRate:  42.5,
		},
		Cohorts: []entity.CohortData{{Period: "2025-01", Size: 10, Retention: []float64{100, 40}}},
		Distribution: entity.SpendDistribution{
			Segments: []entity.SpendSegment{{Segment: entity.SegmentSingleOrder, Count: 3, Revenue: 30}},
		},
		ChurnRisk: []entity.CustomerChurnRisk{{
			CustomerId:    "c1",
			Risk:          entity.ChurnRiskHigh,
			RiskScore:     3.2,
			OrderCount:    4,
			LastOrderDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
	}
}

func TestWriteReport(t *testing.T) {
	out := &strings.Builder{}
	writeReport(out, message.NewPrinter(language.English), testSnapshot())
	s := out.String()

	assert.Contains(t, s, "Customer report 2025-01-01 to 2025-03-31")
	assert.Contains(t, s, "1,234 (1,000 new, 0 returning)")
	assert.Contains(t, s, "98,765.40")
	assert.Contains(t, s, "Retention        42.5%")
	assert.Contains(t, s, "2025-01")
	assert.Contains(t, s, "Single Order")
	assert.Contains(t, s, "High")
	assert.Contains(t, s, "last 2025-01-02")
}

func TestWriteReport_NoChurn(t *testing.T) {
	snap := testSnapshot()
	snap.ChurnRisk = nil
	out := &strings.Builder{}
	writeReport(out, message.NewPrinter(language.English), snap)
	assert.Contains(t, out.String(), "No customers at risk")
}

func TestReportQuery(t *testing.T) {
	reportFrom, reportTo = "2025-01-01", "2025-01-31"
	reportCompanies, reportChannels = []int{3}, []string{"Glovo"}
	reportGranularity, reportLimit = "week", 5
	t.Cleanup(func() { reportCompanies, reportChannels = nil, nil })

	q, err := reportQuery()
	require.NoError(t, err)
	f := q.Filters()
	assert.Equal(t, []int{3}, f.CompanyIds)
	assert.Equal(t, []entity.ChannelId{entity.ChannelGlovo}, f.ChannelIds)
	assert.Equal(t, entity.CohortWeek, q.CohortGranularity())

	reportTo = "2024-12-31"
	_, err = reportQuery()
	assert.Error(t, err)
}
