package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerMetrics contains the summary statistics for a set of orders.
type CustomerMetrics struct {
	TotalCustomers       int             `json:"totalCustomers"`
	NewCustomers         int             `json:"newCustomers"`
	ReturningCustomers   int             `json:"returningCustomers"`
	TotalOrders          int             `json:"totalOrders"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	TotalPromotions      decimal.Decimal `json:"totalPromotions"`
	TotalRefunds         decimal.Decimal `json:"totalRefunds"`
	AvgTicket            decimal.Decimal `json:"avgTicket"`
	AvgOrdersPerCustomer float64         `json:"avgOrdersPerCustomer"`
	AvgFrequencyDays     float64         `json:"avgFrequencyDays"`
	RetentionRate        float64         `json:"retentionRate"`
}

// TimeRange is a half-open [From, To) window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CustomerMetricsComparison pairs the metrics of a period with the preceding period of the same length.
type CustomerMetricsComparison struct {
	Period        TimeRange           `json:"period"`
	ComparePeriod TimeRange           `json:"comparePeriod"`
	Current       CustomerMetrics     `json:"current"`
	Previous      CustomerMetrics     `json:"previous"`
	ChangePct     map[string]*float64 `json:"changePct"`
}

// CohortGranularity controls the size of a cohort period.
type CohortGranularity string

const (
	CohortWeek  CohortGranularity = "week"
	CohortMonth CohortGranularity = "month"
)

// Horizon is the number of period offsets tracked after acquisition.
func (g CohortGranularity) Horizon() int {
	if g == CohortWeek {
		return 8
	}
	return 6
}

type CohortData struct {
	Period              string    `json:"period"`
	PeriodStart         time.Time `json:"periodStart"`
	Size                int       `json:"size"`
	Retention           []float64 `json:"retention"`
	CumulativeRetention []float64 `json:"cumulativeRetention"`
}

type ChurnRisk string

const (
	ChurnRiskHigh   ChurnRisk = "high"
	ChurnRiskMedium ChurnRisk = "medium"
	ChurnRiskLow    ChurnRisk = "low"
)

type CustomerChurnRisk struct {
	CustomerId           string          `json:"customerId"`
	OrderCount           int             `json:"orderCount"`
	TotalSpent           decimal.Decimal `json:"totalSpent"`
	LastOrderDate        time.Time       `json:"lastOrderDate"`
	DaysSinceLastOrder   int             `json:"daysSinceLastOrder"`
	AvgDaysBetweenOrders float64         `json:"avgDaysBetweenOrders"`
	RiskScore            float64         `json:"riskScore"`
	Risk                 ChurnRisk       `json:"risk"`
}

type SpendSegmentName string

const (
	SegmentVIP         SpendSegmentName = "vip"
	SegmentHigh        SpendSegmentName = "high"
	SegmentMedium      SpendSegmentName = "medium"
	SegmentLow         SpendSegmentName = "low"
	SegmentSingleOrder SpendSegmentName = "single_order"
)

// SpendSegments lists segments in presentation order.
var SpendSegments = []SpendSegmentName{SegmentVIP, SegmentHigh, SegmentMedium, SegmentLow, SegmentSingleOrder}

type HistogramBucket struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

type SpendSegment struct {
	Segment  SpendSegmentName `json:"segment"`
	Count    int              `json:"count"`
	Revenue  float64          `json:"revenue"`
	AvgSpend float64          `json:"avgSpend"`
}

type SpendThresholds struct {
	P30 float64 `json:"p30"`
	P70 float64 `json:"p70"`
	P90 float64 `json:"p90"`
}

type RevenueConcentration struct {
	Top10Pct float64 `json:"top10Pct"`
	Top20Pct float64 `json:"top20Pct"`
	Top50Pct float64 `json:"top50Pct"`
	Gini     float64 `json:"gini"`
}

type SpendDistribution struct {
	TotalCustomers int                  `json:"totalCustomers"`
	Mean           float64              `json:"mean"`
	Median         float64              `json:"median"`
	P75            float64              `json:"p75"`
	P90            float64              `json:"p90"`
	Histogram      []HistogramBucket    `json:"histogram"`
	Thresholds     SpendThresholds      `json:"thresholds"`
	Segments       []SpendSegment       `json:"segments"`
	Concentration  RevenueConcentration `json:"concentration"`
}

type ChannelOverlap struct {
	Channels []ChannelId `json:"channels"`
	Count    int         `json:"count"`
}

type MultiPlatformAnalysis struct {
	TotalCustomers   int              `json:"totalCustomers"`
	GlovoOnly        int              `json:"glovoOnly"`
	UberEatsOnly     int              `json:"ubereatsOnly"`
	JustEatOnly      int              `json:"justeatOnly"`
	OtherOnly        int              `json:"otherOnly"`
	MultiPlatform    int              `json:"multiPlatform"`
	MultiPlatformPct float64          `json:"multiPlatformPct"`
	OverlapBreakdown []ChannelOverlap `json:"overlapBreakdown"`
}

// AnalyticsSnapshot bundles every analysis computed over one fetch.
type AnalyticsSnapshot struct {
	Filters       OrderFilters          `json:"filters"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	OrdersCount   int                   `json:"ordersCount"`
	Customers     CustomerMetrics       `json:"customers"`
	Cohorts       []CohortData          `json:"cohorts"`
	ChurnRisk     []CustomerChurnRisk   `json:"churnRisk"`
	Distribution  SpendDistribution     `json:"distribution"`
	MultiPlatform MultiPlatformAnalysis `json:"multiPlatform"`
}
