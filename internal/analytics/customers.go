package analytics

import (
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/shopspring/decimal"
)

// CustomerMetrics reduces orders into summary statistics.
//
// A customer counts as new when any of its orders carries the upstream
// new-customer flag, not only the chronologically first one.
func CustomerMetrics(orders []entity.Order) entity.CustomerMetrics {
	m := entity.CustomerMetrics{
		TotalRevenue:    decimal.Zero,
		TotalPromotions: decimal.Zero,
		TotalRefunds:    decimal.Zero,
		AvgTicket:       decimal.Zero,
	}
	for _, o := range orders {
		m.TotalRevenue = m.TotalRevenue.Add(o.TotalPrice)
		m.TotalPromotions = m.TotalPromotions.Add(o.Promotions)
		m.TotalRefunds = m.TotalRefunds.Add(o.Refunds)
	}
	m.TotalOrders = len(orders)

	customers := groupByCustomer(orders)
	m.TotalCustomers = len(customers)

	var repeat int
	var freqSum float64
	for _, c := range customers {
		if c.isNew {
			m.NewCustomers++
		}
		if len(c.orders) >= 2 {
			repeat++
			freqSum += c.avgIntervalDays()
		}
	}
	m.ReturningCustomers = m.TotalCustomers - m.NewCustomers

	if m.TotalOrders > 0 {
		m.AvgTicket = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalOrders))).Round(2)
	}
	if m.TotalCustomers > 0 {
		m.AvgOrdersPerCustomer = round2(float64(m.TotalOrders) / float64(m.TotalCustomers))
	}
	if repeat > 0 {
		m.AvgFrequencyDays = round2(freqSum / float64(repeat))
	}
	m.RetentionRate = round2(pct(repeat, m.TotalCustomers))
	return m
}

// compareCustomerMetrics returns the change in percent of every comparable field,
// nil when the previous value is zero.
func compareCustomerMetrics(cur, prev entity.CustomerMetrics) map[string]*float64 {
	return map[string]*float64{
		"totalCustomers":       changePctInt(cur.TotalCustomers, prev.TotalCustomers),
		"newCustomers":         changePctInt(cur.NewCustomers, prev.NewCustomers),
		"returningCustomers":   changePctInt(cur.ReturningCustomers, prev.ReturningCustomers),
		"totalOrders":          changePctInt(cur.TotalOrders, prev.TotalOrders),
		"totalRevenue":         changePct(cur.TotalRevenue, prev.TotalRevenue),
		"avgTicket":            changePct(cur.AvgTicket, prev.AvgTicket),
		"avgOrdersPerCustomer": changePctFloat(cur.AvgOrdersPerCustomer, prev.AvgOrdersPerCustomer),
		"avgFrequencyDays":     changePctFloat(cur.AvgFrequencyDays, prev.AvgFrequencyDays),
		"retentionRate":        changePctFloat(cur.RetentionRate, prev.RetentionRate),
	}
}

func changePct(current, previous decimal.Decimal) *float64 {
	if previous.IsZero() {
		return nil
	}
	diff := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	f, _ := diff.Round(2).Float64()
	return &f
}

func changePctInt(current, previous int) *float64 {
	if previous == 0 {
		return nil
	}
	f := round2(float64(current-previous) / float64(previous) * 100)
	return &f
}

func changePctFloat(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	f := round2((current - previous) / previous * 100)
	return &f
}
