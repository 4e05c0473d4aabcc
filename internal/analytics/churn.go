package analytics

import (
	"sort"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
)

const (
	DefaultChurnLimit = 20

	highRiskScore   = 2.0
	mediumRiskScore = 1.5
)

func classifyChurn(score float64) entity.ChurnRisk {
	switch {
	case score > highRiskScore:
		return entity.ChurnRiskHigh
	case score > mediumRiskScore:
		return entity.ChurnRiskMedium
	default:
		return entity.ChurnRiskLow
	}
}

// ScoreChurnRisk flags customers whose silence since their last order is long
// compared to their usual order interval. Only customers with at least two
// orders are scored, low risk customers are left out. Entries are sorted by
// descending score and truncated to limit (DefaultChurnLimit when limit <= 0).
func ScoreChurnRisk(orders []entity.Order, asOf time.Time, limit int) []entity.CustomerChurnRisk {
	if limit <= 0 {
		limit = DefaultChurnLimit
	}

	type scored struct {
		entry entity.CustomerChurnRisk
		score float64
	}
	var candidates []scored
	for _, c := range groupByCustomer(orders) {
		if len(c.orders) < 2 {
			continue
		}
		days := int(asOf.Sub(c.last()).Hours() / hoursPerDay)
		if days < 0 {
			days = 0
		}
		avg := c.avgIntervalDays()
		var score float64
		if avg > 0 {
			score = float64(days) / avg
		}
		risk := classifyChurn(score)
		if risk == entity.ChurnRiskLow {
			continue
		}
		candidates = append(candidates, scored{
			score: score,
			entry: entity.CustomerChurnRisk{
				CustomerId:           c.id,
				OrderCount:           len(c.orders),
				TotalSpent:           c.spend,
				LastOrderDate:        c.last(),
				DaysSinceLastOrder:   days,
				AvgDaysBetweenOrders: round2(avg),
				RiskScore:            round2(score),
				Risk:                 risk,
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]entity.CustomerChurnRisk, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.entry)
	}
	return result
}
