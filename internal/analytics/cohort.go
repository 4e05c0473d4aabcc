package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
)

// maxCohorts is the number of most recent cohorts returned.
const maxCohorts = 8

// periodStart truncates t to the start of its week (Monday) or month in loc.
func periodStart(t time.Time, g entity.CohortGranularity, loc *time.Location) time.Time {
	t = t.In(loc)
	if g == entity.CohortWeek {
		// Go weekday: 0=Sun, 1=Mon
		daysBack := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-daysBack, 0, 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// periodKey formats the period containing t as YYYY-MM or ISO YYYY-Www.
func periodKey(t time.Time, g entity.CohortGranularity, loc *time.Location) string {
	t = t.In(loc)
	if g == entity.CohortWeek {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return t.Format("2006-01")
}

// BuildCohorts groups customers by the period of their first order and computes
// retention per period offset. Offsets advance along the ordered list of periods
// with at least one order; offsets past the last observed period are not reported.
func BuildCohorts(orders []entity.Order, g entity.CohortGranularity, loc *time.Location) []entity.CohortData {
	if loc == nil {
		loc = time.UTC
	}
	if g != entity.CohortWeek {
		g = entity.CohortMonth
	}
	customers := groupByCustomer(orders)
	if len(customers) == 0 {
		return []entity.CohortData{}
	}

	starts := make(map[string]time.Time)
	purchased := make([]map[string]struct{}, len(customers))
	for i, c := range customers {
		purchased[i] = make(map[string]struct{}, len(c.orders))
		for _, o := range c.orders {
			key := periodKey(o.OrderDate, g, loc)
			purchased[i][key] = struct{}{}
			if _, ok := starts[key]; !ok {
				starts[key] = periodStart(o.OrderDate, g, loc)
			}
		}
	}

	periods := make([]string, 0, len(starts))
	for key := range starts {
		periods = append(periods, key)
	}
	sort.Strings(periods)
	index := make(map[string]int, len(periods))
	for i, key := range periods {
		index[key] = i
	}

	members := make(map[string][]int)
	for i, c := range customers {
		key := periodKey(c.first(), g, loc)
		members[key] = append(members[key], i)
	}

	keys := make([]string, 0, len(members))
	for key := range members {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > maxCohorts {
		keys = keys[len(keys)-maxCohorts:]
	}

	horizon := g.Horizon()
	result := make([]entity.CohortData, 0, len(keys))
	for _, key := range keys {
		base := index[key]
		ids := members[key]
		size := len(ids)

		offsets := horizon + 1
		if remaining := len(periods) - base; remaining < offsets {
			offsets = remaining
		}

		active := make([]int, offsets)
		// firstReturn[k] counts customers whose first purchase after acquisition is at offset k
		firstReturn := make([]int, offsets)
		for _, id := range ids {
			returned := false
			for i := 0; i < offsets; i++ {
				if _, ok := purchased[id][periods[base+i]]; !ok {
					continue
				}
				active[i]++
				if i > 0 && !returned {
					firstReturn[i]++
					returned = true
				}
			}
		}

		cohort := entity.CohortData{
			Period:              key,
			PeriodStart:         starts[key],
			Size:                size,
			Retention:           make([]float64, offsets),
			CumulativeRetention: make([]float64, offsets),
		}
		cumulative := 0
		for i := 0; i < offsets; i++ {
			cohort.Retention[i] = round2(pct(active[i], size))
			if i == 0 {
				cohort.CumulativeRetention[i] = 100
				continue
			}
			cumulative += firstReturn[i]
			cohort.CumulativeRetention[i] = round2(pct(cumulative, size))
		}
		result = append(result, cohort)
	}
	return result
}
