package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/shopspring/decimal"
)

const hoursPerDay = 24

// customerOrders holds one customer's orders sorted by date.
type customerOrders struct {
	id       string
	orders   []entity.Order
	spend    decimal.Decimal
	isNew    bool
	channels map[entity.ChannelId]struct{}
}

func (c *customerOrders) first() time.Time {
	return c.orders[0].OrderDate
}

func (c *customerOrders) last() time.Time {
	return c.orders[len(c.orders)-1].OrderDate
}

// avgIntervalDays is the mean gap between consecutive orders, 0 for a single order.
func (c *customerOrders) avgIntervalDays() float64 {
	n := len(c.orders)
	if n < 2 {
		return 0
	}
	return c.last().Sub(c.first()).Hours() / hoursPerDay / float64(n-1)
}

// groupByCustomer partitions orders by customer. The input slice is not modified
// and the result is sorted by customer id.
func groupByCustomer(orders []entity.Order) []*customerOrders {
	byID := make(map[string]*customerOrders)
	for _, o := range orders {
		c, ok := byID[o.CustomerId]
		if !ok {
			c = &customerOrders{
				id:       o.CustomerId,
				spend:    decimal.Zero,
				channels: make(map[entity.ChannelId]struct{}),
			}
			byID[o.CustomerId] = c
		}
		c.orders = append(c.orders, o)
		c.spend = c.spend.Add(o.TotalPrice)
		c.channels[o.ChannelId] = struct{}{}
		if o.IsNewCustomer {
			c.isNew = true
		}
	}

	result := make([]*customerOrders, 0, len(byID))
	for _, c := range byID {
		sort.SliceStable(c.orders, func(i, j int) bool {
			return c.orders[i].OrderDate.Before(c.orders[j].OrderDate)
		})
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// pct returns part/total*100, or 0 when total is 0.
func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
