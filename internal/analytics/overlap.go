package analytics

import (
	"sort"
	"strings"

	"github.com/jekabolt/delivery-analytics/internal/entity"
)

// MultiPlatform classifies customers by the set of channels they ordered through.
func MultiPlatform(orders []entity.Order) entity.MultiPlatformAnalysis {
	customers := groupByCustomer(orders)
	a := entity.MultiPlatformAnalysis{
		TotalCustomers:   len(customers),
		OverlapBreakdown: []entity.ChannelOverlap{},
	}

	combos := make(map[string]*entity.ChannelOverlap)
	for _, c := range customers {
		channels := sortedChannels(c.channels)
		if len(channels) == 1 {
			switch channels[0] {
			case entity.ChannelGlovo:
				a.GlovoOnly++
			case entity.ChannelUberEats:
				a.UberEatsOnly++
			case entity.ChannelJustEat:
				a.JustEatOnly++
			default:
				a.OtherOnly++
			}
			continue
		}

		a.MultiPlatform++
		parts := make([]string, len(channels))
		for i, ch := range channels {
			parts[i] = string(ch)
		}
		key := strings.Join(parts, "+")
		if o, ok := combos[key]; ok {
			o.Count++
			continue
		}
		combos[key] = &entity.ChannelOverlap{Channels: channels, Count: 1}
	}

	keys := make([]string, 0, len(combos))
	for key := range combos {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := combos[keys[i]].Count, combos[keys[j]].Count
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	for _, key := range keys {
		a.OverlapBreakdown = append(a.OverlapBreakdown, *combos[key])
	}
	a.MultiPlatformPct = round2(pct(a.MultiPlatform, a.TotalCustomers))
	return a
}

// sortedChannels returns the channel set in canonical order.
func sortedChannels(set map[entity.ChannelId]struct{}) []entity.ChannelId {
	channels := make([]entity.ChannelId, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		ri, rj := entity.ChannelRank(channels[i]), entity.ChannelRank(channels[j])
		if ri != rj {
			return ri < rj
		}
		return channels[i] < channels[j]
	})
	return channels
}
