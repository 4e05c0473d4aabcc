package analytics

import (
	"math"
	"sort"

	"github.com/jekabolt/delivery-analytics/internal/entity"
)

const histogramBuckets = 10

// percentile picks sorted[floor(n*p)] without interpolation.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// histogram splits [min, max] into equal-width buckets. All buckets are
// half-open except the last one which also contains max.
func histogram(sorted []float64) []entity.HistogramBucket {
	if len(sorted) == 0 {
		return []entity.HistogramBucket{}
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	width := (hi - lo) / histogramBuckets

	buckets := make([]entity.HistogramBucket, histogramBuckets)
	for i := range buckets {
		buckets[i].Min = round2(lo + float64(i)*width)
		buckets[i].Max = round2(lo + float64(i+1)*width)
	}
	buckets[histogramBuckets-1].Max = round2(hi)

	for _, v := range sorted {
		idx := histogramBuckets - 1
		if width > 0 && v < hi {
			idx = int((v - lo) / width)
			if idx >= histogramBuckets {
				idx = histogramBuckets - 1
			}
		}
		buckets[idx].Count++
	}
	return buckets
}

// topShare returns the revenue share of the top ceil(n*p) spenders. desc must be
// sorted in descending order.
func topShare(desc []float64, total, p float64) float64 {
	if total == 0 || len(desc) == 0 {
		return 0
	}
	k := int(math.Ceil(float64(len(desc)) * p))
	if k > len(desc) {
		k = len(desc)
	}
	var sum float64
	for _, v := range desc[:k] {
		sum += v
	}
	return sum / total * 100
}

// gini computes the Gini coefficient with the sorted-rank formula
// sum((2i-n-1)*x_i) / (n*sum(x)), equal to sum|xi-xj| / (2*n^2*mean).
func gini(asc []float64, total float64) float64 {
	n := len(asc)
	if n == 0 || total == 0 {
		return 0
	}
	var weighted float64
	for i, v := range asc {
		weighted += float64(2*(i+1)-n-1) * v
	}
	g := weighted / (float64(n) * total)
	return math.Max(0, math.Min(1, g))
}

// SpendDistribution analyzes total spend per customer: histogram, percentiles,
// segments and revenue concentration.
func SpendDistribution(orders []entity.Order) entity.SpendDistribution {
	customers := groupByCustomer(orders)
	d := entity.SpendDistribution{
		TotalCustomers: len(customers),
		Histogram:      []entity.HistogramBucket{},
	}

	segments := make(map[entity.SpendSegmentName]*entity.SpendSegment, len(entity.SpendSegments))
	d.Segments = make([]entity.SpendSegment, len(entity.SpendSegments))
	for i, name := range entity.SpendSegments {
		d.Segments[i].Segment = name
		segments[name] = &d.Segments[i]
	}
	if len(customers) == 0 {
		return d
	}

	spends := make([]float64, len(customers))
	var total float64
	for i, c := range customers {
		spends[i] = c.spend.InexactFloat64()
		total += spends[i]
	}
	sorted := make([]float64, len(spends))
	copy(sorted, spends)
	sort.Float64s(sorted)

	d.Mean = round2(total / float64(len(sorted)))
	d.Median = percentile(sorted, 0.5)
	d.P75 = percentile(sorted, 0.75)
	d.P90 = percentile(sorted, 0.9)
	d.Histogram = histogram(sorted)
	d.Thresholds = entity.SpendThresholds{
		P30: percentile(sorted, 0.3),
		P70: percentile(sorted, 0.7),
		P90: d.P90,
	}

	for i, c := range customers {
		s := segments[segmentFor(spends[i], len(c.orders), d.Thresholds)]
		s.Count++
		s.Revenue += spends[i]
	}
	for i := range d.Segments {
		s := &d.Segments[i]
		if s.Count > 0 {
			s.AvgSpend = round2(s.Revenue / float64(s.Count))
		}
		s.Revenue = round2(s.Revenue)
	}

	desc := make([]float64, len(sorted))
	for i, v := range sorted {
		desc[len(sorted)-1-i] = v
	}
	d.Concentration = entity.RevenueConcentration{
		Top10Pct: round2(topShare(desc, total, 0.1)),
		Top20Pct: round2(topShare(desc, total, 0.2)),
		Top50Pct: round2(topShare(desc, total, 0.5)),
		Gini:     gini(sorted, total),
	}
	return d
}

func segmentFor(spend float64, orders int, t entity.SpendThresholds) entity.SpendSegmentName {
	switch {
	case orders <= 1:
		return entity.SegmentSingleOrder
	case spend >= t.P90:
		return entity.SegmentVIP
	case spend >= t.P70:
		return entity.SegmentHigh
	case spend >= t.P30:
		return entity.SegmentMedium
	default:
		return entity.SegmentLow
	}
}
