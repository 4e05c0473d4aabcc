package entity

import "time"

// ChurnDigest is the e-mail summary of at-risk customers for a set of recipients.
type ChurnDigest struct {
	Name        string
	Recipients  []string
	Filters     OrderFilters
	GeneratedAt time.Time
	Entries     []CustomerChurnRisk
}

// HighRiskCount returns the number of entries classified as high risk.
func (d *ChurnDigest) HighRiskCount() int {
	n := 0
	for _, e := range d.Entries {
		if e.Risk == ChurnRiskHigh {
			n++
		}
	}
	return n
}

// SnapshotObject describes an uploaded analytics snapshot.
type SnapshotObject struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}
