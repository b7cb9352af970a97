// Package reports reduces raw audit records into dashboard KPIs and per-store
// trend reports. Everything here is pure: no I/O, deterministic for a given input.
package reports

import (
	"math"
	"sort"
	"time"

	"github.com/auditdesk/auditdesk/internal/models"
)

// Trend is the direction of a store's recent audit scores.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

const (
	trendWindow = 3
	// scores must move by more than this many points to change the trend
	trendBand = 2.0
)

const unknownStore = "Unknown"

// StoreReport is one row of the per-store report.
type StoreReport struct {
	StoreID      string    `json:"store_id"`
	StoreName    string    `json:"store_name"`
	TotalAudits  int       `json:"total_audits"`
	AverageScore float64   `json:"average_score"`
	LastAuditAt  time.Time `json:"last_audit_at"`
	Trend        Trend     `json:"trend"`
}

// round1 rounds half up to one decimal place.
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// AverageScore is the mean of all present scores rounded to one decimal.
// It is 0 when no record carries a score.
func AverageScore(records []models.Audit) float64 {
	scores := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}
	return round1(mean(scores))
}

// ClassifyTrend compares the mean of the three newest scores with the mean
// of the three before them. An empty group takes the other group's mean, so
// fewer than four scores always classify as stable.
func ClassifyTrend(newestFirst []float64) Trend {
	recent := newestFirst[:min(trendWindow, len(newestFirst))]
	var older []float64
	if len(newestFirst) > trendWindow {
		older = newestFirst[trendWindow:min(2*trendWindow, len(newestFirst))]
	}

	recentMean, olderMean := mean(recent), mean(older)
	if len(older) == 0 {
		olderMean = recentMean
	}

	switch {
	case recentMean > olderMean+trendBand:
		return TrendUp
	case recentMean < olderMean-trendBand:
		return TrendDown
	}
	return TrendStable
}

type storeGroup struct {
	name   string
	scores []float64
	last   time.Time
}

// PerStoreReport groups completed, scored audits by store. Stores without such
// an audit do not appear. Rows are sorted by average score, highest first;
// the order of rows with equal averages is unspecified.
func PerStoreReport(records []models.Audit) []StoreReport {
	sorted := make([]models.Audit, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	groups := map[string]*storeGroup{}
	var order []string
	for _, a := range sorted {
		if a.Status != models.AuditCompleted || a.Score == nil {
			continue
		}
		g, ok := groups[a.StoreID]
		if !ok {
			g = &storeGroup{name: unknownStore}
			if a.Store != nil && a.Store.Name != "" {
				g.name = a.Store.Name
			}
			groups[a.StoreID] = g
			order = append(order, a.StoreID)
		}
		g.scores = append(g.scores, *a.Score)
		if a.CreatedAt.After(g.last) {
			g.last = a.CreatedAt
		}
	}

	out := make([]StoreReport, 0, len(order))
	for _, id := range order {
		g := groups[id]
		out = append(out, StoreReport{
			StoreID:      id,
			StoreName:    g.name,
			TotalAudits:  len(g.scores),
			AverageScore: round1(mean(g.scores)),
			LastAuditAt:  g.last,
			Trend:        ClassifyTrend(g.scores),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageScore > out[j].AverageScore
	})
	return out
}
