package reports

import (
	"math"

	"github.com/auditdesk/auditdesk/internal/models"
)

// DashboardStats are the KPI tiles shown on the dashboard.
type DashboardStats struct {
	TotalAudits   int     `json:"total_audits"`
	TotalStores   int     `json:"total_stores"`
	PendingAudits int     `json:"pending_audits"`
	AverageScore  float64 `json:"average_score"`
	Band          Band    `json:"band"`
}

// Dashboard computes KPI tiles from every visible audit and the store count.
func Dashboard(audits []models.Audit, storeCount int) DashboardStats {
	stats := DashboardStats{
		TotalAudits:  len(audits),
		TotalStores:  storeCount,
		AverageScore: AverageScore(audits),
	}
	for _, a := range audits {
		if a.Status == models.AuditInProgress {
			stats.PendingAudits++
		}
	}
	stats.Band = ScoreBand(stats.AverageScore)
	return stats
}

// Band buckets a score for display.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandImprove   Band = "needs_improvement"
)

func ScoreBand(score float64) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandGood
	}
	return BandImprove
}

// ChecklistScore is the percentage of checklist items answered compliant,
// rounded to a whole number. Unanswered items count against the score.
func ChecklistScore(totalItems, compliant int) float64 {
	if totalItems <= 0 {
		return 0
	}
	return math.Floor(float64(compliant)/float64(totalItems)*100 + 0.5)
}
