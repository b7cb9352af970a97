package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func score(v float64) *float64 { return &v }

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// storeAudits builds completed audits for one store, newest first.
func storeAudits(storeID, name string, scores ...float64) []models.Audit {
	out := make([]models.Audit, 0, len(scores))
	for i, s := range scores {
		out = append(out, models.Audit{
			ID:        storeID + "-" + string(rune('a'+i)),
			StoreID:   storeID,
			Status:    models.AuditCompleted,
			Score:     score(s),
			CreatedAt: base.Add(-time.Duration(i) * 24 * time.Hour),
			Store:     &models.Store{ID: storeID, Name: name},
		})
	}
	return out
}

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 0.0, AverageScore(nil))
	assert.Equal(t, 0.0, AverageScore([]models.Audit{{ID: "unscored"}}))

	audits := []models.Audit{{Score: score(80)}, {Score: score(60)}, {Score: score(100)}, {}}
	assert.Equal(t, 80.0, AverageScore(audits))

	assert.Equal(t, 66.7, AverageScore([]models.Audit{{Score: score(100)}, {Score: score(50)}, {Score: score(50)}}))
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, TrendUp, ClassifyTrend([]float64{90, 88, 92, 60, 58, 61}))
	assert.Equal(t, TrendDown, ClassifyTrend([]float64{60, 58, 61, 90, 88, 92}))
	assert.Equal(t, TrendStable, ClassifyTrend([]float64{80, 81, 79}))
	assert.Equal(t, TrendStable, ClassifyTrend(nil))
	// within the noise band
	assert.Equal(t, TrendStable, ClassifyTrend([]float64{82, 82, 82, 80, 80, 80}))
	// only positions 4-6 count as older
	assert.Equal(t, TrendStable, ClassifyTrend([]float64{70, 70, 70, 70, 70, 70, 10, 10}))
	assert.Equal(t, TrendUp, ClassifyTrend([]float64{80, 80, 80, 70}))
}

func TestPerStoreReport(t *testing.T) {
	var audits []models.Audit
	audits = append(audits, storeAudits("s1", "Centro", 90, 88, 92, 60, 58, 61)...)
	audits = append(audits, storeAudits("s2", "Norte", 95, 97)...)
	audits = append(audits,
		models.Audit{ID: "open", StoreID: "s3", Status: models.AuditInProgress, Score: score(50), CreatedAt: base},
		models.Audit{ID: "unscored", StoreID: "s4", Status: models.AuditCompleted, CreatedAt: base},
	)

	rows := PerStoreReport(audits)
	require.Len(t, rows, 2)

	assert.Equal(t, "s2", rows[0].StoreID)
	assert.Equal(t, "Norte", rows[0].StoreName)
	assert.Equal(t, 96.0, rows[0].AverageScore)
	assert.Equal(t, TrendStable, rows[0].Trend)

	assert.Equal(t, "s1", rows[1].StoreID)
	assert.Equal(t, 6, rows[1].TotalAudits)
	assert.Equal(t, 74.8, rows[1].AverageScore)
	assert.Equal(t, TrendUp, rows[1].Trend)
	assert.True(t, rows[1].LastAuditAt.Equal(base))
}

func TestPerStoreReport_OrdersByRecencyBeforeTrend(t *testing.T) {
	audits := storeAudits("s1", "Centro", 60, 58, 61, 90, 88, 92)
	// reverse input so the oldest arrives first
	for i, j := 0, len(audits)-1; i < j; i, j = i+1, j-1 {
		audits[i], audits[j] = audits[j], audits[i]
	}
	rows := PerStoreReport(audits)
	require.Len(t, rows, 1)
	assert.Equal(t, TrendDown, rows[0].Trend)
}

func TestPerStoreReport_EveryRowHasScoredCompletedAudit(t *testing.T) {
	audits := []models.Audit{
		{ID: "1", StoreID: "a", Status: models.AuditCompleted},
		{ID: "2", StoreID: "b", Status: models.AuditInProgress, Score: score(70)},
	}
	assert.Empty(t, PerStoreReport(audits))
	assert.Empty(t, PerStoreReport(nil))
}

func TestPerStoreReport_UnknownStoreName(t *testing.T) {
	rows := PerStoreReport([]models.Audit{{ID: "1", StoreID: "x", Status: models.AuditCompleted, Score: score(70), CreatedAt: base}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Unknown", rows[0].StoreName)
}

func TestDashboard(t *testing.T) {
	audits := []models.Audit{
		{Status: models.AuditCompleted, Score: score(80)},
		{Status: models.AuditCompleted, Score: score(60)},
		{Status: models.AuditInProgress},
	}
	stats := Dashboard(audits, 4)
	assert.Equal(t, DashboardStats{TotalAudits: 3, TotalStores: 4, PendingAudits: 1, AverageScore: 70, Band: BandGood}, stats)
}

func TestScoreBandAndChecklistScore(t *testing.T) {
	assert.Equal(t, BandExcellent, ScoreBand(80))
	assert.Equal(t, BandGood, ScoreBand(79.9))
	assert.Equal(t, BandImprove, ScoreBand(59.9))

	assert.Equal(t, 0.0, ChecklistScore(0, 0))
	assert.Equal(t, 67.0, ChecklistScore(3, 2))
	assert.Equal(t, 100.0, ChecklistScore(4, 4))
}

func TestWriteXLSX(t *testing.T) {
	rows := PerStoreReport(append(storeAudits("s1", "Centro", 90), storeAudits("s2", "Norte", 70)...))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Store", got[0][0])
	assert.Equal(t, "Centro", got[1][0])
	assert.Equal(t, "Norte", got[2][0])
	assert.Equal(t, "2025-03-01", got[1][4])
}
