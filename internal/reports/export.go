package reports

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Reports"

var exportHeader = []interface{}{"Store", "Audits", "Average score", "Trend", "Last audit"}

// WriteXLSX renders the per-store report as a spreadsheet.
func WriteXLSX(w io.Writer, rows []StoreReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		last := ""
		if !r.LastAuditAt.IsZero() {
			last = r.LastAuditAt.Format("2006-01-02")
		}
		row := []interface{}{r.StoreName, r.TotalAudits, r.AverageScore, string(r.Trend), last}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
