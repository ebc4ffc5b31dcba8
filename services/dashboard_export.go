package services

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	reportsSheet = "Reports"
)

var reportSheetHeaders = []interface{}{
	ColumnOrganizationID, ColumnMonth, ColumnPeopleHelped, ColumnEventsConducted, ColumnFundsUtilized, "updated_at",
}

// BuildDashboardWorkbook renders a dashboard as a two sheet workbook: the month
// totals and one row per report. The reports sheet uses the upload column names
// so it can be saved as CSV and re-uploaded.
func BuildDashboardWorkbook(d *Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, errors.Wrap(err, "rename summary sheet")
	}
	totalFunds, _ := d.TotalFundsUtilized.Float64()
	summary := [][]interface{}{
		{"month", d.Month},
		{"total_ngos_reporting", d.TotalNGOsReporting},
		{"total_people_helped", d.TotalPeopleHelped},
		{"total_events_conducted", d.TotalEventsConducted},
		{"total_funds_utilized", totalFunds},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, errors.Wrap(err, "write summary row")
		}
	}

	if _, err := f.NewSheet(reportsSheet); err != nil {
		return nil, errors.Wrap(err, "create reports sheet")
	}
	if err := f.SetSheetRow(reportsSheet, "A1", &reportSheetHeaders); err != nil {
		return nil, errors.Wrap(err, "write reports header")
	}
	for i, r := range d.Reports {
		funds, _ := r.FundsUtilized.Float64()
		row := []interface{}{
			r.OrganizationID,
			r.Month,
			r.PeopleHelped,
			r.EventsConducted,
			funds,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(reportsSheet, cell, &row); err != nil {
			return nil, errors.Wrapf(err, "write report row %d", i+1)
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err == nil {
		_ = f.SetCellStyle(summarySheet, "B5", "B5", style)
		if len(d.Reports) > 0 {
			_ = f.SetCellStyle(reportsSheet, "E2", fmt.Sprintf("E%d", len(d.Reports)+1), style)
		}
	}
	return f, nil
}
