package services

import (
	"fmt"
	"strconv"
	"strings"

	"ngo-report-api/utils"

	"github.com/shopspring/decimal"
)

// Canonical CSV columns, in the order missing ones are reported.
const (
	ColumnOrganizationID  = "organization_id"
	ColumnMonth           = "month"
	ColumnPeopleHelped    = "people_helped"
	ColumnEventsConducted = "events_conducted"
	ColumnFundsUtilized   = "funds_utilized"

	// older exports name the organization column ngo_id
	legacyOrganizationColumn = "ngo_id"
)

var requiredReportColumns = []string{
	ColumnOrganizationID,
	ColumnMonth,
	ColumnPeopleHelped,
	ColumnEventsConducted,
	ColumnFundsUtilized,
}

// decimal(15,2) leaves 13 integer digits.
var maxFundsUtilized = decimal.New(1, 13)

// ReportRecord is a validated report ready to be written to the report store.
type ReportRecord struct {
	OrganizationID  string
	Month           string
	PeopleHelped    int64
	EventsConducted int64
	FundsUtilized   decimal.Decimal
}

type RowErrorKind string

const (
	RowErrorInvalid RowErrorKind = "invalid"
	RowErrorStore   RowErrorKind = "error"
)

// RowError is a per-row failure. It never aborts the enclosing job.
type RowError struct {
	Row     int
	Kind    RowErrorKind
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

func invalidRow(row int, format string, args ...interface{}) *RowError {
	return &RowError{Row: row, Kind: RowErrorInvalid, Message: fmt.Sprintf(format, args...)}
}

// ValidateReportRow checks one CSV row (column name -> raw cell) and returns the
// normalized record. row is the 1-based data row index used in error messages.
// Checks run in order and stop at the first failure:
// required fields, month format, numeric parsing, non-negative values.
func ValidateReportRow(values map[string]string, row int) (ReportRecord, error) {
	fields := make(map[string]string, len(requiredReportColumns))
	var missing []string
	for _, column := range requiredReportColumns {
		value := utils.SanitizeInput(values[column])
		if value == "" && column == ColumnOrganizationID {
			value = utils.SanitizeInput(values[legacyOrganizationColumn])
		}
		if value == "" {
			missing = append(missing, column)
			continue
		}
		fields[column] = value
	}
	if len(missing) > 0 {
		return ReportRecord{}, invalidRow(row, "Missing fields: %s", strings.Join(missing, ", "))
	}

	month := fields[ColumnMonth]
	if !utils.IsYearMonth(month) {
		return ReportRecord{}, invalidRow(row, "Invalid month format '%s'. Use YYYY-MM", month)
	}

	people, err := parseCount(ColumnPeopleHelped, fields[ColumnPeopleHelped])
	if err != nil {
		return ReportRecord{}, invalidRow(row, "Invalid numeric values - %v", err)
	}
	events, err := parseCount(ColumnEventsConducted, fields[ColumnEventsConducted])
	if err != nil {
		return ReportRecord{}, invalidRow(row, "Invalid numeric values - %v", err)
	}
	funds, err := decimal.NewFromString(fields[ColumnFundsUtilized])
	if err != nil {
		return ReportRecord{}, invalidRow(row, "Invalid numeric values - %s %q is not a decimal number", ColumnFundsUtilized, fields[ColumnFundsUtilized])
	}

	if people < 0 || events < 0 || funds.IsNegative() {
		return ReportRecord{}, invalidRow(row, "Negative values not allowed")
	}

	funds, err = NormalizeFunds(funds)
	if err != nil {
		return ReportRecord{}, invalidRow(row, "Invalid numeric values - %v", err)
	}

	return ReportRecord{
		OrganizationID:  fields[ColumnOrganizationID],
		Month:           month,
		PeopleHelped:    people,
		EventsConducted: events,
		FundsUtilized:   funds,
	}, nil
}

// NormalizeFunds rounds to cents and rejects values that do not fit decimal(15,2).
// Callers check the sign first.
func NormalizeFunds(funds decimal.Decimal) (decimal.Decimal, error) {
	funds = funds.Round(2)
	if funds.Abs().GreaterThanOrEqual(maxFundsUtilized) {
		return decimal.Decimal{}, fmt.Errorf("%s %s exceeds 13 integer digits", ColumnFundsUtilized, funds.String())
	}
	return funds, nil
}

func parseCount(column, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", column, raw)
	}
	return n, nil
}
