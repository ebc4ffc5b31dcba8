package services

import (
	"context"
	"strings"

	"ngo-report-api/models"
	"ngo-report-api/utils"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInvalidMonth = errors.New("invalid month format, use YYYY-MM")

// Dashboard is the monthly aggregate served to the dashboard page.
type Dashboard struct {
	Month                string
	TotalNGOsReporting   int64
	TotalPeopleHelped    int64
	TotalEventsConducted int64
	TotalFundsUtilized   decimal.Decimal
	Reports              []models.Report
}

type monthReportReader interface {
	MonthSnapshot(ctx context.Context, month string) (*MonthTotals, []models.Report, error)
}

type DashboardService struct {
	reports monthReportReader
}

func NewDashboardService(reports monthReportReader) *DashboardService {
	return &DashboardService{reports: reports}
}

// GetDashboard recomputes the aggregate for month on every call. The month is
// validated before the store is touched.
func (s *DashboardService) GetDashboard(ctx context.Context, month string) (*Dashboard, error) {
	month = strings.TrimSpace(month)
	if !utils.IsYearMonth(month) {
		return nil, errors.Wrapf(ErrInvalidMonth, "received %q", month)
	}

	totals, reports, err := s.reports.MonthSnapshot(ctx, month)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.Report{}
	}

	return &Dashboard{
		Month:                month,
		TotalNGOsReporting:   totals.Organizations,
		TotalPeopleHelped:    totals.PeopleHelped,
		TotalEventsConducted: totals.EventsConducted,
		TotalFundsUtilized:   totals.FundsUtilized.Round(2),
		Reports:              reports,
	}, nil
}
