package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ngo-report-api/config"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type dashboardReader interface {
	GetDashboard(ctx context.Context, month string) (*services.Dashboard, error)
}

type DashboardController struct {
	dashboards dashboardReader
}

func NewDashboardController(dashboards dashboardReader) *DashboardController {
	return &DashboardController{dashboards: dashboards}
}

type dashboardResponse struct {
	Month                string           `json:"month"`
	TotalNGOsReporting   int64            `json:"total_ngos_reporting"`
	TotalPeopleHelped    int64            `json:"total_people_helped"`
	TotalEventsConducted int64            `json:"total_events_conducted"`
	TotalFundsUtilized   json.Number      `json:"total_funds_utilized"`
	Reports              []reportResponse `json:"reports"`
}

// GetDashboard serves the aggregate for ?month=YYYY-MM.
func (dc *DashboardController) GetDashboard(c *gin.Context) {
	d, ok := dc.load(c)
	if !ok {
		return
	}
	resp := dashboardResponse{
		Month:                d.Month,
		TotalNGOsReporting:   d.TotalNGOsReporting,
		TotalPeopleHelped:    d.TotalPeopleHelped,
		TotalEventsConducted: d.TotalEventsConducted,
		TotalFundsUtilized:   money(d.TotalFundsUtilized),
		Reports:              make([]reportResponse, 0, len(d.Reports)),
	}
	for _, r := range d.Reports {
		resp.Reports = append(resp.Reports, newReportResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// ExportDashboard serves the same aggregate as an xlsx download.
func (dc *DashboardController) ExportDashboard(c *gin.Context) {
	d, ok := dc.load(c)
	if !ok {
		return
	}
	f, err := services.BuildDashboardWorkbook(d)
	if err != nil {
		config.Logger.WithError(err).WithField("month", d.Month).Error("build dashboard workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		config.Logger.WithError(err).WithField("month", d.Month).Error("write dashboard workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ngo-dashboard-%s.xlsx"`, d.Month))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (dc *DashboardController) load(c *gin.Context) (*services.Dashboard, bool) {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Month parameter is required (format: YYYY-MM)"})
		return nil, false
	}

	d, err := dc.dashboards.GetDashboard(c.Request.Context(), month)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMonth) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid month format. Use YYYY-MM (received: %q)", month)})
			return nil, false
		}
		config.Logger.WithError(err).WithField("month", month).Error("load dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return nil, false
	}
	return d, true
}
