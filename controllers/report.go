package controllers

import (
	"context"
	"net/http"

	"ngo-report-api/config"
	"ngo-report-api/models"
	"ngo-report-api/services"
	"ngo-report-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type reportUpserter interface {
	Upsert(ctx context.Context, record services.ReportRecord) (*models.Report, bool, error)
}

type ReportController struct {
	reports reportUpserter
}

func NewReportController(reports reportUpserter) *ReportController {
	return &ReportController{reports: reports}
}

type submitReportRequest struct {
	OrganizationID  string           `json:"organization_id" binding:"required_without=NGOID,max=100"`
	NGOID           string           `json:"ngo_id" binding:"max=100"`
	Month           string           `json:"month" binding:"required,yearmonth"`
	PeopleHelped    *int64           `json:"people_helped" binding:"required,gte=0"`
	EventsConducted *int64           `json:"events_conducted" binding:"required,gte=0"`
	FundsUtilized   *decimal.Decimal `json:"funds_utilized" binding:"required"`
}

// SubmitReport creates or replaces one organization's report for a month.
// 201 when the report is new, 200 when an existing one was overwritten.
func (rc *ReportController) SubmitReport(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report", "details": validationDetails(err)})
		return
	}

	orgID := utils.SanitizeInput(req.OrganizationID)
	if orgID == "" {
		orgID = utils.SanitizeInput(req.NGOID)
	}
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report", "details": gin.H{"organization_id": "This field may not be blank."}})
		return
	}
	if req.FundsUtilized.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report", "details": gin.H{"funds_utilized": "Ensure this value is greater than or equal to 0."}})
		return
	}
	funds, err := services.NormalizeFunds(*req.FundsUtilized)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report", "details": gin.H{"funds_utilized": err.Error()}})
		return
	}

	report, created, err := rc.reports.Upsert(c.Request.Context(), services.ReportRecord{
		OrganizationID:  orgID,
		Month:           req.Month,
		PeopleHelped:    *req.PeopleHelped,
		EventsConducted: *req.EventsConducted,
		FundsUtilized:   funds,
	})
	if err != nil {
		config.Logger.WithError(err).WithField("organization_id", orgID).Error("submit report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, newReportResponse(*report))
}
