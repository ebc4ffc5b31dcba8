package routes

import (
	"net/http"

	"ngo-report-api/controllers"
	"ngo-report-api/middleware"
	"ngo-report-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Reports    *controllers.ReportController
	Uploads    *controllers.BulkUploadController
	Jobs       *controllers.JobStatusController
	Dashboards *controllers.DashboardController
	Auth       *middleware.Auth
}

func SetupRoutes(router *gin.Engine, h Handlers) error {
	if err := utils.RegisterValidators(); err != nil {
		return err
	}
	if h.Auth == nil {
		h.Auth = middleware.NewAuth("")
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "NGO Report API is running",
			})
		})

		// Reads stay public for the dashboard page
		v1.GET("/job-status/:job_id", h.Jobs.GetJobStatus)
		v1.GET("/dashboard", h.Dashboards.GetDashboard)
		v1.GET("/dashboard/export", h.Dashboards.ExportDashboard)

		protected := v1.Group("")
		protected.Use(h.Auth.AuthMiddleware())
		{
			protected.POST("/report", h.Reports.SubmitReport)
			protected.POST("/reports/upload", h.Uploads.UploadReports)
			protected.GET("/jobs", h.Auth.RequireRole("admin"), h.Jobs.ListJobs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	return nil
}
