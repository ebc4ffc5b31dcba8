package controllers

import (
	"context"
	"net/http"
	"strconv"

	"ngo-report-api/config"
	"ngo-report-api/models"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type jobReader interface {
	Get(ctx context.Context, jobID string) (*models.BulkUploadJob, error)
	List(ctx context.Context, limit, offset int) ([]models.BulkUploadJob, int64, error)
}

type JobStatusController struct {
	jobs jobReader
}

func NewJobStatusController(jobs jobReader) *JobStatusController {
	return &JobStatusController{jobs: jobs}
}

// GetJobStatus returns the current counters of one job. Safe to poll while the
// job is running.
func (jc *JobStatusController) GetJobStatus(c *gin.Context) {
	job, err := jc.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, services.ErrBulkUploadJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		config.Logger.WithError(err).Error("get job status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs returns recent jobs, newest first.
func (jc *JobStatusController) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, total, err := jc.jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		config.Logger.WithError(err).Error("list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = []models.BulkUploadJob{}
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
