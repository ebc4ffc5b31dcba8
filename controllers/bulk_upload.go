package controllers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ngo-report-api/config"
	"ngo-report-api/models"
	"ngo-report-api/services"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type uploadJobStore interface {
	Create(ctx context.Context, jobID, fileName string) (*models.BulkUploadJob, error)
	Fail(ctx context.Context, jobID string, reason string) error
	Get(ctx context.Context, jobID string) (*models.BulkUploadJob, error)
}

type BulkUploadController struct {
	jobs       uploadJobStore
	dispatcher services.JobDispatcher
	maxBytes   int64
	newJobID   func() string
}

func NewBulkUploadController(jobs uploadJobStore, dispatcher services.JobDispatcher, maxBytes int64) *BulkUploadController {
	return &BulkUploadController{
		jobs:       jobs,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
		newJobID:   func() string { return uuid.NewString() },
	}
}

// UploadReports accepts a multipart CSV under "file", creates a job and hands it
// to the dispatcher. Inline mode answers with the finished job; queue mode
// answers 202 with the pending job id.
func (bc *BulkUploadController) UploadReports(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}
	if bc.maxBytes > 0 && header.Size > bc.maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is too large"})
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}
	if len(content) > 0 && !isTextMime(content) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}
	if !utf8.Valid(content) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be UTF-8 encoded"})
		return
	}

	jobID := bc.newJobID()
	logger := config.Logger.WithField("job_id", jobID)
	job, err := bc.jobs.Create(c.Request.Context(), jobID, header.Filename)
	if err != nil {
		logger.WithError(err).Error("create bulk upload job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create upload job"})
		return
	}

	err = bc.dispatcher.Dispatch(c.Request.Context(), jobID, content)
	if errors.Is(err, services.ErrEnqueue) {
		logger.WithError(err).Error("enqueue bulk upload job")
		if failErr := bc.jobs.Fail(c.Request.Context(), jobID, err.Error()); failErr != nil {
			logger.WithError(failErr).Error("mark unqueued job failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Processing failed: " + err.Error(),
			"job_id": jobID,
			"status": models.BulkUploadStatusFailed,
		})
		return
	}

	if bc.dispatcher.Mode() == config.IngestModeQueue {
		c.JSON(http.StatusAccepted, gin.H{
			"job_id":  job.JobID,
			"status":  job.Status,
			"message": "Upload accepted for processing",
		})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Processing failed: " + err.Error(),
			"job_id": jobID,
			"status": models.BulkUploadStatusFailed,
		})
		return
	}

	finished, err := bc.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		logger.WithError(err).Error("reload bulk upload job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load upload job", "job_id": jobID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":          finished.JobID,
		"status":          finished.Status,
		"total_rows":      finished.TotalRows,
		"processed_rows":  finished.ProcessedRows,
		"successful_rows": finished.SuccessfulRows,
		"failed_rows":     finished.FailedRows,
		"error_message":   finished.ErrorMessage,
		"message":         "Upload processed successfully",
	})
}

// isTextMime accepts the text types mimetype reports for delimited files.
func isTextMime(content []byte) bool {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}
