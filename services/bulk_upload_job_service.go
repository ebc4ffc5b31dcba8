package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"ngo-report-api/config"
	"ngo-report-api/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrBulkUploadJobNotFound = errors.New("bulk upload job not found")
	ErrBulkUploadJobState    = errors.New("bulk upload job is not in the expected state")
)

const (
	// maxStoredRowErrors caps the row messages kept in error_message. Every row is
	// still counted.
	maxStoredRowErrors = 10
	// MySQL TEXT holds 64KiB.
	maxErrorMessageBytes = 60000
)

type RowOutcome int

const (
	RowSucceeded RowOutcome = iota
	RowFailed
)

// BulkUploadJobService owns the bulk_upload_jobs records: lifecycle and counters.
type BulkUploadJobService struct {
	db *gorm.DB
}

func NewBulkUploadJobService(db *gorm.DB) *BulkUploadJobService {
	if db == nil {
		db = config.DB
	}
	return &BulkUploadJobService{db: db}
}

// Create inserts a pending job with zeroed counters.
func (s *BulkUploadJobService) Create(ctx context.Context, jobID, fileName string) (*models.BulkUploadJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("job id is required")
	}
	job := &models.BulkUploadJob{
		JobID:    jobID,
		FileName: truncateText(fileName, 255),
		Status:   models.BulkUploadStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, errors.Wrap(err, "create bulk upload job")
	}
	return job, nil
}

// BeginProcessing moves a pending job to processing. A job id is single use:
// any other current status yields ErrBulkUploadJobState.
func (s *BulkUploadJobService) BeginProcessing(ctx context.Context, jobID string) error {
	res := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status = ?", jobID, models.BulkUploadStatusPending).
		Update("status", models.BulkUploadStatusProcessing)
	return s.checkTransition(ctx, jobID, res)
}

// SetTotal records the parsed row count. It is set once and never reset.
func (s *BulkUploadJobService) SetTotal(ctx context.Context, jobID string, total int) error {
	if total < 0 {
		return errors.Errorf("negative total rows %d", total)
	}
	if total == 0 {
		// total_rows starts at zero; only make sure the job is still running.
		return s.ensureStatus(ctx, jobID, models.BulkUploadStatusProcessing)
	}
	res := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status = ? AND total_rows = 0", jobID, models.BulkUploadStatusProcessing).
		Update("total_rows", total)
	return s.checkTransition(ctx, jobID, res)
}

// RecordRowResult bumps processed_rows and the outcome counter in one UPDATE, so
// progress is durable and visible to pollers after every row.
func (s *BulkUploadJobService) RecordRowResult(ctx context.Context, jobID string, outcome RowOutcome) error {
	column := "successful_rows"
	if outcome == RowFailed {
		column = "failed_rows"
	}
	res := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status = ?", jobID, models.BulkUploadStatusProcessing).
		Updates(map[string]interface{}{
			"processed_rows": gorm.Expr("processed_rows + ?", 1),
			column:           gorm.Expr(column+" + ?", 1),
		})
	return s.checkTransition(ctx, jobID, res)
}

// Finalize marks the job completed. The first maxStoredRowErrors messages are kept,
// newline separated; error_message stays NULL when there are none.
func (s *BulkUploadJobService) Finalize(ctx context.Context, jobID string, rowErrors []string) error {
	updates := map[string]interface{}{
		"status":        models.BulkUploadStatusCompleted,
		"error_message": nil,
	}
	if msg := summarizeRowErrors(rowErrors); msg != "" {
		updates["error_message"] = msg
	}
	res := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status = ?", jobID, models.BulkUploadStatusProcessing).
		Updates(updates)
	return s.checkTransition(ctx, jobID, res)
}

// Fail marks a job that has not reached a terminal state as failed.
func (s *BulkUploadJobService) Fail(ctx context.Context, jobID string, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status IN ?", jobID, []string{models.BulkUploadStatusPending, models.BulkUploadStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        models.BulkUploadStatusFailed,
			"error_message": truncateText("Processing failed: "+reason, maxErrorMessageBytes),
		})
	return s.checkTransition(ctx, jobID, res)
}

func (s *BulkUploadJobService) Get(ctx context.Context, jobID string) (*models.BulkUploadJob, error) {
	var job models.BulkUploadJob
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBulkUploadJobNotFound
		}
		return nil, errors.Wrap(err, "get bulk upload job")
	}
	return &job, nil
}

// List returns the newest jobs first along with the total job count.
func (s *BulkUploadJobService) List(ctx context.Context, limit, offset int) ([]models.BulkUploadJob, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count bulk upload jobs")
	}

	var jobs []models.BulkUploadJob
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list bulk upload jobs")
	}
	return jobs, total, nil
}

func (s *BulkUploadJobService) checkTransition(ctx context.Context, jobID string, res *gorm.DB) error {
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update bulk upload job %s", jobID)
	}
	if res.RowsAffected == 0 {
		return s.missingOrWrongState(ctx, jobID)
	}
	return nil
}

func (s *BulkUploadJobService) ensureStatus(ctx context.Context, jobID, status string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).
		Where("job_id = ? AND status = ?", jobID, status).
		Count(&count).Error
	if err != nil {
		return errors.Wrapf(err, "check bulk upload job %s", jobID)
	}
	if count == 0 {
		return s.missingOrWrongState(ctx, jobID)
	}
	return nil
}

func (s *BulkUploadJobService) missingOrWrongState(ctx context.Context, jobID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BulkUploadJob{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check bulk upload job %s", jobID)
	}
	if count == 0 {
		return ErrBulkUploadJobNotFound
	}
	return errors.Wrapf(ErrBulkUploadJobState, "job %s", jobID)
}

func summarizeRowErrors(rowErrors []string) string {
	if len(rowErrors) == 0 {
		return ""
	}
	if len(rowErrors) > maxStoredRowErrors {
		rowErrors = rowErrors[:maxStoredRowErrors]
	}
	return truncateText(strings.Join(rowErrors, "\n"), maxErrorMessageBytes)
}

// truncateText cuts s to at most maxBytes without splitting a UTF-8 sequence.
func truncateText(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
