package models

import "time"

const (
	BulkUploadStatusPending    = "pending"
	BulkUploadStatusProcessing = "processing"
	BulkUploadStatusCompleted  = "completed"
	BulkUploadStatusFailed     = "failed"
)

type BulkUploadJob struct {
	ID             uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	JobID          string    `json:"job_id" gorm:"column:job_id;type:varchar(100);not null;uniqueIndex"`
	FileName       string    `json:"file_name" gorm:"column:file_name;type:varchar(255);not null;default:''"`
	Status         string    `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	TotalRows      int64     `json:"total_rows" gorm:"column:total_rows;not null;default:0"`
	ProcessedRows  int64     `json:"processed_rows" gorm:"column:processed_rows;not null;default:0"`
	SuccessfulRows int64     `json:"successful_rows" gorm:"column:successful_rows;not null;default:0"`
	FailedRows     int64     `json:"failed_rows" gorm:"column:failed_rows;not null;default:0"`
	ErrorMessage   *string   `json:"error_message" gorm:"column:error_message;type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (BulkUploadJob) TableName() string { return "bulk_upload_jobs" }

// IsTerminal reports whether the job has reached completed or failed.
func (j *BulkUploadJob) IsTerminal() bool {
	return j.Status == BulkUploadStatusCompleted || j.Status == BulkUploadStatusFailed
}
