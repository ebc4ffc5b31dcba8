package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"ngo-report-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

// memoryReportStore keys reports by organization and month like the unique index.
type memoryReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	nextID  uint
	upserts int
	failOn  map[string]error
	panicOn map[string]bool
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{
		reports: map[string]*models.Report{},
		failOn:  map[string]error{},
		panicOn: map[string]bool{},
	}
}

func reportKey(org, month string) string { return org + "|" + month }

func (s *memoryReportStore) Upsert(_ context.Context, record ReportRecord) (*models.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.panicOn[record.OrganizationID] {
		panic(fmt.Sprintf("boom for %s", record.OrganizationID))
	}
	if err := s.failOn[record.OrganizationID]; err != nil {
		return nil, false, err
	}
	key := reportKey(record.OrganizationID, record.Month)
	existing, ok := s.reports[key]
	if !ok {
		s.nextID++
		existing = &models.Report{ID: s.nextID, OrganizationID: record.OrganizationID, Month: record.Month}
		s.reports[key] = existing
	}
	existing.PeopleHelped = record.PeopleHelped
	existing.EventsConducted = record.EventsConducted
	existing.FundsUtilized = record.FundsUtilized
	copied := *existing
	return &copied, !ok, nil
}

func (s *memoryReportStore) get(org, month string) (models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportKey(org, month)]
	if !ok {
		return models.Report{}, false
	}
	return *r, true
}

func (s *memoryReportStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *memoryReportStore) ListByMonth(_ context.Context, month string) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Report
	for _, r := range s.reports {
		if r.Month == month {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

// memoryJobTracker enforces the same transitions as BulkUploadJobService and
// checks the counter invariant on every row.
type memoryJobTracker struct {
	t    *testing.T
	mu   sync.Mutex
	jobs map[string]*models.BulkUploadJob

	failRecordAfter int
	recordCalls     int
	failCalls       int
}

func newMemoryJobTracker(t *testing.T) *memoryJobTracker {
	return &memoryJobTracker{t: t, jobs: map[string]*models.BulkUploadJob{}}
}

func (m *memoryJobTracker) create(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID] = &models.BulkUploadJob{JobID: jobID, Status: models.BulkUploadStatusPending}
}

func (m *memoryJobTracker) job(jobID string) models.BulkUploadJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[jobID]
}

func (m *memoryJobTracker) lookup(jobID, status string) (*models.BulkUploadJob, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrBulkUploadJobNotFound
	}
	if status != "" && job.Status != status {
		return nil, ErrBulkUploadJobState
	}
	return job, nil
}

func (m *memoryJobTracker) BeginProcessing(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.lookup(jobID, models.BulkUploadStatusPending)
	if err != nil {
		return err
	}
	job.Status = models.BulkUploadStatusProcessing
	return nil
}

func (m *memoryJobTracker) SetTotal(_ context.Context, jobID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.lookup(jobID, models.BulkUploadStatusProcessing)
	if err != nil {
		return err
	}
	if job.TotalRows != 0 {
		return ErrBulkUploadJobState
	}
	job.TotalRows = int64(total)
	return nil
}

func (m *memoryJobTracker) RecordRowResult(_ context.Context, jobID string, outcome RowOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCalls++
	if m.failRecordAfter > 0 && m.recordCalls > m.failRecordAfter {
		return fmt.Errorf("tracker unavailable")
	}
	job, err := m.lookup(jobID, models.BulkUploadStatusProcessing)
	if err != nil {
		return err
	}
	job.ProcessedRows++
	if outcome == RowFailed {
		job.FailedRows++
	} else {
		job.SuccessfulRows++
	}
	require.Equal(m.t, job.ProcessedRows, job.SuccessfulRows+job.FailedRows)
	require.LessOrEqual(m.t, job.ProcessedRows, job.TotalRows)
	return nil
}

func (m *memoryJobTracker) Finalize(_ context.Context, jobID string, rowErrors []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.lookup(jobID, models.BulkUploadStatusProcessing)
	if err != nil {
		return err
	}
	job.Status = models.BulkUploadStatusCompleted
	job.ErrorMessage = nil
	if msg := summarizeRowErrors(rowErrors); msg != "" {
		job.ErrorMessage = &msg
	}
	return nil
}

func (m *memoryJobTracker) Fail(_ context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCalls++
	job, err := m.lookup(jobID, "")
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return ErrBulkUploadJobState
	}
	msg := "Processing failed: " + reason
	job.Status = models.BulkUploadStatusFailed
	job.ErrorMessage = &msg
	return nil
}

func (m *memoryJobTracker) Get(_ context.Context, jobID string) (*models.BulkUploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.lookup(jobID, "")
	if err != nil {
		return nil, err
	}
	copied := *job
	return &copied, nil
}
