package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"ngo-report-api/config"
	"ngo-report-api/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidEncoding = errors.New("file must be UTF-8 encoded")
	ErrEmptyHeader     = errors.New("csv header row is missing")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type reportUpserter interface {
	Upsert(ctx context.Context, record ReportRecord) (*models.Report, bool, error)
}

type ingestionJobTracker interface {
	BeginProcessing(ctx context.Context, jobID string) error
	SetTotal(ctx context.Context, jobID string, total int) error
	RecordRowResult(ctx context.Context, jobID string, outcome RowOutcome) error
	Finalize(ctx context.Context, jobID string, rowErrors []string) error
	Fail(ctx context.Context, jobID string, reason string) error
	Get(ctx context.Context, jobID string) (*models.BulkUploadJob, error)
}

// JobNotifier is told about every job that reached a terminal status.
type JobNotifier interface {
	JobFinished(ctx context.Context, job *models.BulkUploadJob)
}

// ReportIngestionService runs one bulk upload job: parse the CSV, validate and
// upsert each row in file order, record progress after every row and finalize.
// It does not care whether it runs on a request goroutine or a queue worker.
type ReportIngestionService struct {
	reports  reportUpserter
	jobs     ingestionJobTracker
	notifier JobNotifier
	logger   logrus.FieldLogger
}

func NewReportIngestionService(reports reportUpserter, jobs ingestionJobTracker) *ReportIngestionService {
	return &ReportIngestionService{
		reports: reports,
		jobs:    jobs,
		logger:  config.Logger,
	}
}

// WithNotifier sets the notifier used once a job is terminal.
func (s *ReportIngestionService) WithNotifier(n JobNotifier) *ReportIngestionService {
	s.notifier = n
	return s
}

// Process ingests content for a job that was created as pending. Row problems are
// counted and recorded on the job; only failures outside the row loop (decoding,
// header parsing, job bookkeeping) mark the job failed and are returned.
func (s *ReportIngestionService) Process(ctx context.Context, jobID string, content []byte) error {
	ctx = persistentContext(ctx)
	started := time.Now()
	logger := s.logger.WithField("job_id", jobID)

	if err := s.jobs.BeginProcessing(ctx, jobID); err != nil {
		if errors.Is(err, ErrBulkUploadJobNotFound) || errors.Is(err, ErrBulkUploadJobState) {
			return err
		}
		return s.fail(ctx, jobID, started, err)
	}

	rows, err := parseReportCSV(content)
	if err != nil {
		return s.fail(ctx, jobID, started, err)
	}
	if err := s.jobs.SetTotal(ctx, jobID, len(rows)); err != nil {
		return s.fail(ctx, jobID, started, err)
	}
	logger.WithField("total_rows", len(rows)).Info("processing bulk upload")

	metrics := getIngestionMetrics()
	var rowErrors []string
	for i, values := range rows {
		index := i + 1
		outcome := RowSucceeded
		rowErr := s.processRow(ctx, values, index)
		if rowErr != nil {
			outcome = RowFailed
			rowErrors = append(rowErrors, rowErr.Error())
			if rowErr.Kind == RowErrorStore {
				logger.WithField("row", index).WithError(rowErr).Warn("row failed to persist")
			}
			metrics.observeRow(rowErr)
		} else {
			metrics.observeRow(nil)
		}
		if err := s.jobs.RecordRowResult(ctx, jobID, outcome); err != nil {
			return s.fail(ctx, jobID, started, errors.Wrapf(err, "record result of row %d", index))
		}
	}

	if err := s.jobs.Finalize(ctx, jobID, rowErrors); err != nil {
		return s.fail(ctx, jobID, started, err)
	}

	metrics.observeJob(models.BulkUploadStatusCompleted, started)
	logger.WithFields(logrus.Fields{
		"total_rows":  len(rows),
		"failed_rows": len(rowErrors),
		"duration":    time.Since(started).String(),
	}).Info("bulk upload completed")
	s.notify(ctx, jobID)
	return nil
}

// processRow turns every problem with a single row, panics included, into a RowError.
func (s *ReportIngestionService) processRow(ctx context.Context, values map[string]string, index int) (rowErr *RowError) {
	defer func() {
		if r := recover(); r != nil {
			rowErr = &RowError{Row: index, Kind: RowErrorStore, Message: fmt.Sprint(r)}
		}
	}()

	record, err := ValidateReportRow(values, index)
	if err != nil {
		var re *RowError
		if errors.As(err, &re) {
			return re
		}
		return &RowError{Row: index, Kind: RowErrorInvalid, Message: err.Error()}
	}
	if _, _, err := s.reports.Upsert(ctx, record); err != nil {
		return &RowError{Row: index, Kind: RowErrorStore, Message: err.Error()}
	}
	return nil
}

func (s *ReportIngestionService) fail(ctx context.Context, jobID string, started time.Time, cause error) error {
	logger := s.logger.WithField("job_id", jobID)
	logger.WithError(cause).Error("bulk upload failed")
	if err := s.jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		logger.WithError(err).Error("failed to mark bulk upload as failed")
	}
	getIngestionMetrics().observeJob(models.BulkUploadStatusFailed, started)
	s.notify(ctx, jobID)
	return cause
}

func (s *ReportIngestionService) notify(ctx context.Context, jobID string) {
	if s.notifier == nil {
		return
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		s.logger.WithField("job_id", jobID).WithError(err).Warn("load job for notification")
		return
	}
	s.notifier.JobFinished(ctx, job)
}

// parseReportCSV decodes the upload and returns one column->value map per data
// row. The first record is the header; header names are trimmed and lowercased.
// Blank lines are skipped, short rows leave the missing columns empty.
func parseReportCSV(content []byte) ([]map[string]string, error) {
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	columns, ok := normalizeHeaders(header)
	if !ok {
		return nil, ErrEmptyHeader
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse csv")
		}
		values := make(map[string]string, len(columns))
		for i, key := range columns {
			if key == "" || i >= len(record) {
				continue
			}
			values[key] = record[i]
		}
		rows = append(rows, values)
	}
	return rows, nil
}

// normalizeHeaders trims and lowercases column names. ok is false when every
// name is blank.
func normalizeHeaders(header []string) (columns []string, ok bool) {
	columns = make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
		if columns[i] != "" {
			ok = true
		}
	}
	return columns, ok
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
