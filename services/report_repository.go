package services

import (
	"context"
	"database/sql"
	"time"

	"ngo-report-api/config"
	"ngo-report-api/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	mysqlUpsertReportSQL = `INSERT INTO reports
	(organization_id, month, people_helped, events_conducted, funds_utilized, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	people_helped = VALUES(people_helped),
	events_conducted = VALUES(events_conducted),
	funds_utilized = VALUES(funds_utilized),
	updated_at = VALUES(updated_at)`

	postgresUpsertReportSQL = `INSERT INTO reports
	(organization_id, month, people_helped, events_conducted, funds_utilized, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (organization_id, month) DO UPDATE SET
	people_helped = EXCLUDED.people_helped,
	events_conducted = EXCLUDED.events_conducted,
	funds_utilized = EXCLUDED.funds_utilized,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`
)

// MonthTotals is the aggregate of every report filed for one month.
type MonthTotals struct {
	Organizations   int64
	PeopleHelped    int64
	EventsConducted int64
	FundsUtilized   decimal.Decimal
}

// ReportRepository is the durable report store, unique on (organization_id, month).
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	if db == nil {
		db = config.DB
	}
	return &ReportRepository{db: db}
}

// Upsert creates the report for the record's key or replaces the three figures of
// the existing one. created reports which of the two happened. The write is a
// single INSERT ... ON DUPLICATE KEY UPDATE (ON CONFLICT DO UPDATE on Postgres),
// atomic per key in both dialects, so concurrent upserts of the same key never
// conflict and the last writer wins. The stored row is read back in the same
// transaction, while the write still holds its row lock.
func (r *ReportRepository) Upsert(ctx context.Context, record ReportRecord) (*models.Report, bool, error) {
	var (
		report  models.Report
		created bool
	)
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertReportRow(tx, record, now)
		if err != nil {
			return errors.Wrap(err, "upsert report")
		}
		err = tx.Where("organization_id = ? AND month = ?", record.OrganizationID, record.Month).
			First(&report).Error
		return errors.Wrap(err, "reload report")
	})
	if err != nil {
		return nil, false, err
	}

	getIngestionMetrics().observeUpsert(created)
	return &report, created, nil
}

// upsertReportRow runs the dialect's upsert statement and reports whether it
// inserted. MySQL answers 1 affected row for an insert and 2 (or 0 when nothing
// changed) for an update; on Postgres xmax is zero only for a fresh tuple.
func upsertReportRow(tx *gorm.DB, record ReportRecord, now time.Time) (bool, error) {
	args := []interface{}{
		record.OrganizationID,
		record.Month,
		record.PeopleHelped,
		record.EventsConducted,
		record.FundsUtilized,
		now,
		now,
	}
	if tx.Dialector.Name() == "postgres" {
		var inserted bool
		if err := tx.Raw(postgresUpsertReportSQL, args...).Row().Scan(&inserted); err != nil {
			return false, err
		}
		return inserted, nil
	}
	res := tx.Exec(mysqlUpsertReportSQL, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MonthSnapshot reads the month's totals and reports in one read-only
// repeatable-read transaction, so the totals always describe the listed rows.
func (r *ReportRepository) MonthSnapshot(ctx context.Context, month string) (*MonthTotals, []models.Report, error) {
	var (
		totals  *MonthTotals
		reports []models.Report
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot := &ReportRepository{db: tx}
		var err error
		if totals, err = snapshot.AggregateMonth(ctx, month); err != nil {
			return err
		}
		reports, err = snapshot.ListByMonth(ctx, month)
		return err
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	return totals, reports, nil
}

// ListByMonth returns the month's reports ordered by organization_id.
func (r *ReportRepository) ListByMonth(ctx context.Context, month string) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("month = ?", month).
		Order("organization_id ASC").
		Find(&reports).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list reports for %s", month)
	}
	return reports, nil
}

// AggregateMonth sums the month's reports. An empty month yields all zeros.
func (r *ReportRepository) AggregateMonth(ctx context.Context, month string) (*MonthTotals, error) {
	var row struct {
		Organizations   int64
		PeopleHelped    int64
		EventsConducted int64
		FundsUtilized   decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Select("COUNT(DISTINCT organization_id) AS organizations, " +
			"COALESCE(SUM(people_helped), 0) AS people_helped, " +
			"COALESCE(SUM(events_conducted), 0) AS events_conducted, " +
			"COALESCE(SUM(funds_utilized), 0) AS funds_utilized").
		Where("month = ?", month).
		Scan(&row).Error
	if err != nil {
		return nil, errors.Wrapf(err, "aggregate reports for %s", month)
	}

	totals := &MonthTotals{
		Organizations:   row.Organizations,
		PeopleHelped:    row.PeopleHelped,
		EventsConducted: row.EventsConducted,
		FundsUtilized:   decimal.Zero,
	}
	if row.FundsUtilized.Valid {
		totals.FundsUtilized = row.FundsUtilized.Decimal
	}
	return totals, nil
}
