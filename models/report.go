package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is one organization's activity figures for one month.
// (organization_id, month) is unique; resubmissions overwrite the figures.
type Report struct {
	ID              uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID  string          `json:"organization_id" gorm:"column:organization_id;type:varchar(100);not null;uniqueIndex:idx_reports_org_month,priority:1"`
	Month           string          `json:"month" gorm:"column:month;type:char(7);not null;uniqueIndex:idx_reports_org_month,priority:2;index:idx_reports_month"`
	PeopleHelped    int64           `json:"people_helped" gorm:"column:people_helped;not null;default:0"`
	EventsConducted int64           `json:"events_conducted" gorm:"column:events_conducted;not null;default:0"`
	FundsUtilized   decimal.Decimal `json:"funds_utilized" gorm:"column:funds_utilized;type:decimal(15,2);not null;default:0"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Report) TableName() string { return "reports" }
