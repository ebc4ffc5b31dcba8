package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ngo-report-api/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// reportResponse renders funds as a JSON number with two decimals.
// ngo_id mirrors organization_id for older dashboard clients.
type reportResponse struct {
	ID              uint        `json:"id"`
	OrganizationID  string      `json:"organization_id"`
	NGOID           string      `json:"ngo_id"`
	Month           string      `json:"month"`
	PeopleHelped    int64       `json:"people_helped"`
	EventsConducted int64       `json:"events_conducted"`
	FundsUtilized   json.Number `json:"funds_utilized"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func newReportResponse(r models.Report) reportResponse {
	return reportResponse{
		ID:              r.ID,
		OrganizationID:  r.OrganizationID,
		NGOID:           r.OrganizationID,
		Month:           r.Month,
		PeopleHelped:    r.PeopleHelped,
		EventsConducted: r.EventsConducted,
		FundsUtilized:   money(r.FundsUtilized),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// validationDetails maps each failed field to a readable message.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range verrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "This field is required."
	case "yearmonth":
		return "Month must be in YYYY-MM format with a month between 01 and 12."
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}
