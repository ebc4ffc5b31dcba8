package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ngo-report-api/models"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReportStore struct {
	reports map[string]*models.Report
	last    services.ReportRecord
	calls   int
	err     error
}

func (s *fakeReportStore) Upsert(_ context.Context, record services.ReportRecord) (*models.Report, bool, error) {
	s.calls++
	s.last = record
	if s.err != nil {
		return nil, false, s.err
	}
	key := record.OrganizationID + "|" + record.Month
	existing, ok := s.reports[key]
	if !ok {
		existing = &models.Report{ID: uint(len(s.reports) + 1), OrganizationID: record.OrganizationID, Month: record.Month, CreatedAt: time.Now()}
		s.reports[key] = existing
	}
	existing.PeopleHelped = record.PeopleHelped
	existing.EventsConducted = record.EventsConducted
	existing.FundsUtilized = record.FundsUtilized
	existing.UpdatedAt = time.Now()
	copied := *existing
	return &copied, !ok, nil
}

func newReportRouter() (*gin.Engine, *fakeReportStore) {
	store := &fakeReportStore{reports: map[string]*models.Report{}}
	router := gin.New()
	router.POST("/api/v1/report", NewReportController(store).SubmitReport)
	return router, store
}

func postReport(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return perform(router, req)
}

func TestSubmitReportCreatesThenUpdates(t *testing.T) {
	router, store := newReportRouter()

	w := postReport(router, `{"organization_id":"ngo-1","month":"2024-03","people_helped":10,"events_conducted":1,"funds_utilized":"100.5"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "ngo-1", body["organization_id"])
	assert.Equal(t, "ngo-1", body["ngo_id"])
	assert.Contains(t, w.Body.String(), `"funds_utilized":100.50`)

	w = postReport(router, `{"organization_id":"ngo-1","month":"2024-03","people_helped":20,"events_conducted":2,"funds_utilized":200}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeBody(t, w)
	assert.EqualValues(t, 20, body["people_helped"])
	assert.Len(t, store.reports, 1)
}

func TestSubmitReportAcceptsNGOIDAlias(t *testing.T) {
	router, store := newReportRouter()

	w := postReport(router, `{"ngo_id":"  ngo-9 ","month":"2024-03","people_helped":0,"events_conducted":0,"funds_utilized":0}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ngo-9", store.last.OrganizationID)
}

func TestSubmitReportValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"bad month", `{"organization_id":"a","month":"2024-13","people_helped":1,"events_conducted":1,"funds_utilized":1}`, "month"},
		{"missing organization", `{"month":"2024-01","people_helped":1,"events_conducted":1,"funds_utilized":1}`, "organization_id"},
		{"blank organization", `{"organization_id":"   ","month":"2024-01","people_helped":1,"events_conducted":1,"funds_utilized":1}`, "organization_id"},
		{"negative people", `{"organization_id":"a","month":"2024-01","people_helped":-1,"events_conducted":1,"funds_utilized":1}`, "people_helped"},
		{"missing events", `{"organization_id":"a","month":"2024-01","people_helped":1,"funds_utilized":1}`, "events_conducted"},
		{"negative funds", `{"organization_id":"a","month":"2024-01","people_helped":1,"events_conducted":1,"funds_utilized":"-5"}`, "funds_utilized"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, store := newReportRouter()
			w := postReport(router, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			body := decodeBody(t, w)
			details, ok := body["details"].(map[string]interface{})
			require.True(t, ok, w.Body.String())
			assert.Contains(t, details, tc.field)
			assert.Zero(t, store.calls)
		})
	}
}

func TestSubmitReportRejectsMalformedJSON(t *testing.T) {
	router, _ := newReportRouter()
	w := postReport(router, `{"organization_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitReportStoreError(t *testing.T) {
	router, store := newReportRouter()
	payload := `{"organization_id":"ngo-1","month":"2024-03","people_helped":1,"events_conducted":1,"funds_utilized":1}`

	store.err = errors.Wrap(errors.New("connection refused"), "upsert report")
	w := postReport(router, payload)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to save report", decodeBody(t, w)["error"])
}
