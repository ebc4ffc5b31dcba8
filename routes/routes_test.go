package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ngo-report-api/controllers"
	"ngo-report-api/middleware"
	"ngo-report-api/models"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopReports struct{}

func (nopReports) Upsert(context.Context, services.ReportRecord) (*models.Report, bool, error) {
	return &models.Report{}, true, nil
}

type nopJobs struct{}

func (nopJobs) Create(_ context.Context, jobID, _ string) (*models.BulkUploadJob, error) {
	return &models.BulkUploadJob{JobID: jobID}, nil
}
func (nopJobs) Fail(context.Context, string, string) error { return nil }
func (nopJobs) Get(context.Context, string) (*models.BulkUploadJob, error) {
	return nil, services.ErrBulkUploadJobNotFound
}
func (nopJobs) List(context.Context, int, int) ([]models.BulkUploadJob, int64, error) {
	return nil, 0, nil
}

type nopDashboards struct{}

func (nopDashboards) GetDashboard(context.Context, string) (*services.Dashboard, error) {
	return nil, services.ErrInvalidMonth
}

func newTestRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	err := SetupRoutes(router, Handlers{
		Reports:    controllers.NewReportController(nopReports{}),
		Uploads:    controllers.NewBulkUploadController(nopJobs{}, services.NewInlineDispatcher(nil), 1<<20),
		Jobs:       controllers.NewJobStatusController(nopJobs{}),
		Dashboards: controllers.NewDashboardController(nopDashboards{}),
		Auth:       middleware.NewAuth(secret),
	})
	require.NoError(t, err)
	return router
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}

func TestWriteRoutesRequireTokenWhenSecretSet(t *testing.T) {
	router := newTestRouter(t, "s3cret")

	for _, path := range []string{"/api/v1/report", "/api/v1/reports/upload"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	// reads stay public
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/job-status/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Job not found")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
