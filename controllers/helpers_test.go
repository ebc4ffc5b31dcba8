package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ngo-report-api/models"
	"ngo-report-api/services"
	"ngo-report-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := utils.RegisterValidators(); err != nil {
		panic(err)
	}
}

func perform(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// fakeJobs is an in-memory job store for the upload and status handlers.
type fakeJobs struct {
	mu       sync.Mutex
	jobs     map[string]*models.BulkUploadJob
	failed   map[string]string
	ordered  []string
	createFn func(jobID string) error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*models.BulkUploadJob{}, failed: map[string]string{}}
}

func (f *fakeJobs) Create(_ context.Context, jobID, fileName string) (*models.BulkUploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		if err := f.createFn(jobID); err != nil {
			return nil, err
		}
	}
	job := &models.BulkUploadJob{JobID: jobID, FileName: fileName, Status: models.BulkUploadStatusPending}
	f.jobs[jobID] = job
	f.ordered = append(f.ordered, jobID)
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) Fail(_ context.Context, jobID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return services.ErrBulkUploadJobNotFound
	}
	msg := "Processing failed: " + reason
	job.Status = models.BulkUploadStatusFailed
	job.ErrorMessage = &msg
	f.failed[jobID] = reason
	return nil
}

func (f *fakeJobs) Get(_ context.Context, jobID string) (*models.BulkUploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, services.ErrBulkUploadJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) List(_ context.Context, limit, offset int) ([]models.BulkUploadJob, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BulkUploadJob
	for i := len(f.ordered) - 1; i >= 0; i-- {
		out = append(out, *f.jobs[f.ordered[i]])
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeJobs) update(jobID string, fn func(*models.BulkUploadJob)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.jobs[jobID])
}
