package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	depth int64
	err   error
}

func (d stubDispatcher) Dispatch(context.Context, string, []byte) error { return nil }
func (d stubDispatcher) Mode() string                                  { return "queue" }
func (d stubDispatcher) Depth(context.Context) (int64, error)          { return d.depth, d.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLogsRouteRequiresConfiguredToken(t *testing.T) {
	router := gin.New()
	RegisterLogsRoute(router, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?token=", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogsRouteRejectsWrongToken(t *testing.T) {
	router := gin.New()
	RegisterLogsRoute(router, "abc")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?token=abd", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusRouteReportsQueueDepth(t *testing.T) {
	router := gin.New()
	RegisterStatusRoute(router, Status{Dispatcher: stubDispatcher{depth: 4}, StartedAt: time.Now()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor/status", nil))

	// no database configured
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "queue", body["ingest_mode"])
	assert.EqualValues(t, 4, body["queue_depth"])
	assert.Equal(t, "not configured", body["database"])
	assert.Equal(t, false, body["success"])
}

func TestTailFileReturnsLastBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 10)+"tail"), 0o644))

	got, err := tailFile(path, 4)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(got))

	got, err = tailFile(path, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 14)
}
