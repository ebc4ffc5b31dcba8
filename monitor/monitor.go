package monitor

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"os"
	"time"

	"ngo-report-api/config"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxLogTail is how much of the log file /logs returns.
const maxLogTail = 256 << 10

type queueDepth interface {
	Depth(ctx context.Context) (int64, error)
}

// Status reports what the monitor page shows besides the log tail.
type Status struct {
	DB         *gorm.DB
	Dispatcher services.JobDispatcher
	StartedAt  time.Time
}

func RegisterMonitorPage(router *gin.Engine) {
	router.GET("/monitor", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

// RegisterStatusRoute serves database, dispatcher and queue health as JSON.
func RegisterStatusRoute(router *gin.Engine, status Status) {
	router.GET("/monitor/status", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		healthy := true
		body := gin.H{"uptime": time.Since(status.StartedAt).Round(time.Second).String()}

		dbStatus := "ok"
		if status.DB == nil {
			dbStatus = "not configured"
			healthy = false
		} else if sqlDB, err := status.DB.DB(); err != nil {
			dbStatus = err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = err.Error()
			healthy = false
		}
		body["database"] = dbStatus

		if status.Dispatcher != nil {
			body["ingest_mode"] = status.Dispatcher.Mode()
			if q, ok := status.Dispatcher.(queueDepth); ok {
				depth, err := q.Depth(ctx)
				if err != nil {
					body["queue_error"] = err.Error()
					healthy = false
				} else {
					body["queue_depth"] = depth
				}
			}
		}

		body["success"] = healthy
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, body)
	})
}

// RegisterLogsRoute serves the tail of the log file. It is disabled when no
// token is configured.
func RegisterLogsRoute(router *gin.Engine, token string) {
	router.GET("/logs", func(c *gin.Context) {
		if token == "" || subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		logData, err := tailFile(config.LogFilePath(), maxLogTail)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}

func tailFile(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if offset := info.Size() - max; offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(f)
}

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>NGO Reports Monitor</title>
  <style>
    body { font-family: ui-monospace, Menlo, monospace; background: #0f172a; color: #e2e8f0; margin: 0; padding: 24px; }
    h1 { font-size: 20px; margin: 0 0 16px; }
    .card { background: #1e293b; border-radius: 10px; padding: 12px 16px; margin-bottom: 16px; }
    pre { background: #020617; border-radius: 10px; padding: 12px; max-height: 65vh; overflow: auto; white-space: pre-wrap; }
    button { background: #334155; color: #e2e8f0; border: 0; border-radius: 6px; padding: 6px 12px; cursor: pointer; }
  </style>
</head>
<body>
  <h1>NGO Reports Monitor</h1>
  <div class="card" id="status">Status: checking...</div>
  <div class="card"><button id="toggleBtn" onclick="toggleLive()">Pause Live Logs</button></div>
  <pre id="logs">Loading logs...</pre>
  <script>
    const token = new URLSearchParams(location.search).get('token') || '';
    const statusElement = document.getElementById('status');
    const logsElement = document.getElementById('logs');
    const toggleBtn = document.getElementById('toggleBtn');
    let liveLogs = true;

    function fetchStatus() {
      fetch('/monitor/status')
        .then(res => res.json())
        .then(data => {
          let text = 'Status: ' + (data.success ? 'online' : 'degraded') + ' | db: ' + data.database;
          if (data.ingest_mode) text += ' | ingest: ' + data.ingest_mode;
          if (data.queue_depth !== undefined) text += ' | queued jobs: ' + data.queue_depth;
          text += ' | uptime: ' + data.uptime;
          statusElement.textContent = text;
        })
        .catch(() => { statusElement.textContent = 'Status: offline'; });
    }

    function fetchLogs() {
      if (!liveLogs) return;
      fetch('/logs?token=' + encodeURIComponent(token))
        .then(res => res.ok ? res.text() : Promise.reject(res.status))
        .then(text => {
          logsElement.textContent = text;
          logsElement.scrollTop = logsElement.scrollHeight;
        })
        .catch(code => { logsElement.textContent = 'Unable to load logs (' + code + ')'; });
    }

    function toggleLive() {
      liveLogs = !liveLogs;
      toggleBtn.textContent = liveLogs ? 'Pause Live Logs' : 'Resume Live Logs';
    }

    fetchStatus();
    fetchLogs();
    setInterval(fetchStatus, 5000);
    setInterval(fetchLogs, 5000);
  </script>
</body>
</html>`
