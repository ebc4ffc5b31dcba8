// Package bootstrap builds the services shared by the API server and the
// report-import command from Settings.
package bootstrap

import (
	"context"
	"time"

	"ngo-report-api/config"
	"ngo-report-api/controllers"
	"ngo-report-api/middleware"
	"ngo-report-api/migrations"
	"ngo-report-api/monitor"
	"ngo-report-api/routes"
	"ngo-report-api/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Settings *config.Settings
	DB       *gorm.DB
	Redis    *redis.Client

	Reports    *services.ReportRepository
	Jobs       *services.BulkUploadJobService
	Ingestion  *services.ReportIngestionService
	Dispatcher services.JobDispatcher
	Dashboards *services.DashboardService
	Notifier   *services.MailJobNotifier

	startedAt time.Time
}

// New connects the database (and Redis when queue mode or the redis rate limit
// store needs it) and wires the services.
func New(settings *config.Settings) (*App, error) {
	if err := config.InitDB(settings.Database, settings.Environment); err != nil {
		return nil, err
	}
	return NewWithDB(settings, config.DB)
}

// NewWithDB wires the services on an existing connection.
func NewWithDB(settings *config.Settings, db *gorm.DB) (*App, error) {
	app := &App{Settings: settings, DB: db, startedAt: time.Now()}

	needsRedis := settings.Ingest.Mode == config.IngestModeQueue ||
		(settings.RateLimit.Enabled && settings.RateLimit.Storage == "redis")
	if needsRedis {
		client, err := config.NewRedisClient(settings.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = client
	}

	app.Reports = services.NewReportRepository(db)
	app.Jobs = services.NewBulkUploadJobService(db)
	app.Ingestion = services.NewReportIngestionService(app.Reports, app.Jobs)
	if mailer := config.NewMailer(settings.Mail); mailer.Enabled() {
		app.Notifier = services.NewMailJobNotifier(mailer, config.Logger)
		app.Ingestion.WithNotifier(app.Notifier)
	}
	app.Dashboards = services.NewDashboardService(app.Reports)

	if settings.Ingest.Mode == config.IngestModeQueue {
		app.Dispatcher = services.NewRedisQueueDispatcher(app.Redis, settings.Ingest.QueueKey)
	} else {
		app.Dispatcher = services.NewInlineDispatcher(app.Ingestion)
	}
	return app, nil
}

// Migrate applies the embedded goose migrations for the configured driver.
func (a *App) Migrate() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}
	return migrations.Up(sqlDB, a.Settings.Database.Driver, config.Logger)
}

// NewQueueWorker returns a worker draining the ingest queue.
func (a *App) NewQueueWorker() (*services.QueueWorker, error) {
	if a.Redis == nil {
		client, err := config.NewRedisClient(a.Settings.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}
	return services.NewQueueWorker(a.Redis, a.Settings.Ingest.QueueKey, a.Ingestion, a.Settings.Ingest.PollTimeout), nil
}

// NewRouter builds the gin engine with the middleware stack and every route.
func (a *App) NewRouter() (*gin.Engine, error) {
	router := gin.New()
	router.MaxMultipartMemory = a.Settings.Ingest.MaxUploadBytes
	router.Use(gin.LoggerWithWriter(config.LogWriter))
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware(a.Settings.CORS))

	if a.Settings.RateLimit.Enabled {
		limit, err := middleware.RateLimit(a.Settings.RateLimit, middleware.NewRateLimitStore(a.Settings.RateLimit, a.Redis))
		if err != nil {
			return nil, errors.Wrap(err, "configure rate limit")
		}
		router.Use(limit)
	}

	monitor.RegisterMonitorPage(router)
	monitor.RegisterStatusRoute(router, monitor.Status{DB: a.DB, Dispatcher: a.Dispatcher, StartedAt: a.startedAt})
	monitor.RegisterLogsRoute(router, a.Settings.Monitor.LogsToken)

	err := routes.SetupRoutes(router, routes.Handlers{
		Reports:    controllers.NewReportController(a.Reports),
		Uploads:    controllers.NewBulkUploadController(a.Jobs, a.Dispatcher, a.Settings.Ingest.MaxUploadBytes),
		Jobs:       controllers.NewJobStatusController(a.Jobs),
		Dashboards: controllers.NewDashboardController(a.Dashboards),
		Auth:       middleware.NewAuth(a.Settings.Auth.JWTSecret),
	})
	if err != nil {
		return nil, err
	}
	return router, nil
}

// Close waits for pending job notifications, then releases Redis and the DB.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
