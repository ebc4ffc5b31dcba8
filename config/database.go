package config

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector returns the gorm dialector for the configured driver.
func (d DatabaseOptions) Dialector() (gorm.Dialector, error) {
	dsn, err := d.DSN()
	if err != nil {
		return nil, err
	}
	switch d.Driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
}

func InitDB(opts DatabaseOptions, environment string) error {
	dialector, err := opts.Dialector()
	if err != nil {
		return err
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if environment == Production && !opts.DebugSQL {
		logLevel = logger.Warn
	}

	config := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	DB = db

	Logger.WithField("driver", opts.Driver).Info("Database connected successfully")
	return nil
}
