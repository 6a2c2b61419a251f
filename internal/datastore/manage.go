package datastore

import (
	"log"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DanceAddiction/DogShitAEye/internal/errors"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
)

const (
	// DefaultSlowQueryThreshold defines the duration after which a query is
	// considered slow. Migration batch queries can take several hundred
	// milliseconds, so the threshold sits above that.
	DefaultSlowQueryThreshold = 1 * time.Second
)

// Package-level logger for datastore operations
var storeLogger *slog.Logger

func init() {
	var err error
	storeLogger, _, err = logging.NewFileLogger("logs/datastore.log", "datastore", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize datastore file logger: %v", err)
		storeLogger = logging.ForService("datastore")
		if storeLogger == nil {
			storeLogger = slog.Default().With("service", "datastore")
		}
	}
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// performAutoMigration runs GORM auto-migration for all persisted models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Walker{},
		&Detection{},
		&WalkerImage{},
		&WalkSession{},
	); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		storeLogger.Debug("Database connection initialized",
			"db_type", dbType,
			"connection", connectionInfo)
	}

	return nil
}
