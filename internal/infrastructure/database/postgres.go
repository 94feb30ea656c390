package database

import (
	"fmt"

	"appointment-scheduler/config"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN renders the connection string. Sessions run in UTC so DATE columns round-trip unchanged.
func DSN(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslMode,
	)
}

func NewPostgresConnection(cfg config.DBConfig, development bool) (*gorm.DB, error) {
	return OpenPostgres(DSN(cfg), cfg.MaxOpenConns, cfg.MaxIdleConns, development)
}

// OpenPostgres connects with an explicit DSN and pool sizes
func OpenPostgres(dsn string, maxOpen, maxIdle int, development bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if development {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	logrus.Info("Successfully connected to PostgreSQL database")

	return db, nil
}
