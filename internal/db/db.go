package db

import (
	"fmt"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ukydev/telemetry-ingest/internal/models"
)

// Connect opens the relational store using the DB_DSN environment
// variable and verifies the connection.
func Connect() (*gorm.DB, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "ingest:ingest@tcp(mysql:3306)/ingest?charset=utf8mb4&parseTime=True&loc=UTC"
	}

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open error: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates the ingest tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Device{},
		&models.Measurement{},
		&models.ErrorRecord{},
		&models.User{},
	)
}
