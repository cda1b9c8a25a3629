package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Operation status values
const (
	StatusSuccess      = "success"
	StatusFailed       = "failed"
	StatusUnauthorized = "unauthorized"
)

// OperationHistory keeps track of relayed Drive operations
type OperationHistory struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	RequestID  string    `json:"request_id" gorm:"index"`
	Operation  string    `json:"operation" gorm:"not null;index"` // list, info, upload, download, ...
	FileID     string    `json:"file_id"`                         // Google Drive file ID
	FileName   string    `json:"file_name"`
	Status     string    `json:"status" gorm:"not null"` // success, failed, unauthorized
	ErrorMsg   string    `json:"error_msg"`
	Bytes      int64     `json:"bytes"` // Transferred bytes for uploads and downloads
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (OperationHistory) TableName() string {
	return "gsa_operation_histories"
}

// Page sizes for GetOperationHistory
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Supported history drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ServiceConfig represents the history database configuration
type ServiceConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// Validate validates the database configuration
func (c *ServiceConfig) Validate() error {
	if c.Driver != DriverSQLite && c.Driver != DriverMySQL {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&OperationHistory{},
	)
}
