package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Service struct {
	db *gorm.DB
}

// NewService opens the history database and migrates it
func NewService(config *ServiceConfig) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case DriverMySQL:
		dialector = mysql.Open(config.DSN)
	default:
		dialector = sqlite.Open(config.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", config.Driver, err)
	}

	return NewServiceWithDB(db)
}

// NewServiceWithDB wraps an already opened connection
func NewServiceWithDB(db *gorm.DB) (*Service, error) {
	// Auto-migrate models
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Service{db: db}, nil
}

// SaveOperation saves an operation history record
func (s *Service) SaveOperation(history *OperationHistory) error {
	return s.db.Create(history).Error
}

// GetOperationHistory retrieves operation history with pagination, newest first.
// A non-positive limit uses DefaultHistoryLimit and no page exceeds MaxHistoryLimit.
func (s *Service) GetOperationHistory(limit, offset int) ([]OperationHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	var history []OperationHistory
	err := s.db.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&history).Error
	return history, err
}

// CountOperations returns the number of stored history records
func (s *Service) CountOperations() (int64, error) {
	var count int64
	err := s.db.Model(&OperationHistory{}).Count(&count).Error
	return count, err
}

// DeleteOperationsBefore removes history records created before cutoff
func (s *Service) DeleteOperationsBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&OperationHistory{})
	return res.RowsAffected, res.Error
}

// Ping checks the underlying connection
func (s *Service) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the database connection
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
