package test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// JobRecord is the fake backend's row for one scrape job. It mirrors the
// backend's jobs table: status is stored as text and data is the opaque result
// document.
type JobRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	URL       string
	Selector  *string
	Status    string `gorm:"not null;default:pending"`
	Data      *string
	CreatedAt time.Time
}

// TableName keeps the backend's table name
func (JobRecord) TableName() string {
	return "jobs"
}

// NewFileBasedTestDB creates a new file-based SQLite database for testing.
// It returns the database connection and the path to the temporary directory.
func NewFileBasedTestDB() (*gorm.DB, string, error) {
	tmpDir, err := os.MkdirTemp("", "xcrape_test")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	dbPath := filepath.Join(tmpDir, "xcrape_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		// Try to clean up the temporary directory, but don't fail if cleanup fails
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			fmt.Printf("Warning: failed to remove temporary directory after database error: %v\n", rmErr)
		}
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return db, tmpDir, nil
}

// CleanupTestDB closes the database connection and removes the temporary directory.
func CleanupTestDB(db *gorm.DB, tmpDir string) {
	sqlDB, err := db.DB()
	if err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			fmt.Printf("Error closing database connection: %v\n", closeErr)
		}
	}
	if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
		fmt.Printf("Error removing temporary directory: %v\n", rmErr)
	}
}

// RunMigrations creates the jobs table
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SetupTestDB configures the test suite to use the provided database connection.
// If nil is provided, a new file-based database will be created.
func SetupTestDB(suite *Suite, database *gorm.DB) {
	if database != nil {
		suite.DB = database
		return
	}

	dbConn, tmpDir, err := NewFileBasedTestDB()
	suite.Require().NoError(err, "Failed to create file-based database")
	suite.DB = dbConn

	err = RunMigrations(suite.DB)
	suite.Require().NoError(err, "Failed to run database migrations")

	oldCleanup := suite.cleanup
	suite.cleanup = func() {
		if oldCleanup != nil {
			oldCleanup()
		}
		CleanupTestDB(suite.DB, tmpDir)
	}
}
