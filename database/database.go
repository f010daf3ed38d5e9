package database

import (
	"fmt"
	"strings"
	"time"

	"gcx-supplier-go/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteParams makes writers wait on each other instead of failing with
// SQLITE_BUSY, and takes the write lock at BEGIN.
const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on"

func DSN(databaseURL string) string {
	if strings.Contains(databaseURL, "?") {
		return databaseURL + "&" + sqliteParams
	}
	return databaseURL + "?" + sqliteParams
}

func Initialize(databaseURL string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(DSN(databaseURL)), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db); err != nil {
		return nil, fmt.Errorf("seed reference data: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Region{},
		&models.Commodity{},
		&models.SupplierApplication{},
		&models.TeamMember{},
		&models.NextOfKin{},
		&models.BankAccount{},
		&models.DocumentRequirement{},
		&models.DocumentUpload{},
		&models.OutstandingDocumentRequest{},
		&models.ReviewDecision{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	// At most one current upload per (application, requirement).
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_upload_current
		ON document_uploads (application_id, requirement_id) WHERE is_current = 1`).Error
}
