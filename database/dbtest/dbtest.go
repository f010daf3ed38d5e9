// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gcx-supplier-go/database"
	"gcx-supplier-go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated and seeded database in t.TempDir().
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Initialize(path, logger.Silent)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewApplication inserts a complete application in PENDING_REVIEW.
// mutate runs before the insert.
func NewApplication(t testing.TB, db *gorm.DB, mutate func(*models.SupplierApplication)) *models.SupplierApplication {
	t.Helper()
	n := seq.Add(1)
	var region models.Region
	if err := db.Where("code = ?", "GR").First(&region).Error; err != nil {
		t.Fatalf("load region: %v", err)
	}
	now := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	app := &models.SupplierApplication{
		TrackingCode:       fmt.Sprintf("GCX-2025-%06d", 100000+n),
		Status:             models.StatusPendingReview,
		Version:            1,
		BusinessName:       fmt.Sprintf("Asante Agro Ventures %d", n),
		BusinessType:       "limited",
		RegistrationNumber: "CS123456789",
		TINNumber:          "C0012345678",
		PhysicalAddress:    "12 Liberation Road",
		City:               "Accra",
		Country:            "Ghana",
		RegionID:           &region.ID,
		Telephone:          "0241234567",
		Email:              fmt.Sprintf("supplier%d@example.com", n),
		WarehouseLocation:  "Tema Industrial Area",
		DeclarationAgreed:  true,
		DataConsent:        true,
		SignerName:         "Kwame Asante",
		SignerDesignation:  "Managing Director",
		SignedAt:           &now,
		SubmittedAt:        now,
		CompletionToken:    fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
	}
	if mutate != nil {
		mutate(app)
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

// Commodity loads a seeded commodity by name.
func Commodity(t testing.TB, db *gorm.DB, name string) models.Commodity {
	t.Helper()
	var c models.Commodity
	if err := db.Where("name = ?", name).First(&c).Error; err != nil {
		t.Fatalf("load commodity %q: %v", name, err)
	}
	return c
}

// Requirement loads a seeded requirement by code.
func Requirement(t testing.TB, db *gorm.DB, code string) models.DocumentRequirement {
	t.Helper()
	var r models.DocumentRequirement
	if err := db.Where("code = ?", code).First(&r).Error; err != nil {
		t.Fatalf("load requirement %q: %v", code, err)
	}
	return r
}

// SatisfyAll attaches a verified current upload for every unconditional
// requirement of the application.
func SatisfyAll(t testing.TB, db *gorm.DB, appID uint) {
	t.Helper()
	var reqs []models.DocumentRequirement
	if err := db.Where("is_required = ? AND is_active = ?", true, true).Find(&reqs).Error; err != nil {
		t.Fatalf("load requirements: %v", err)
	}
	now := time.Now().UTC()
	for _, r := range reqs {
		up := models.DocumentUpload{
			ApplicationID:    appID,
			RequirementID:    r.ID,
			StorageRef:       fmt.Sprintf("documents/test/%s/file.pdf", r.Code),
			OriginalFilename: "file.pdf",
			FileSize:         1024,
			MimeType:         "application/pdf",
			Current:          true,
			Verified:         true,
			VerifiedAt:       &now,
			UploadedAt:       now,
		}
		if err := db.Create(&up).Error; err != nil {
			t.Fatalf("create upload for %s: %v", r.Code, err)
		}
	}
}

// StaffUser inserts an active staff account.
func StaffUser(t testing.TB, db *gorm.DB) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Email:    fmt.Sprintf("reviewer%d@gcx.com.gh", n),
		Password: "not-a-real-hash",
		FullName: "Review Officer",
		Role:     models.RoleStaff,
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create staff user: %v", err)
	}
	return u
}
