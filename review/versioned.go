package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gcx-supplier-go/models"

	"gorm.io/gorm"
)

// CheckMutable fails for applications that have already been decided.
func CheckMutable(app *models.SupplierApplication, action string) error {
	if app.Status.Terminal() {
		return &InvalidTransitionError{Action: action, From: app.Status}
	}
	return nil
}

// SaveVersioned writes fields only if the row still has app.Version, then
// bumps the version. A miss means someone else committed first.
func SaveVersioned(tx *gorm.DB, app *models.SupplierApplication, now time.Time, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["version"] = app.Version + 1
	fields["updated_at"] = now

	res := tx.Model(&models.SupplierApplication{}).
		Where("id = ? AND version = ?", app.ID, app.Version).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update application %d: %w", app.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}
	app.Version++
	app.UpdatedAt = now
	return nil
}

// Transient reports whether err is worth one more attempt with fresh state.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var provisioning *AccountProvisioningError
	if errors.As(err, &provisioning) {
		return false
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
