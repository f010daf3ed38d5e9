package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gcx-supplier-go/audit"
	"gcx-supplier-go/models"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const trackingCodeAttempts = 100

// ErrAccountNameMismatch is returned when a bank account is not held in
// the business name.
var ErrAccountNameMismatch = errors.New("bank account name must match the business name")

// Submit creates a new application in PENDING_REVIEW.
func (m *Manager) Submit(ctx context.Context, req models.SubmitApplicationRequest, actor audit.Actor) (*models.SupplierApplication, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	businessName := utils.SanitizeString(req.BusinessName)
	for _, acct := range req.BankAccounts {
		if !utils.AccountNameMatches(acct.AccountName, businessName) {
			return nil, fmt.Errorf("%w: %q", ErrAccountNameMismatch, acct.AccountName)
		}
	}

	var app models.SupplierApplication
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var region models.Region
		if err := tx.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.RegionCode))).Limit(1).Find(&region).Error; err != nil {
			return fmt.Errorf("load region: %w", err)
		}
		if region.ID == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownRegion, req.RegionCode)
		}

		commodities, err := activeCommodities(tx, req.CommodityIDs)
		if err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.SupplierApplication{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken > 0 {
			return ErrDuplicateEmail
		}

		now := m.clock()
		code, err := m.trackingCode(tx, now.Year())
		if err != nil {
			return err
		}
		deadline := now.Add(m.completionWindow)

		app = models.SupplierApplication{
			TrackingCode:       code,
			Status:             models.StatusPendingReview,
			Version:            1,
			BusinessName:       businessName,
			BusinessType:       req.BusinessType,
			RegistrationNumber: utils.SanitizeString(req.RegistrationNumber),
			TINNumber:          utils.SanitizeString(req.TINNumber),
			PhysicalAddress:    utils.SanitizeString(req.PhysicalAddress),
			City:               utils.SanitizeString(req.City),
			PostalCode:         utils.SanitizeString(req.PostalCode),
			Country:            "Ghana",
			RegionID:           &region.ID,
			Telephone:          utils.SanitizeString(req.Telephone),
			Email:              email,
			Commodities:        commodities,
			OtherCommodities:   utils.SanitizeString(req.OtherCommodities),
			WarehouseLocation:  utils.SanitizeString(req.WarehouseLocation),
			DeclarationAgreed:  req.DeclarationAgreed,
			DataConsent:        req.DataConsent,
			SignerName:         utils.SanitizeString(req.SignerName),
			SignerDesignation:  utils.SanitizeString(req.SignerDesignation),
			SignedAt:           &now,
			SubmittedAt:        now,
			CompletionToken:    uuid.NewString(),
			CompletionDeadline: &deadline,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		for _, tm := range req.TeamMembers {
			app.TeamMembers = append(app.TeamMembers, models.TeamMember{
				FullName:        tm.FullName,
				Position:        tm.Position,
				YearsExperience: tm.YearsExperience,
				Address:         tm.Address,
				City:            tm.City,
				Country:         tm.Country,
				Region:          tm.Region,
				Telephone:       tm.Telephone,
				Email:           strings.ToLower(tm.Email),
				IDCardType:      tm.IDCardType,
				IDCardNumber:    tm.IDCardNumber,
			})
		}
		for _, k := range req.NextOfKin {
			app.NextOfKin = append(app.NextOfKin, models.NextOfKin{
				FullName:     k.FullName,
				Relationship: k.Relationship,
				Address:      k.Address,
				Mobile:       k.Mobile,
				IDCardType:   k.IDCardType,
				IDCardNumber: k.IDCardNumber,
			})
		}
		for i, b := range req.BankAccounts {
			app.BankAccounts = append(app.BankAccounts, models.BankAccount{
				BankName:      b.BankName,
				Branch:        b.Branch,
				AccountName:   b.AccountName,
				AccountNumber: b.AccountNumber,
				AccountIndex:  i + 1,
			})
		}

		if err := tx.Omit("Commodities.*").Create(&app).Error; err != nil {
			return fmt.Errorf("create application: %w", err)
		}

		_, err = m.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionSubmitApplication,
			Metadata: map[string]interface{}{
				"tracking_code": app.TrackingCode,
				"new_status":    app.Status,
			},
		})
		return err
	})
	if err != nil {
		m.metrics.Transition("submit", err)
		return nil, err
	}

	log := m.logger.With(zap.Uint("application_id", app.ID), zap.String("action", "submit"))
	m.afterCommit(ctx, log, &outcome{
		app:           app,
		statusChanged: true,
		message: messageFor(&app, notify.KindSubmitted, map[string]string{
			"status_url": m.link("/applications/status/" + app.TrackingCode),
		}),
	})
	m.metrics.Transition("submit", nil)
	return &app, nil
}

func activeCommodities(tx *gorm.DB, ids []uint) ([]models.Commodity, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Commodity
	if err := tx.Where("id IN ? AND is_active = ?", ids, true).Order("name").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load commodities: %w", err)
	}
	if len(found) != len(ids) {
		return nil, ErrUnknownCommodity
	}
	return found, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// trackingCode draws random codes until one is unused, then falls back to
// a longer numeric suffix.
func (m *Manager) trackingCode(tx *gorm.DB, year int) (string, error) {
	for i := 0; i < trackingCodeAttempts; i++ {
		code, err := utils.GenerateTrackingCode(year)
		if err != nil {
			return "", fmt.Errorf("generate tracking code: %w", err)
		}
		var n int64
		if err := tx.Model(&models.SupplierApplication{}).Where("tracking_code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check tracking code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	m.logger.Warn("tracking code space congested, using fallback", zap.Int("year", year))
	code, err := utils.FallbackTrackingCode(year)
	if err != nil {
		return "", fmt.Errorf("generate tracking code: %w", err)
	}
	return code, nil
}
