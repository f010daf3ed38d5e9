package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gcx-supplier-go/models"
	"gcx-supplier-go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const temporaryPasswordLength = 12

var ErrStaffEmail = errors.New("email belongs to a staff account")

// Credentials are returned once. TemporaryPassword is empty when an
// existing account was linked instead of created.
type Credentials struct {
	UserID            uint   `json:"user_id"`
	Username          string `json:"username"`
	TemporaryPassword string `json:"temporary_password,omitempty"`
	Existing          bool   `json:"existing"`
}

type Provisioner struct {
	logger *zap.Logger
}

func NewProvisioner(logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{logger: logger.Named("accounts")}
}

// CreateSupplierAccount runs inside the approval transaction, so a failure
// here rolls the approval back with it.
func (p *Provisioner) CreateSupplierAccount(ctx context.Context, tx *gorm.DB, app *models.SupplierApplication) (*Credentials, error) {
	email := strings.ToLower(strings.TrimSpace(app.Email))
	if email == "" {
		return nil, errors.New("application has no email address")
	}

	// Soft-deleted rows still hold the unique email.
	var existing models.User
	err := tx.WithContext(ctx).Unscoped().Where("email = ?", email).Limit(1).Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if existing.ID != 0 && existing.IsStaff() {
		return nil, fmt.Errorf("%w: %s", ErrStaffEmail, email)
	}
	if existing.ID != 0 && !existing.DeletedAt.Valid {
		p.logger.Info("linking existing supplier account",
			zap.Uint("user_id", existing.ID), zap.String("tracking_code", app.TrackingCode))
		return &Credentials{UserID: existing.ID, Username: existing.Email, Existing: true}, nil
	}

	password, err := utils.GenerateTemporaryPassword(temporaryPasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if existing.ID != 0 {
		err := tx.WithContext(ctx).Unscoped().Model(&existing).Updates(map[string]interface{}{
			"deleted_at":           nil,
			"password":             hash,
			"phone":                app.Telephone,
			"full_name":            app.BusinessName,
			"is_active":            true,
			"must_change_password": true,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("restore supplier user: %w", err)
		}
		p.logger.Info("supplier account restored",
			zap.Uint("user_id", existing.ID), zap.String("tracking_code", app.TrackingCode))
		return &Credentials{UserID: existing.ID, Username: existing.Email, TemporaryPassword: password}, nil
	}

	user := models.User{
		Email:              email,
		Phone:              app.Telephone,
		Password:           hash,
		FullName:           app.BusinessName,
		Role:               models.RoleSupplier,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create supplier user: %w", err)
	}

	p.logger.Info("supplier account created",
		zap.Uint("user_id", user.ID), zap.String("tracking_code", app.TrackingCode))
	return &Credentials{UserID: user.ID, Username: user.Email, TemporaryPassword: password}, nil
}

// EnsureStaff creates the bootstrap staff account if it does not exist.
func EnsureStaff(db *gorm.DB, email, password string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := db.Where("email = ?", email).Limit(1).Find(&user).Error; err != nil {
		return nil, false, err
	}
	if user.ID != 0 {
		return &user, false, nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user = models.User{
		Email:    email,
		Password: hash,
		FullName: "GCX Reviewer",
		Role:     models.RoleStaff,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("create staff user: %w", err)
	}
	return &user, true, nil
}

// Authenticate checks an email and password against an active account.
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).First(&user).Error
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordReused     = errors.New("new password must differ from the current one")
)

// ChangePassword replaces an active user's password after checking the
// current one, and clears the forced-change flag.
func ChangePassword(ctx context.Context, db *gorm.DB, userID uint, current, next string) error {
	var user models.User
	if err := db.WithContext(ctx).Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		return ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(current, user.Password) {
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrPasswordReused
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"password":             hash,
		"must_change_password": false,
	}).Error
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
