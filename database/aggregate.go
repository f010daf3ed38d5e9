package database

import (
	"context"
	"errors"
	"fmt"

	"gcx-supplier-go/models"

	"gorm.io/gorm"
)

var ErrApplicationNotFound = errors.New("application not found")

// LoadAggregate reads an application and all of its related records in a
// single transaction so the result is never a torn snapshot.
func LoadAggregate(ctx context.Context, db *gorm.DB, id uint) (*models.ApplicationAggregate, error) {
	var agg *models.ApplicationAggregate
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		agg, err = LoadAggregateTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// LoadAggregateTx is LoadAggregate for callers that already hold a transaction.
func LoadAggregateTx(tx *gorm.DB, id uint) (*models.ApplicationAggregate, error) {
	agg := &models.ApplicationAggregate{}

	err := tx.
		Preload("Region").
		Preload("Commodities", func(db *gorm.DB) *gorm.DB { return db.Order("commodities.name") }).
		Preload("TeamMembers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("NextOfKin", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("BankAccounts", func(db *gorm.DB) *gorm.DB { return db.Order("account_index, id") }).
		First(&agg.Application, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrApplicationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load application %d: %w", id, err)
	}

	if err := tx.Preload("Requirement").
		Where("application_id = ? AND is_current = ?", id, true).
		Order("uploaded_at, id").
		Find(&agg.Uploads).Error; err != nil {
		return nil, fmt.Errorf("load uploads: %w", err)
	}

	if err := tx.Preload("Requirements").
		Where("application_id = ?", id).
		Order("created_at, id").
		Find(&agg.Requests).Error; err != nil {
		return nil, fmt.Errorf("load document requests: %w", err)
	}

	var decision models.ReviewDecision
	err = tx.Where("application_id = ?", id).Limit(1).Find(&decision).Error
	if err != nil {
		return nil, fmt.Errorf("load decision: %w", err)
	}
	if decision.ID != 0 {
		agg.Decision = &decision
	}

	catalog, err := Catalog(tx)
	if err != nil {
		return nil, err
	}
	agg.Catalog = catalog

	return agg, nil
}

// Catalog returns every requirement, active or not, in catalog order.
func Catalog(db *gorm.DB) ([]models.DocumentRequirement, error) {
	var catalog []models.DocumentRequirement
	if err := db.Order("sort_order, id").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("load requirement catalog: %w", err)
	}
	return catalog, nil
}

func StatusCounts(ctx context.Context, db *gorm.DB) (map[models.Status]int64, error) {
	type row struct {
		Status models.Status
		Count  int64
	}
	var rows []row
	err := db.WithContext(ctx).Model(&models.SupplierApplication{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}

	counts := make(map[models.Status]int64, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
