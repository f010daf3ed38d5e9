package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gcx-supplier-go/database"
	"gcx-supplier-go/models"
	"gcx-supplier-go/requirements"

	"gorm.io/gorm"
)

// ReviewView is what a reviewer sees for one application.
type ReviewView struct {
	*models.ApplicationAggregate
	Documents requirements.Result `json:"documents"`
}

// Review loads the application aggregate and resolves its documents.
func (m *Manager) Review(ctx context.Context, id uint) (*ReviewView, error) {
	agg, err := database.LoadAggregate(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	res := requirements.Resolve(requirements.InputFrom(agg), m.policy)
	m.logWarnings(id, res)
	return &ReviewView{ApplicationAggregate: agg, Documents: res}, nil
}

func (m *Manager) Get(ctx context.Context, id uint) (*models.SupplierApplication, error) {
	return m.findOne(ctx, "id = ?", id)
}

func (m *Manager) FindByTracking(ctx context.Context, code string) (*models.SupplierApplication, error) {
	return m.findOne(ctx, "tracking_code = ?", strings.ToUpper(strings.TrimSpace(code)))
}

// FindByCompletionToken resolves the link sent with a document request.
// Expired tokens are reported as not found.
func (m *Manager) FindByCompletionToken(ctx context.Context, token string) (*models.SupplierApplication, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrApplicationNotFound
	}
	app, err := m.findOne(ctx, "completion_token = ?", token)
	if err != nil {
		return nil, err
	}
	if app.CompletionDeadline != nil && m.clock().After(*app.CompletionDeadline) {
		return nil, fmt.Errorf("%w: completion link expired", ErrApplicationNotFound)
	}
	return app, nil
}

func (m *Manager) findOne(ctx context.Context, query string, arg interface{}) (*models.SupplierApplication, error) {
	var app models.SupplierApplication
	err := m.db.WithContext(ctx).Preload("Region").Where(query, arg).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	return &app, nil
}

// PublicStatus is the tracking-code lookup offered to applicants.
func (m *Manager) PublicStatus(ctx context.Context, code string) (*models.ApplicationStatusResponse, error) {
	app, err := m.FindByTracking(ctx, code)
	if err != nil {
		return nil, err
	}
	view, err := m.Review(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(view.Documents.Documents))
	for _, d := range view.Documents.Documents {
		labels[d.Code] = d.Label
	}
	outstanding := make([]string, 0, len(view.Documents.Outstanding))
	for _, code := range view.Documents.Outstanding {
		outstanding = append(outstanding, labels[code])
	}
	return &models.ApplicationStatusResponse{
		TrackingCode:         app.TrackingCode,
		BusinessName:         app.BusinessName,
		Status:               app.Status,
		StatusLabel:          app.Status.Label(),
		OutstandingDocuments: outstanding,
	}, nil
}

type ListFilter struct {
	Status models.Status
	Search string
	Page   int
	Limit  int
}

type ListResult struct {
	Applications []models.SupplierApplication `json:"applications"`
	Total        int64                        `json:"total"`
	Page         int                          `json:"page"`
	Limit        int                          `json:"limit"`
}

func (m *Manager) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := m.db.WithContext(ctx).Model(&models.SupplierApplication{})
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("invalid status filter %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(business_name) LIKE ? OR LOWER(tracking_code) LIKE ? OR email LIKE ?", like, like, like)
	}

	out := &ListResult{Page: f.Page, Limit: f.Limit}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	if err := q.Preload("Region").
		Order("submitted_at DESC, id DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&out.Applications).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return out, nil
}

// Overdue returns applications under review whose completion deadline has
// passed.
func (m *Manager) Overdue(ctx context.Context) ([]models.SupplierApplication, error) {
	var apps []models.SupplierApplication
	err := m.db.WithContext(ctx).
		Where("status = ? AND completion_deadline IS NOT NULL AND completion_deadline < ?", models.StatusUnderReview, m.clock()).
		Order("completion_deadline").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue applications: %w", err)
	}
	return apps, nil
}
