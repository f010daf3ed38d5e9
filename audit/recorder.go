package audit

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gcx-supplier-go/models"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Actor is whoever triggered an action. A nil UserID means the applicant
// or the system.
type Actor struct {
	UserID    *uint
	Email     string
	IPAddress string
	UserAgent string
}

func Staff(id uint, email string) Actor {
	return Actor{UserID: &id, Email: email}
}

type Entry struct {
	ApplicationID uint
	Actor         Actor
	Action        string
	Resource      string
	Details       string
	Metadata      map[string]interface{}
}

// Recorder appends audit rows. It is always called with the caller's
// transaction so the entry commits or rolls back with the change it
// describes.
type Recorder struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

func (r *Recorder) Record(tx *gorm.DB, e Entry) (*models.AuditLog, error) {
	now := r.now().UTC()

	var meta string
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode audit metadata: %w", err)
		}
		meta = string(raw)
	}

	resource := e.Resource
	if resource == "" {
		resource = "APPLICATION"
	}

	entry := &models.AuditLog{
		EventID:   r.eventID(now),
		UserID:    e.Actor.UserID,
		Action:    e.Action,
		Resource:  resource,
		Details:   e.Details,
		Metadata:  meta,
		IPAddress: e.Actor.IPAddress,
		UserAgent: e.Actor.UserAgent,
		CreatedAt: now,
	}

	if e.ApplicationID != 0 {
		var last int64
		err := tx.Model(&models.AuditLog{}).
			Where("application_id = ?", e.ApplicationID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error
		if err != nil {
			return nil, fmt.Errorf("read audit sequence: %w", err)
		}
		id := e.ApplicationID
		entry.ApplicationID = &id
		entry.Sequence = last + 1
	}

	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("write audit entry: %w", err)
	}
	return entry, nil
}

func (r *Recorder) eventID(t time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), r.entropy).String()
}

// Timeline returns an application's audit trail in sequence order.
func Timeline(ctx context.Context, db *gorm.DB, applicationID uint) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := db.WithContext(ctx).
		Preload("User").
		Where("application_id = ?", applicationID).
		Order("sequence").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return entries, nil
}

// List pages through every audit entry, newest first.
func List(ctx context.Context, db *gorm.DB, page, limit int) ([]models.AuditLog, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []models.AuditLog
	err := db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
