// Package documents handles applicant uploads and their verification by
// staff. At most one upload per (application, requirement) is current;
// replacing it keeps the old row for history.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gcx-supplier-go/audit"
	"gcx-supplier-go/database"
	"gcx-supplier-go/locks"
	"gcx-supplier-go/metrics"
	"gcx-supplier-go/models"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/requirements"
	"gcx-supplier-go/review"
	"gcx-supplier-go/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnknownRequirement = errors.New("unknown or inactive document requirement")
	ErrEmptyFile          = errors.New("file is empty")
	ErrFileType           = errors.New("file type not allowed for this document")
	ErrFileTooLarge       = errors.New("file exceeds the size limit for this document")
	ErrUploadNotFound     = errors.New("upload not found")
	// ErrNotCurrent is returned when staff act on an upload that has since
	// been replaced.
	ErrNotCurrent = errors.New("upload has been superseded")
)

type Options struct {
	Store    storage.Store
	Locker   locks.Locker
	Audit    *audit.Recorder
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Policy   requirements.Policy
	Logger   *zap.Logger
	Now      func() time.Time

	PublicBaseURL string
}

type Service struct {
	db       *gorm.DB
	store    storage.Store
	locker   locks.Locker
	audit    *audit.Recorder
	notifier notify.Notifier
	metrics  *metrics.Metrics
	policy   requirements.Policy
	logger   *zap.Logger
	now      func() time.Time
	baseURL  string
}

func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:       db,
		store:    opts.Store,
		locker:   opts.Locker,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		policy:   opts.Policy,
		logger:   opts.Logger,
		now:      opts.Now,
		baseURL:  opts.PublicBaseURL,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("documents")
	if s.now == nil {
		s.now = time.Now
	}
	if s.locker == nil {
		s.locker = locks.NewKeyedMutex()
	}
	if s.audit == nil {
		s.audit = audit.NewRecorder(s.now)
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type UploadInput struct {
	ApplicationID   uint
	RequirementCode string
	Filename        string
	Data            []byte
}

// Upload stores a file against a requirement and makes it the current
// upload, superseding whatever was current before.
func (s *Service) Upload(ctx context.Context, in UploadInput, actor audit.Actor) (*models.DocumentUpload, error) {
	up, err := s.upload(ctx, in, actor)
	s.metrics.Document("upload", err)
	return up, err
}

func (s *Service) upload(ctx context.Context, in UploadInput, actor audit.Actor) (*models.DocumentUpload, error) {
	req, err := s.requirement(ctx, in.RequirementCode)
	if err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if !req.AllowsFile(in.Filename) {
		return nil, fmt.Errorf("%w: allowed %s", ErrFileType, strings.Join(req.Extensions(), ", "))
	}
	if limit := req.MaxBytes(); limit > 0 && int64(len(in.Data)) > limit {
		return nil, fmt.Errorf("%w: %d MB", ErrFileTooLarge, req.MaxFileSizeMB)
	}

	release, err := s.locker.Lock(ctx, locks.UploadKey(in.ApplicationID, req.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", review.ErrConcurrencyConflict, err)
	}
	defer release()

	var app models.SupplierApplication
	if err := s.db.WithContext(ctx).First(&app, in.ApplicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, review.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("load application: %w", err)
	}
	if err := review.CheckMutable(&app, "upload documents"); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(in.Data)
	key := fmt.Sprintf("documents/%s/%s/%s-%s", app.TrackingCode, req.Code, uuid.NewString(), storage.SafeName(in.Filename))
	ref, err := s.store.Put(ctx, key, in.Data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	upload := models.DocumentUpload{
		ApplicationID:    app.ID,
		RequirementID:    req.ID,
		Requirement:      req,
		StorageRef:       ref,
		OriginalFilename: in.Filename,
		FileSize:         int64(len(in.Data)),
		MimeType:         http.DetectContentType(in.Data),
		Checksum:         hex.EncodeToString(sum[:]),
		Current:          true,
		UploadedByID:     actor.UserID,
	}

	write := func(tx *gorm.DB) error {
		var app models.SupplierApplication
		if err := tx.First(&app, in.ApplicationID).Error; err != nil {
			return fmt.Errorf("load application: %w", err)
		}
		if err := review.CheckMutable(&app, "upload documents"); err != nil {
			return err
		}

		now := s.clock()
		superseded := tx.Model(&models.DocumentUpload{}).
			Where("application_id = ? AND requirement_id = ? AND is_current = ?", app.ID, req.ID, true).
			Updates(map[string]interface{}{"is_current": false, "superseded_at": now})
		if superseded.Error != nil {
			return fmt.Errorf("supersede previous upload: %w", superseded.Error)
		}

		row := upload
		row.ID = 0
		row.Requirement = nil
		row.UploadedAt = now
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create upload: %w", err)
		}
		if err := review.SaveVersioned(tx, &app, now, nil); err != nil {
			return err
		}
		if _, err := s.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionUploadDocument,
			Resource:      "DOCUMENT",
			Details:       in.Filename,
			Metadata: map[string]interface{}{
				"upload_id":   row.ID,
				"requirement": req.Code,
				"replaced":    superseded.RowsAffected > 0,
				"size":        row.FileSize,
			},
		}); err != nil {
			return err
		}
		if err := s.refreshRequests(tx, app.ID, actor); err != nil {
			return err
		}
		upload.ID = row.ID
		upload.UploadedAt = row.UploadedAt
		return nil
	}

	if err := s.transact(ctx, write); err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded",
		zap.Uint("application_id", app.ID),
		zap.String("requirement", req.Code),
		zap.Uint("upload_id", upload.ID))
	return &upload, nil
}

// Verify marks the current upload as accepted by staff. Verifying the GCX
// registration proof doubles as payment confirmation.
func (s *Service) Verify(ctx context.Context, uploadID uint, note string, actor audit.Actor) (*models.DocumentUpload, error) {
	up, err := s.apply(ctx, uploadID, actor, func(tx *gorm.DB, app *models.SupplierApplication, up *models.DocumentUpload, now time.Time) error {
		up.Verified = true
		up.VerifiedByID = actor.UserID
		up.VerifiedAt = &now
		up.VerifierNote = strings.TrimSpace(note)
		up.Rejected = false
		up.RejectedByID = nil
		up.RejectedAt = nil
		up.RejectionReason = ""

		action := models.ActionVerifyDocument
		if up.Requirement != nil && up.Requirement.Code == models.RequirementGCXRegistrationProof {
			action = models.ActionPaymentConfirmed
		}
		_, err := s.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        action,
			Resource:      "DOCUMENT",
			Details:       up.VerifierNote,
			Metadata:      map[string]interface{}{"upload_id": up.ID, "requirement": requirementCode(up)},
		})
		return err
	})
	s.metrics.Document("verify", err)
	return up, err
}

// RejectUpload marks the current upload as not accepted and tells the
// applicant why.
func (s *Service) RejectUpload(ctx context.Context, uploadID uint, reason string, actor audit.Actor) (*models.DocumentUpload, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, review.ErrReasonRequired
	}

	var app models.SupplierApplication
	up, err := s.apply(ctx, uploadID, actor, func(tx *gorm.DB, a *models.SupplierApplication, up *models.DocumentUpload, now time.Time) error {
		up.Rejected = true
		up.RejectedByID = actor.UserID
		up.RejectedAt = &now
		up.RejectionReason = reason
		up.Verified = false
		up.VerifiedByID = nil
		up.VerifiedAt = nil
		app = *a

		_, err := s.audit.Record(tx, audit.Entry{
			ApplicationID: a.ID,
			Actor:         actor,
			Action:        models.ActionRejectDocument,
			Resource:      "DOCUMENT",
			Details:       reason,
			Metadata:      map[string]interface{}{"upload_id": up.ID, "requirement": requirementCode(up)},
		})
		return err
	})
	s.metrics.Document("reject", err)
	if err != nil {
		return nil, err
	}

	label := requirementCode(up)
	if up.Requirement != nil {
		label = up.Requirement.Label
	}
	msgCtx := map[string]string{"reason": reason, "document": label}
	if s.baseURL != "" {
		msgCtx["completion_url"] = s.baseURL + "/applications/complete/" + app.CompletionToken
	}
	s.notifier.Notify(context.WithoutCancel(ctx), notify.Message{
		Kind:          notify.KindDocumentRejected,
		ApplicationID: app.ID,
		TrackingCode:  app.TrackingCode,
		BusinessName:  app.BusinessName,
		Email:         app.Email,
		Telephone:     app.Telephone,
		Context:       msgCtx,
	})
	return up, nil
}

type decideFunc func(tx *gorm.DB, app *models.SupplierApplication, up *models.DocumentUpload, now time.Time) error

// apply applies a staff decision to a current upload under the upload
// lock and bumps the application version.
func (s *Service) apply(ctx context.Context, uploadID uint, actor audit.Actor, decide decideFunc) (*models.DocumentUpload, error) {
	var probe models.DocumentUpload
	if err := s.db.WithContext(ctx).Select("id, application_id, requirement_id").First(&probe, uploadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("load upload: %w", err)
	}

	release, err := s.locker.Lock(ctx, locks.UploadKey(probe.ApplicationID, probe.RequirementID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", review.ErrConcurrencyConflict, err)
	}
	defer release()

	var out models.DocumentUpload
	err = s.transact(ctx, func(tx *gorm.DB) error {
		var up models.DocumentUpload
		if err := tx.Preload("Requirement").First(&up, uploadID).Error; err != nil {
			return fmt.Errorf("load upload: %w", err)
		}
		if !up.Current {
			return ErrNotCurrent
		}
		var app models.SupplierApplication
		if err := tx.First(&app, up.ApplicationID).Error; err != nil {
			return fmt.Errorf("load application: %w", err)
		}
		if err := review.CheckMutable(&app, "review documents"); err != nil {
			return err
		}

		now := s.clock()
		if err := decide(tx, &app, &up, now); err != nil {
			return err
		}
		if err := tx.Model(&up).Select(
			"verified", "verified_by_id", "verified_at", "verifier_note",
			"rejected", "rejected_by_id", "rejected_at", "rejection_reason",
		).Updates(&up).Error; err != nil {
			return fmt.Errorf("update upload: %w", err)
		}
		if err := review.SaveVersioned(tx, &app, now, nil); err != nil {
			return err
		}
		if err := s.refreshRequests(tx, app.ID, actor); err != nil {
			return err
		}
		out = up
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// transact runs fn in a transaction, retrying once on a transient failure.
func (s *Service) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if review.Transient(err) {
		s.logger.Warn("concurrent change detected, retrying", zap.Error(err))
		err = s.db.WithContext(ctx).Transaction(fn)
		if review.Transient(err) && !errors.Is(err, review.ErrConcurrencyConflict) {
			err = fmt.Errorf("%w: %w", review.ErrConcurrencyConflict, err)
		}
	}
	return err
}

// refreshRequests marks open document requests whose named requirements
// are now all satisfied as fulfilled.
func (s *Service) refreshRequests(tx *gorm.DB, appID uint, actor audit.Actor) error {
	agg, err := database.LoadAggregateTx(tx, appID)
	if err != nil {
		return err
	}
	res := requirements.Resolve(requirements.InputFrom(agg), s.policy)
	now := s.clock()
	for _, req := range agg.Requests {
		if req.Fulfilled || !requirements.Fulfilled(req, res) {
			continue
		}
		if err := tx.Model(&models.OutstandingDocumentRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{"fulfilled": true, "fulfilled_at": now}).Error; err != nil {
			return fmt.Errorf("mark request %d fulfilled: %w", req.ID, err)
		}
		if _, err := s.audit.Record(tx, audit.Entry{
			ApplicationID: appID,
			Actor:         actor,
			Action:        models.ActionRequestFulfilled,
			Resource:      "DOCUMENT_REQUEST",
			Metadata:      map[string]interface{}{"request_id": req.ID, "requirements": req.RequirementCodes()},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) requirement(ctx context.Context, code string) (*models.DocumentRequirement, error) {
	var req models.DocumentRequirement
	err := s.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		Limit(1).Find(&req).Error
	if err != nil {
		return nil, fmt.Errorf("load requirement: %w", err)
	}
	if req.ID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequirement, code)
	}
	return &req, nil
}

// History lists every upload for one requirement, newest first.
func (s *Service) History(ctx context.Context, appID uint, code string) ([]models.DocumentUpload, error) {
	var req models.DocumentRequirement
	if err := s.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).Limit(1).Find(&req).Error; err != nil {
		return nil, fmt.Errorf("load requirement: %w", err)
	}
	if req.ID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequirement, code)
	}

	var uploads []models.DocumentUpload
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND requirement_id = ?", appID, req.ID).
		Order("uploaded_at DESC, id DESC").
		Find(&uploads).Error
	if err != nil {
		return nil, fmt.Errorf("load upload history: %w", err)
	}
	return uploads, nil
}

// Content returns an upload's metadata and its stored bytes.
func (s *Service) Content(ctx context.Context, uploadID uint) (*models.DocumentUpload, []byte, error) {
	var up models.DocumentUpload
	if err := s.db.WithContext(ctx).Preload("Requirement").First(&up, uploadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUploadNotFound
		}
		return nil, nil, fmt.Errorf("load upload: %w", err)
	}
	data, err := s.store.Get(ctx, up.StorageRef)
	if err != nil {
		return nil, nil, err
	}
	return &up, data, nil
}

func requirementCode(up *models.DocumentUpload) string {
	if up.Requirement == nil {
		return ""
	}
	return up.Requirement.Code
}
