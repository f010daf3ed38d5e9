// Package review owns the status lifecycle of a supplier application:
//
//	PENDING_REVIEW -> UNDER_REVIEW -> APPROVED | REJECTED
//
// UNDER_REVIEW may be re-entered; APPROVED and REJECTED are final. Every
// transition runs under the application's lock and inside one transaction.
// Side effects (notification, dashboard, metrics) run after commit, once the
// lock is released.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/audit"
	"gcx-supplier-go/locks"
	"gcx-supplier-go/metrics"
	"gcx-supplier-go/models"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/requirements"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AccountProvisioner interface {
	CreateSupplierAccount(ctx context.Context, tx *gorm.DB, app *models.SupplierApplication) (*accounts.Credentials, error)
}

// EventSink hears about committed changes, e.g. the live dashboard.
type EventSink interface {
	ApplicationChanged(ctx context.Context, app models.SupplierApplication)
}

type Options struct {
	Locker   locks.Locker
	Audit    *audit.Recorder
	Accounts AccountProvisioner
	Notifier notify.Notifier
	Events   EventSink
	Metrics  *metrics.Metrics
	Policy   requirements.Policy
	Logger   *zap.Logger
	Now      func() time.Time

	// CompletionWindow is how long an applicant has to answer a document request.
	CompletionWindow time.Duration
	// PublicBaseURL prefixes links placed in notifications.
	PublicBaseURL string
}

type Manager struct {
	db               *gorm.DB
	locker           locks.Locker
	audit            *audit.Recorder
	accounts         AccountProvisioner
	notifier         notify.Notifier
	events           EventSink
	metrics          *metrics.Metrics
	policy           requirements.Policy
	logger           *zap.Logger
	now              func() time.Time
	completionWindow time.Duration
	baseURL          string
}

func NewManager(db *gorm.DB, opts Options) *Manager {
	m := &Manager{
		db:               db,
		locker:           opts.Locker,
		audit:            opts.Audit,
		accounts:         opts.Accounts,
		notifier:         opts.Notifier,
		events:           opts.Events,
		metrics:          opts.Metrics,
		policy:           opts.Policy,
		logger:           opts.Logger,
		now:              opts.Now,
		completionWindow: opts.CompletionWindow,
		baseURL:          opts.PublicBaseURL,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("review")
	if m.now == nil {
		m.now = time.Now
	}
	if m.locker == nil {
		m.locker = locks.NewKeyedMutex()
	}
	if m.audit == nil {
		m.audit = audit.NewRecorder(m.now)
	}
	if m.accounts == nil {
		m.accounts = accounts.NewProvisioner(m.logger)
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	if m.completionWindow <= 0 {
		m.completionWindow = 30 * 24 * time.Hour
	}
	return m
}

func (m *Manager) Policy() requirements.Policy {
	return m.policy
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// outcome is what a committed transition hands to the post-commit steps.
type outcome struct {
	app           models.SupplierApplication
	decision      *models.ReviewDecision
	request       *models.OutstandingDocumentRequest
	credentials   *accounts.Credentials
	message       *notify.Message
	statusChanged bool
}

type mutation func(tx *gorm.DB, app *models.SupplierApplication) (*outcome, error)

func (m *Manager) run(ctx context.Context, id uint, action string, fn mutation) (*outcome, error) {
	log := m.logger.With(zap.Uint("application_id", id), zap.String("action", action))

	out, err := m.commit(ctx, log, id, fn)
	if err != nil {
		m.metrics.Transition(action, err)
		log.Info("transition refused", zap.Error(err))
		return nil, err
	}

	// Lock released by now.
	m.afterCommit(ctx, log, out)
	m.metrics.Transition(action, nil)
	return out, nil
}

// commit holds the application lock for the transaction and at most one
// retry.
func (m *Manager) commit(ctx context.Context, log *zap.Logger, id uint, fn mutation) (*outcome, error) {
	release, err := m.locker.Lock(ctx, locks.ApplicationKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	defer release()

	out, err := m.attempt(ctx, id, fn)
	if Transient(err) {
		log.Warn("concurrent change detected, retrying", zap.Error(err))
		out, err = m.attempt(ctx, id, fn)
		if Transient(err) && !errors.Is(err, ErrConcurrencyConflict) {
			err = fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
		}
	}
	return out, err
}

func (m *Manager) attempt(ctx context.Context, id uint, fn mutation) (*outcome, error) {
	var out *outcome
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.SupplierApplication
		if err := tx.First(&app, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrApplicationNotFound, id)
			}
			return fmt.Errorf("load application %d: %w", id, err)
		}
		var err error
		out, err = fn(tx, &app)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// afterCommit runs notification, then the dashboard event. Neither can
// undo the committed change.
func (m *Manager) afterCommit(ctx context.Context, log *zap.Logger, out *outcome) {
	detached := context.WithoutCancel(ctx)
	if out.message != nil {
		if !m.notifier.Notify(detached, *out.message) {
			log.Debug("no notification channel available", zap.String("kind", string(out.message.Kind)))
		}
	}
	if out.statusChanged && m.events != nil {
		m.events.ApplicationChanged(detached, out.app)
	}
	log.Info("application updated",
		zap.String("status", string(out.app.Status)),
		zap.Int("version", out.app.Version))
}

func (m *Manager) logWarnings(appID uint, res requirements.Result) {
	for _, w := range res.Warnings {
		m.logger.Warn("requirement resolution", zap.Uint("application_id", appID), zap.String("warning", w))
	}
}

func (m *Manager) link(path string) string {
	if m.baseURL == "" {
		return ""
	}
	return m.baseURL + path
}

func messageFor(app *models.SupplierApplication, kind notify.Kind, ctx map[string]string) *notify.Message {
	return &notify.Message{
		Kind:          kind,
		ApplicationID: app.ID,
		TrackingCode:  app.TrackingCode,
		BusinessName:  app.BusinessName,
		Email:         app.Email,
		Telephone:     app.Telephone,
		Context:       ctx,
	}
}

func statusChange(from, to models.Status) map[string]interface{} {
	return map[string]interface{}{"old_status": from, "new_status": to}
}
