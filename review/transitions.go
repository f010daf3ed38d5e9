package review

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/audit"
	"gcx-supplier-go/database"
	"gcx-supplier-go/models"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/requirements"

	"gorm.io/gorm"
)

// OpenForReview moves a pending application to UNDER_REVIEW. Opening an
// application that is already under review only records the audit entry.
func (m *Manager) OpenForReview(ctx context.Context, id uint, actor audit.Actor) (*models.SupplierApplication, error) {
	out, err := m.run(ctx, id, "open", func(tx *gorm.DB, app *models.SupplierApplication) (*outcome, error) {
		if err := CheckMutable(app, "open for review"); err != nil {
			return nil, err
		}
		from := app.Status
		if from == models.StatusPendingReview {
			now := m.clock()
			if err := SaveVersioned(tx, app, now, map[string]interface{}{
				"status":      models.StatusUnderReview,
				"reviewed_at": now,
			}); err != nil {
				return nil, err
			}
			app.Status = models.StatusUnderReview
			app.ReviewedAt = &now
		}
		if _, err := m.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionOpenApplication,
			Metadata:      statusChange(from, app.Status),
		}); err != nil {
			return nil, err
		}
		return &outcome{app: *app, statusChanged: from != app.Status}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out.app, nil
}

// DocumentRequest names catalog requirements, describes something outside
// the catalog, or both.
type DocumentRequest struct {
	RequirementCodes []string
	Description      string
	Message          string
}

func (r DocumentRequest) codes() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range r.RequirementCodes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// RequestDocuments records an outstanding document request and forces the
// application into UNDER_REVIEW.
func (m *Manager) RequestDocuments(ctx context.Context, id uint, req DocumentRequest, actor audit.Actor) (*models.OutstandingDocumentRequest, error) {
	codes := req.codes()
	description := strings.TrimSpace(req.Description)
	if len(codes) == 0 && description == "" {
		return nil, ErrEmptyRequest
	}

	out, err := m.run(ctx, id, "request_documents", func(tx *gorm.DB, app *models.SupplierApplication) (*outcome, error) {
		if err := CheckMutable(app, "request documents"); err != nil {
			return nil, err
		}

		named, err := lookupRequirements(tx, codes)
		if err != nil {
			return nil, err
		}

		now := m.clock()
		deadline := now.Add(m.completionWindow)
		request := models.OutstandingDocumentRequest{
			ApplicationID: app.ID,
			Requirements:  named,
			Description:   description,
			Message:       strings.TrimSpace(req.Message),
			RequestedByID: actor.UserID,
			CreatedAt:     now,
		}
		if err := tx.Omit("Requirements.*").Create(&request).Error; err != nil {
			return nil, fmt.Errorf("create document request: %w", err)
		}

		from := app.Status
		fields := map[string]interface{}{
			"status":              models.StatusUnderReview,
			"completion_deadline": deadline,
		}
		if app.ReviewedAt == nil {
			fields["reviewed_at"] = now
			app.ReviewedAt = &now
		}
		if err := SaveVersioned(tx, app, now, fields); err != nil {
			return nil, err
		}
		app.Status = models.StatusUnderReview
		app.CompletionDeadline = &deadline

		meta := statusChange(from, app.Status)
		meta["request_id"] = request.ID
		meta["requirements"] = codes
		if description != "" {
			meta["description"] = description
		}
		if _, err := m.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionRequestDocuments,
			Metadata:      meta,
		}); err != nil {
			return nil, err
		}

		return &outcome{
			app:           *app,
			request:       &request,
			statusChanged: from != app.Status,
			message: messageFor(app, notify.KindDocumentsRequested, map[string]string{
				"documents":      documentList(named, description),
				"message":        request.Message,
				"completion_url": m.link("/applications/complete/" + app.CompletionToken),
				"deadline":       deadline.Format("02 January 2006"),
			}),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out.request, nil
}

func lookupRequirements(tx *gorm.DB, codes []string) ([]models.DocumentRequirement, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var found []models.DocumentRequirement
	if err := tx.Where("code IN ?", codes).Order("sort_order, id").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	if len(found) == len(codes) {
		return found, nil
	}
	have := map[string]bool{}
	for _, r := range found {
		have[r.Code] = true
	}
	var missing []string
	for _, c := range codes {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return nil, &UnknownRequirementsError{Codes: missing}
}

func documentList(reqs []models.DocumentRequirement, description string) string {
	var b strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&b, "- %s\n", r.Label)
	}
	if description != "" {
		fmt.Fprintf(&b, "- %s\n", description)
	}
	return strings.TrimRight(b.String(), "\n")
}

type ApproveInput struct {
	ActivateAccount bool
	Notes           string
}

type Approval struct {
	Decision    models.ReviewDecision      `json:"decision"`
	Application models.SupplierApplication `json:"application"`
	// Credentials is set when an account was created or linked.
	Credentials *accounts.Credentials `json:"credentials,omitempty"`
}

// Approve decides an application under review. The document check, the
// decision row, the status flip and the optional account all commit
// together or not at all.
func (m *Manager) Approve(ctx context.Context, id uint, in ApproveInput, actor audit.Actor) (*Approval, error) {
	out, err := m.run(ctx, id, "approve", func(tx *gorm.DB, app *models.SupplierApplication) (*outcome, error) {
		if app.Status != models.StatusUnderReview {
			return nil, &InvalidTransitionError{Action: "approve", From: app.Status}
		}

		agg, err := database.LoadAggregateTx(tx, app.ID)
		if err != nil {
			return nil, err
		}
		res := requirements.Resolve(requirements.InputFrom(agg), m.policy)
		m.logWarnings(app.ID, res)
		if !res.Complete() {
			return nil, &IncompleteDocumentsError{Missing: res.Outstanding}
		}

		now := m.clock()
		from := app.Status
		fields := map[string]interface{}{
			"status":           models.StatusApproved,
			"decided_at":       now,
			"reviewer_comment": strings.TrimSpace(in.Notes),
		}

		var creds *accounts.Credentials
		if in.ActivateAccount {
			creds, err = m.accounts.CreateSupplierAccount(ctx, tx, app)
			if err != nil {
				return nil, &AccountProvisioningError{Err: err}
			}
			fields["supplier_user_id"] = creds.UserID
			app.SupplierUserID = &creds.UserID
		}

		if err := SaveVersioned(tx, app, now, fields); err != nil {
			return nil, err
		}
		app.Status = models.StatusApproved
		app.DecidedAt = &now
		app.ReviewerComment = strings.TrimSpace(in.Notes)

		decision, err := m.decide(tx, app, actor, "", in.Notes, creds != nil, now)
		if err != nil {
			return nil, err
		}

		meta := statusChange(from, app.Status)
		meta["account_created"] = creds != nil && !creds.Existing
		meta["account_linked"] = creds != nil && creds.Existing
		if _, err := m.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionApproveApplication,
			Details:       decision.Notes,
			Metadata:      meta,
		}); err != nil {
			return nil, err
		}

		msgCtx := map[string]string{"login_url": m.link("/login")}
		if creds != nil {
			msgCtx["username"] = creds.Username
			msgCtx["temporary_password"] = creds.TemporaryPassword
		}
		return &outcome{
			app:           *app,
			decision:      decision,
			credentials:   creds,
			statusChanged: true,
			message:       messageFor(app, notify.KindApproved, msgCtx),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Approval{Decision: *out.decision, Application: out.app, Credentials: out.credentials}, nil
}

// Reject decides an application that is pending or under review.
func (m *Manager) Reject(ctx context.Context, id uint, reason, notes string, actor audit.Actor) (*models.ReviewDecision, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	out, err := m.run(ctx, id, "reject", func(tx *gorm.DB, app *models.SupplierApplication) (*outcome, error) {
		if err := CheckMutable(app, "reject"); err != nil {
			return nil, err
		}

		now := m.clock()
		from := app.Status
		if err := SaveVersioned(tx, app, now, map[string]interface{}{
			"status":           models.StatusRejected,
			"decided_at":       now,
			"reviewer_comment": reason,
		}); err != nil {
			return nil, err
		}
		app.Status = models.StatusRejected
		app.DecidedAt = &now
		app.ReviewerComment = reason

		decision, err := m.decide(tx, app, actor, reason, notes, false, now)
		if err != nil {
			return nil, err
		}

		meta := statusChange(from, app.Status)
		meta["reason"] = reason
		if _, err := m.audit.Record(tx, audit.Entry{
			ApplicationID: app.ID,
			Actor:         actor,
			Action:        models.ActionRejectApplication,
			Details:       reason,
			Metadata:      meta,
		}); err != nil {
			return nil, err
		}

		return &outcome{
			app:           *app,
			decision:      decision,
			statusChanged: true,
			message:       messageFor(app, notify.KindRejected, map[string]string{"reason": reason}),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out.decision, nil
}

// decide writes the single ReviewDecision for an application.
func (m *Manager) decide(tx *gorm.DB, app *models.SupplierApplication, actor audit.Actor, reason, notes string, accountCreated bool, now time.Time) (*models.ReviewDecision, error) {
	var existing int64
	if err := tx.Model(&models.ReviewDecision{}).Where("application_id = ?", app.ID).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check existing decision: %w", err)
	}
	if existing > 0 {
		return nil, &InvalidTransitionError{Action: "decide", From: app.Status}
	}

	decision := &models.ReviewDecision{
		ApplicationID:  app.ID,
		Decision:       app.Status,
		ActorID:        actor.UserID,
		Reason:         reason,
		Notes:          strings.TrimSpace(notes),
		AccountCreated: accountCreated,
		CreatedAt:      now,
	}
	if err := tx.Create(decision).Error; err != nil {
		return nil, fmt.Errorf("create review decision: %w", err)
	}
	return decision, nil
}
