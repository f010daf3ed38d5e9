package review_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/audit"
	"gcx-supplier-go/database/dbtest"
	"gcx-supplier-go/locks"
	"gcx-supplier-go/models"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/requirements"
	"gcx-supplier-go/review"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Kind
	}
	return out
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []models.Status
}

func (s *recordingSink) ApplicationChanged(_ context.Context, app models.SupplierApplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, app.Status)
}

type failingProvisioner struct{ err error }

func (p failingProvisioner) CreateSupplierAccount(context.Context, *gorm.DB, *models.SupplierApplication) (*accounts.Credentials, error) {
	if p.err != nil {
		return nil, p.err
	}
	return nil, errors.New("directory unavailable")
}

// lockProbingNotifier tries to take the application lock from inside
// Notify and records whether it got it.
type lockProbingNotifier struct {
	locker locks.Locker
	mu     sync.Mutex
	free   []bool
}

func (n *lockProbingNotifier) Notify(ctx context.Context, msg notify.Message) bool {
	lockCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	release, err := n.locker.Lock(lockCtx, locks.ApplicationKey(msg.ApplicationID))
	if err == nil {
		release()
	}
	n.mu.Lock()
	n.free = append(n.free, err == nil)
	n.mu.Unlock()
	return true
}

func staffActor(t *testing.T, db *gorm.DB) audit.Actor {
	t.Helper()
	u := dbtest.StaffUser(t, db)
	return audit.Staff(u.ID, u.Email)
}

func newManager(t *testing.T, db *gorm.DB, opts review.Options) (*review.Manager, *recordingNotifier, *recordingSink) {
	t.Helper()
	n := &recordingNotifier{}
	s := &recordingSink{}
	if opts.Notifier == nil {
		opts.Notifier = n
	}
	if opts.Events == nil {
		opts.Events = s
	}
	opts.Policy = requirements.Policy{RequireVerifiedUploads: true}
	opts.PublicBaseURL = "https://suppliers.gcx.test"
	return review.NewManager(db, opts), n, s
}

func TestApproveRequiresUnderReview(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, notifier, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)

	_, err := m.Approve(context.Background(), app.ID, review.ApproveInput{}, staff)
	var invalid *review.InvalidTransitionError
	if !errors.As(err, &invalid) || invalid.From != models.StatusPendingReview {
		t.Fatalf("err = %v, want InvalidTransitionError from PENDING_REVIEW", err)
	}

	var count int64
	db.Model(&models.ReviewDecision{}).Count(&count)
	if count != 0 {
		t.Errorf("decisions = %d, want 0", count)
	}
	if len(notifier.kinds()) != 0 {
		t.Errorf("refused transition sent %v", notifier.kinds())
	}
}

func TestRequestDocumentsOnPendingApplication(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, notifier, sink := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)

	req, err := m.RequestDocuments(context.Background(), app.ID, review.DocumentRequest{
		RequirementCodes: []string{" gcx_registration_proof ", "GCX_REGISTRATION_PROOF"},
		Message:          "Please upload your payment receipt.",
	}, staff)
	if err != nil {
		t.Fatalf("RequestDocuments: %v", err)
	}
	if req.Fulfilled || len(req.Requirements) != 1 {
		t.Fatalf("request = %+v", req)
	}

	got, err := m.Get(context.Background(), app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusUnderReview || got.Version != 2 || got.CompletionDeadline == nil {
		t.Errorf("application = status %s version %d deadline %v", got.Status, got.Version, got.CompletionDeadline)
	}

	var stored models.OutstandingDocumentRequest
	if err := db.Preload("Requirements").First(&stored, req.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Fulfilled || len(stored.RequirementCodes()) != 1 || stored.RequirementCodes()[0] != models.RequirementGCXRegistrationProof {
		t.Errorf("stored request = %+v", stored)
	}

	if kinds := notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindDocumentsRequested {
		t.Errorf("notifications = %v", kinds)
	}
	msg := notifier.msgs[0]
	if msg.Context["completion_url"] != "https://suppliers.gcx.test/applications/complete/"+app.CompletionToken {
		t.Errorf("completion_url = %q", msg.Context["completion_url"])
	}
	if len(sink.statuses) != 1 || sink.statuses[0] != models.StatusUnderReview {
		t.Errorf("events = %v", sink.statuses)
	}
}

func TestRequestDocumentsValidation(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	ctx := context.Background()

	if _, err := m.RequestDocuments(ctx, app.ID, review.DocumentRequest{RequirementCodes: []string{" "}}, staff); !errors.Is(err, review.ErrEmptyRequest) {
		t.Errorf("empty request err = %v", err)
	}

	_, err := m.RequestDocuments(ctx, app.ID, review.DocumentRequest{RequirementCodes: []string{"NOPE", "GCX_REGISTRATION_PROOF"}}, staff)
	var unknown *review.UnknownRequirementsError
	if !errors.As(err, &unknown) || len(unknown.Codes) != 1 || unknown.Codes[0] != "NOPE" {
		t.Fatalf("err = %v, want UnknownRequirementsError{NOPE}", err)
	}

	// Nothing was written by the refused calls.
	got, _ := m.Get(ctx, app.ID)
	if got.Status != models.StatusPendingReview || got.Version != 1 {
		t.Errorf("application changed: %s v%d", got.Status, got.Version)
	}

	// Free text alone is accepted.
	if _, err := m.RequestDocuments(ctx, app.ID, review.DocumentRequest{Description: "Warehouse lease agreement"}, staff); err != nil {
		t.Errorf("free text request: %v", err)
	}
}

func TestApproveListsMissingDocuments(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	ctx := context.Background()

	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}

	var want []string
	var reqs []models.DocumentRequirement
	db.Where("is_required = ? AND is_active = ?", true, true).Order("sort_order, id").Find(&reqs)
	for _, r := range reqs {
		want = append(want, r.Code)
	}

	_, err := m.Approve(ctx, app.ID, review.ApproveInput{}, staff)
	var incomplete *review.IncompleteDocumentsError
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want IncompleteDocumentsError", err)
	}
	if !equalSets(incomplete.Missing, want) {
		t.Errorf("missing = %v, want %v", incomplete.Missing, want)
	}
}

func TestApproveAndTerminalState(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, notifier, sink := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()

	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}
	approval, err := m.Approve(ctx, app.ID, review.ApproveInput{ActivateAccount: true, Notes: "All verified"}, staff)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approval.Application.Status != models.StatusApproved || approval.Credentials == nil || approval.Credentials.TemporaryPassword == "" {
		t.Fatalf("approval = %+v", approval)
	}
	if approval.Application.SupplierUserID == nil || *approval.Application.SupplierUserID != approval.Credentials.UserID {
		t.Errorf("supplier user not linked")
	}

	for name, call := range map[string]func() error{
		"approve": func() error { _, err := m.Approve(ctx, app.ID, review.ApproveInput{}, staff); return err },
		"reject":  func() error { _, err := m.Reject(ctx, app.ID, "late", "", staff); return err },
		"open":    func() error { _, err := m.OpenForReview(ctx, app.ID, staff); return err },
		"request": func() error {
			_, err := m.RequestDocuments(ctx, app.ID, review.DocumentRequest{Description: "more"}, staff)
			return err
		},
	} {
		var invalid *review.InvalidTransitionError
		if err := call(); !errors.As(err, &invalid) || invalid.From != models.StatusApproved {
			t.Errorf("%s after approval: err = %v", name, err)
		}
	}

	kinds := notifier.kinds()
	if len(kinds) != 1 || kinds[0] != notify.KindApproved {
		t.Errorf("notifications = %v", kinds)
	}
	if notifier.msgs[0].Context["temporary_password"] != approval.Credentials.TemporaryPassword {
		t.Error("approval notification lacks the temporary password")
	}
	if len(sink.statuses) != 2 || sink.statuses[1] != models.StatusApproved {
		t.Errorf("events = %v", sink.statuses)
	}
}

func TestConcurrentApprovalsProduceOneDecision(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()
	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Approve(ctx, app.ID, review.ApproveInput{}, staff)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		var invalid *review.InvalidTransitionError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &invalid), errors.Is(err, review.ErrConcurrencyConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d approvals succeeded, want 1", succeeded)
	}

	var count int64
	db.Model(&models.ReviewDecision{}).Where("application_id = ?", app.ID).Count(&count)
	if count != 1 {
		t.Errorf("decisions = %d, want 1", count)
	}
}

func TestConcurrentManagersShareNoLock(t *testing.T) {
	// Two managers with separate in-process locks still leave one decision,
	// because the versioned update is the final guard.
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	a, _, _ := newManager(t, db, review.Options{})
	b, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()
	if _, err := a.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, m := range []*review.Manager{a, b} {
		wg.Add(1)
		go func(m *review.Manager) {
			defer wg.Done()
			m.Approve(ctx, app.ID, review.ApproveInput{}, staff)
		}(m)
	}
	wg.Wait()

	var count int64
	db.Model(&models.ReviewDecision{}).Where("application_id = ?", app.ID).Count(&count)
	if count != 1 {
		t.Errorf("decisions = %d, want 1", count)
	}
}

func TestApproveRollsBackWhenAccountFails(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, notifier, _ := newManager(t, db, review.Options{Accounts: failingProvisioner{}})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()
	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}

	_, err := m.Approve(ctx, app.ID, review.ApproveInput{ActivateAccount: true}, staff)
	var provisioning *review.AccountProvisioningError
	if !errors.As(err, &provisioning) {
		t.Fatalf("err = %v, want AccountProvisioningError", err)
	}

	got, _ := m.Get(ctx, app.ID)
	if got.Status != models.StatusUnderReview || got.DecidedAt != nil {
		t.Errorf("application = %s decided %v", got.Status, got.DecidedAt)
	}
	var count int64
	db.Model(&models.ReviewDecision{}).Count(&count)
	if count != 0 {
		t.Errorf("decisions = %d, want 0", count)
	}
	db.Model(&models.AuditLog{}).Where("action = ?", models.ActionApproveApplication).Count(&count)
	if count != 0 {
		t.Errorf("approval audit entries = %d, want 0", count)
	}
	if len(notifier.kinds()) != 0 {
		t.Errorf("notifications = %v", notifier.kinds())
	}
}

func TestApproveProvisioningErrorIsNotRetriedAsConflict(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	unique := errors.New("create supplier user: UNIQUE constraint failed: users.email")
	m, _, _ := newManager(t, db, review.Options{Accounts: failingProvisioner{err: unique}})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()
	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}

	_, err := m.Approve(ctx, app.ID, review.ApproveInput{ActivateAccount: true}, staff)
	var provisioning *review.AccountProvisioningError
	if !errors.As(err, &provisioning) {
		t.Fatalf("err = %v, want AccountProvisioningError", err)
	}
	if errors.Is(err, review.ErrConcurrencyConflict) {
		t.Errorf("provisioning failure reported as a conflict: %v", err)
	}
	if review.Transient(err) {
		t.Error("provisioning failure must not be transient")
	}
}

func TestApproveRestoresDeletedSupplierAccount(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	dbtest.SatisfyAll(t, db, app.ID)
	ctx := context.Background()

	old := models.User{Email: app.Email, Password: "x", FullName: "Old", Role: models.RoleSupplier}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(&old).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}
	approval, err := m.Approve(ctx, app.ID, review.ApproveInput{ActivateAccount: true}, staff)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approval.Credentials.UserID != old.ID || approval.Credentials.TemporaryPassword == "" {
		t.Errorf("credentials = %+v", approval.Credentials)
	}
}

func TestLockReleasedBeforeNotification(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	locker := locks.NewKeyedMutex()
	n := &lockProbingNotifier{locker: locker}
	m, _, _ := newManager(t, db, review.Options{Locker: locker, Notifier: n})
	app := dbtest.NewApplication(t, db, nil)

	if _, err := m.RequestDocuments(context.Background(), app.ID, review.DocumentRequest{Description: "Bank statement"}, staff); err != nil {
		t.Fatal(err)
	}
	if len(n.free) != 1 || !n.free[0] {
		t.Errorf("application lock free during notification = %v", n.free)
	}
}

func TestRejectFromPending(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, notifier, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	ctx := context.Background()

	if _, err := m.Reject(ctx, app.ID, "   ", "", staff); !errors.Is(err, review.ErrReasonRequired) {
		t.Fatalf("blank reason err = %v", err)
	}

	decision, err := m.Reject(ctx, app.ID, "Incomplete registration", "called applicant", staff)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if decision.Decision != models.StatusRejected || decision.Reason != "Incomplete registration" {
		t.Errorf("decision = %+v", decision)
	}
	if kinds := notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindRejected || notifier.msgs[0].Context["reason"] != "Incomplete registration" {
		t.Errorf("notifications = %+v", notifier.msgs)
	}
}

func TestAuditTimelineOrder(t *testing.T) {
	db := dbtest.Open(t)
	staff := staffActor(t, db)
	m, _, _ := newManager(t, db, review.Options{})
	app := dbtest.NewApplication(t, db, nil)
	ctx := context.Background()

	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}
	if _, err := m.OpenForReview(ctx, app.ID, staff); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RequestDocuments(ctx, app.ID, review.DocumentRequest{Description: "Lease"}, staff); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reject(ctx, app.ID, "No lease", "", staff); err != nil {
		t.Fatal(err)
	}

	logs, err := audit.Timeline(ctx, db, app.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		models.ActionOpenApplication,
		models.ActionOpenApplication,
		models.ActionRequestDocuments,
		models.ActionRejectApplication,
	}
	if len(logs) != len(want) {
		t.Fatalf("timeline has %d entries, want %d", len(logs), len(want))
	}
	for i, l := range logs {
		if l.Action != want[i] || l.Sequence != int64(i+1) {
			t.Errorf("entry %d = %s seq %d, want %s seq %d", i, l.Action, l.Sequence, want[i], i+1)
		}
	}
}

func TestSubmit(t *testing.T) {
	db := dbtest.Open(t)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m, notifier, _ := newManager(t, db, review.Options{Now: func() time.Time { return fixed }})
	ctx := context.Background()
	maize := dbtest.Commodity(t, db, "Maize")

	req := models.SubmitApplicationRequest{
		BusinessName:       "Kumasi Grains Ltd",
		BusinessType:       "limited",
		RegistrationNumber: "CS0001",
		TINNumber:          "C0001",
		PhysicalAddress:    "1 Adum Street",
		City:               "Kumasi",
		RegionCode:         "ar",
		Telephone:          "0244000000",
		Email:              "Info@KumasiGrains.com",
		CommodityIDs:       []uint{maize.ID, maize.ID},
		BankAccounts: []models.BankAccountInput{
			{BankName: "GCB", AccountName: "KUMASI GRAINS LTD.", AccountNumber: "1234567890"},
		},
		DeclarationAgreed: true,
		DataConsent:       true,
		SignerName:        "Ama Owusu",
		SignerDesignation: "Director",
	}
	app, err := m.Submit(ctx, req, audit.Actor{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if app.Status != models.StatusPendingReview || app.Version != 1 || app.Email != "info@kumasigrains.com" {
		t.Errorf("app = %+v", app)
	}
	if len(app.TrackingCode) != len("GCX-2025-000000") || app.TrackingCode[:9] != "GCX-2025-" {
		t.Errorf("tracking code = %q", app.TrackingCode)
	}
	if app.CompletionToken == "" || len(app.Commodities) != 1 {
		t.Errorf("token %q commodities %d", app.CompletionToken, len(app.Commodities))
	}
	if kinds := notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindSubmitted {
		t.Errorf("notifications = %v", kinds)
	}

	if _, err := m.Submit(ctx, req, audit.Actor{}); !errors.Is(err, review.ErrDuplicateEmail) {
		t.Errorf("duplicate email err = %v", err)
	}

	req.Email = "other@example.com"
	req.BankAccounts[0].AccountName = "Someone Else"
	if _, err := m.Submit(ctx, req, audit.Actor{}); !errors.Is(err, review.ErrAccountNameMismatch) {
		t.Errorf("account name err = %v", err)
	}

	req.BankAccounts = nil
	req.RegionCode = "ZZ"
	if _, err := m.Submit(ctx, req, audit.Actor{}); !errors.Is(err, review.ErrUnknownRegion) {
		t.Errorf("region err = %v", err)
	}

	status, err := m.PublicStatus(ctx, app.TrackingCode)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusPendingReview || len(status.OutstandingDocuments) == 0 {
		t.Errorf("status = %+v", status)
	}
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
