package review

import (
	"errors"
	"fmt"

	"gcx-supplier-go/database"
	"gcx-supplier-go/models"
)

var (
	ErrApplicationNotFound = database.ErrApplicationNotFound

	// ErrConcurrencyConflict means the application changed underneath the
	// action even after one automatic retry. The caller may retry.
	ErrConcurrencyConflict = errors.New("application changed concurrently, retry")

	ErrReasonRequired   = errors.New("a reason is required")
	ErrEmptyRequest     = errors.New("name at least one document or describe what is needed")
	ErrDuplicateEmail   = errors.New("an application with this email already exists")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrUnknownCommodity = errors.New("unknown or inactive commodity")
)

// InvalidTransitionError is returned when an action is not allowed from
// the application's current status.
type InvalidTransitionError struct {
	Action string
	From   models.Status
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("cannot %s: application already decided (%s)", e.Action, e.From)
	}
	return fmt.Sprintf("cannot %s: application is %s", e.Action, e.From)
}

// IncompleteDocumentsError lists the requirement codes still outstanding
// when approval was attempted.
type IncompleteDocumentsError struct {
	Missing []string
}

func (e *IncompleteDocumentsError) Error() string {
	noun := "documents"
	if len(e.Missing) == 1 {
		noun = "document"
	}
	return fmt.Sprintf("cannot approve: %d required %s missing", len(e.Missing), noun)
}

// AccountProvisioningError means approval was rolled back because the
// promised supplier account could not be created.
type AccountProvisioningError struct {
	Err error
}

func (e *AccountProvisioningError) Error() string {
	return fmt.Sprintf("cannot approve: supplier account creation failed: %v", e.Err)
}

func (e *AccountProvisioningError) Unwrap() error {
	return e.Err
}

// UnknownRequirementsError is returned when a document request names codes
// that are not in the catalog.
type UnknownRequirementsError struct {
	Codes []string
}

func (e *UnknownRequirementsError) Error() string {
	return fmt.Sprintf("unknown document requirements: %v", e.Codes)
}
