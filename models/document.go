package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Conditions a DocumentRequirement can be gated on.
const (
	ConditionProcessedFood = "processed_food"
)

// Requirement codes referenced directly by the workflow.
const (
	RequirementGCXRegistrationProof = "GCX_REGISTRATION_PROOF"
	RequirementFDACertificate       = "FDA_CERT_PROCESSED_FOOD"
)

type DocumentRequirement struct {
	ID                uint   `json:"id" gorm:"primaryKey"`
	Code              string `json:"code" gorm:"uniqueIndex;size:64;not null"`
	Label             string `json:"label" gorm:"not null"`
	Description       string `json:"description"`
	IsRequired        bool   `json:"is_required"`
	Condition         string `json:"condition"`
	ConditionNote     string `json:"condition_note"`
	AllowedExtensions string `json:"allowed_extensions"`
	MaxFileSizeMB     int    `json:"max_file_size_mb" gorm:"default:10"`
	IsActive          bool   `json:"is_active"`
	SortOrder         int    `json:"sort_order" gorm:"index"`
}

func (r DocumentRequirement) Extensions() []string {
	var exts []string
	for _, e := range strings.Split(r.AllowedExtensions, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// AllowsFile reports whether filename carries a permitted extension.
// An empty extension list permits anything.
func (r DocumentRequirement) AllowsFile(filename string) bool {
	exts := r.Extensions()
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (r DocumentRequirement) MaxBytes() int64 {
	if r.MaxFileSizeMB <= 0 {
		return 0
	}
	return int64(r.MaxFileSizeMB) * 1024 * 1024
}

// DocumentUpload is one file submitted against a requirement. Only the
// row with Current set is authoritative; older rows are kept for audit.
type DocumentUpload struct {
	ID               uint                 `json:"id" gorm:"primaryKey"`
	ApplicationID    uint                 `json:"application_id" gorm:"index:idx_upload_lookup;not null"`
	RequirementID    uint                 `json:"requirement_id" gorm:"index:idx_upload_lookup;not null"`
	Requirement      *DocumentRequirement `json:"requirement,omitempty" gorm:"foreignKey:RequirementID"`
	StorageRef       string               `json:"-" gorm:"not null"`
	OriginalFilename string               `json:"original_filename"`
	FileSize         int64                `json:"file_size"`
	MimeType         string               `json:"mime_type"`
	Checksum         string               `json:"checksum" gorm:"size:64"`
	Current          bool                 `json:"current" gorm:"column:is_current;not null"`
	SupersededAt     *time.Time           `json:"superseded_at"`

	Verified     bool       `json:"verified"`
	VerifiedByID *uint      `json:"verified_by_id"`
	VerifiedAt   *time.Time `json:"verified_at"`
	VerifierNote string     `json:"verifier_note"`

	Rejected        bool       `json:"rejected"`
	RejectedByID    *uint      `json:"rejected_by_id"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason"`

	UploadedByID *uint     `json:"uploaded_by_id"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// OutstandingDocumentRequest is an explicit ask from staff for more
// documents. It may name catalog requirements, carry free text, or both.
type OutstandingDocumentRequest struct {
	ID            uint                  `json:"id" gorm:"primaryKey"`
	ApplicationID uint                  `json:"application_id" gorm:"index;not null"`
	Requirements  []DocumentRequirement `json:"requirements" gorm:"many2many:request_requirements;"`
	Description   string                `json:"description"`
	Message       string                `json:"message"`
	RequestedByID *uint                 `json:"requested_by_id"`
	Fulfilled     bool                  `json:"fulfilled" gorm:"index"`
	FulfilledAt   *time.Time            `json:"fulfilled_at"`
	CreatedAt     time.Time             `json:"created_at"`
}

func (r OutstandingDocumentRequest) RequirementCodes() []string {
	codes := make([]string, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		codes = append(codes, req.Code)
	}
	return codes
}

// ReviewDecision is the terminal approve/reject record. The unique index
// on ApplicationID keeps it to one per application.
type ReviewDecision struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ApplicationID  uint      `json:"application_id" gorm:"uniqueIndex;not null"`
	Decision       Status    `json:"decision" gorm:"type:varchar(20);not null"`
	ActorID        *uint     `json:"actor_id"`
	Reason         string    `json:"reason"`
	Notes          string    `json:"notes"`
	AccountCreated bool      `json:"account_created"`
	CreatedAt      time.Time `json:"created_at"`
}
