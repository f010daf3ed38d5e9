package models

import (
	"time"
)

// AuditLog is append-only. Sequence is monotonic per application and
// unique together with ApplicationID, which gives the timeline its order.
type AuditLog struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	EventID       string    `json:"event_id" gorm:"uniqueIndex;size:26;not null"`
	ApplicationID *uint     `json:"application_id" gorm:"uniqueIndex:idx_audit_application_sequence"`
	Sequence      int64     `json:"sequence" gorm:"uniqueIndex:idx_audit_application_sequence"`
	UserID        *uint     `json:"user_id"`
	User          *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Action        string    `json:"action" gorm:"not null;index"`
	Resource      string    `json:"resource" gorm:"not null"`
	Details       string    `json:"details"`
	Metadata      string    `json:"metadata"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	CreatedAt     time.Time `json:"created_at"`
}

// Audit actions.
const (
	ActionSubmitApplication  = "SUBMIT_APPLICATION"
	ActionOpenApplication    = "OPEN_APPLICATION"
	ActionRequestDocuments   = "REQUEST_DOCUMENTS"
	ActionApproveApplication = "APPROVE_APPLICATION"
	ActionRejectApplication  = "REJECT_APPLICATION"
	ActionUploadDocument     = "UPLOAD_DOCUMENT"
	ActionVerifyDocument     = "VERIFY_DOCUMENT"
	ActionRejectDocument     = "REJECT_DOCUMENT"
	ActionPaymentConfirmed   = "PAYMENT_CONFIRMED"
	ActionRequestFulfilled   = "REQUEST_FULFILLED"
	ActionGenerateReport     = "GENERATE_REPORT"
)
