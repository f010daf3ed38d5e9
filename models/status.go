package models

import (
	"database/sql/driver"
	"fmt"
)

// Status is the review state of a supplier application.
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusUnderReview   Status = "UNDER_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPendingReview, StatusUnderReview, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingReview, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string {
	return string(s)
}

// Label is the human readable form used in reports and notifications.
func (s Status) Label() string {
	switch s {
	case StatusPendingReview:
		return "Pending Review"
	case StatusUnderReview:
		return "Under Review"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", v)
	}
	return s, nil
}

// Scan refuses any stored value outside the closed set.
func (s *Status) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", value)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("refusing to store invalid status %q", string(s))
	}
	return string(s), nil
}
