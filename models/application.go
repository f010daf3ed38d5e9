package models

import (
	"time"
)

type SupplierApplication struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	TrackingCode string `json:"tracking_code" gorm:"uniqueIndex;size:32;not null"`
	Status       Status `json:"status" gorm:"type:varchar(20);not null;index"`
	Version      int    `json:"version" gorm:"not null"`

	// Business information
	BusinessName       string  `json:"business_name" gorm:"not null"`
	BusinessType       string  `json:"business_type"` // sole, partnership, limited, corporation, other
	RegistrationNumber string  `json:"registration_number"`
	TINNumber          string  `json:"tin_number"`
	PhysicalAddress    string  `json:"physical_address"`
	City               string  `json:"city"`
	PostalCode         string  `json:"postal_code"`
	Country            string  `json:"country"`
	RegionID           *uint   `json:"region_id"`
	Region             *Region `json:"region,omitempty" gorm:"foreignKey:RegionID"`

	// Contact
	Telephone string `json:"telephone"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`

	Commodities       []Commodity `json:"commodities" gorm:"many2many:application_commodities;"`
	OtherCommodities  string      `json:"other_commodities"`
	WarehouseLocation string      `json:"warehouse_location"`

	// Declaration
	DeclarationAgreed bool       `json:"declaration_agreed"`
	DataConsent       bool       `json:"data_consent"`
	SignerName        string     `json:"signer_name"`
	SignerDesignation string     `json:"signer_designation"`
	SignedAt          *time.Time `json:"signed_at"`

	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	DecidedAt       *time.Time `json:"decided_at"`
	ReviewerComment string     `json:"reviewer_comment"`

	CompletionToken    string     `json:"-" gorm:"uniqueIndex;size:36"`
	CompletionDeadline *time.Time `json:"completion_deadline"`

	SupplierUserID *uint `json:"supplier_user_id"`
	SupplierUser   *User `json:"-" gorm:"foreignKey:SupplierUserID"`

	TeamMembers  []TeamMember  `json:"team_members" gorm:"foreignKey:ApplicationID"`
	NextOfKin    []NextOfKin   `json:"next_of_kin" gorm:"foreignKey:ApplicationID"`
	BankAccounts []BankAccount `json:"bank_accounts" gorm:"foreignKey:ApplicationID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Region struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;size:4;not null"`
	Name string `json:"name" gorm:"not null"`
}

type Commodity struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	Name            string `json:"name" gorm:"uniqueIndex;not null"`
	Description     string `json:"description"`
	IsActive        bool   `json:"is_active"`
	IsProcessedFood bool   `json:"is_processed_food"`
}

type TeamMember struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	ApplicationID   uint   `json:"application_id" gorm:"index;not null"`
	FullName        string `json:"full_name" gorm:"not null"`
	Position        string `json:"position"`
	YearsExperience int    `json:"years_experience"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
	Region          string `json:"region"`
	Telephone       string `json:"telephone"`
	Email           string `json:"email"`
	IDCardType      string `json:"id_card_type"` // GHANA_CARD, PASSPORT, VOTER_ID, OTHER
	IDCardNumber    string `json:"id_card_number"`
}

type NextOfKin struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ApplicationID uint   `json:"application_id" gorm:"index;not null"`
	FullName      string `json:"full_name" gorm:"not null"`
	Relationship  string `json:"relationship"`
	Address       string `json:"address"`
	Mobile        string `json:"mobile"`
	IDCardType    string `json:"id_card_type"`
	IDCardNumber  string `json:"id_card_number"`
}

func (NextOfKin) TableName() string {
	return "next_of_kin"
}

type BankAccount struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ApplicationID uint   `json:"application_id" gorm:"index;not null"`
	BankName      string `json:"bank_name" gorm:"not null"`
	Branch        string `json:"branch"`
	AccountName   string `json:"account_name" gorm:"not null"`
	AccountNumber string `json:"account_number" gorm:"not null"`
	AccountIndex  int    `json:"account_index" gorm:"default:1"` // 1 or 2
}

// ID card types accepted for team members and next of kin.
const (
	IDCardGhanaCard = "GHANA_CARD"
	IDCardPassport  = "PASSPORT"
	IDCardVoterID   = "VOTER_ID"
	IDCardOther     = "OTHER"
)
