package models

type SubmitApplicationRequest struct {
	BusinessName       string `json:"business_name" validate:"required,min=2,max=255"`
	BusinessType       string `json:"business_type" validate:"required,oneof=sole partnership limited corporation other"`
	RegistrationNumber string `json:"registration_number" validate:"required"`
	TINNumber          string `json:"tin_number" validate:"required"`
	PhysicalAddress    string `json:"physical_address" validate:"required"`
	City               string `json:"city" validate:"required"`
	PostalCode         string `json:"postal_code"`
	RegionCode         string `json:"region_code" validate:"required"`
	Telephone          string `json:"telephone" validate:"required,ghphone"`
	Email              string `json:"email" validate:"required,email"`

	CommodityIDs      []uint `json:"commodity_ids"`
	OtherCommodities  string `json:"other_commodities"`
	WarehouseLocation string `json:"warehouse_location"`

	TeamMembers  []TeamMemberInput  `json:"team_members" validate:"dive"`
	NextOfKin    []NextOfKinInput   `json:"next_of_kin" validate:"dive"`
	BankAccounts []BankAccountInput `json:"bank_accounts" validate:"max=2,dive"`

	DeclarationAgreed bool   `json:"declaration_agreed" validate:"required"`
	DataConsent       bool   `json:"data_consent" validate:"required"`
	SignerName        string `json:"signer_name" validate:"required"`
	SignerDesignation string `json:"signer_designation" validate:"required"`
}

type TeamMemberInput struct {
	FullName        string `json:"full_name" validate:"required"`
	Position        string `json:"position" validate:"required"`
	YearsExperience int    `json:"years_experience" validate:"gte=0"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
	Region          string `json:"region"`
	Telephone       string `json:"telephone" validate:"omitempty,ghphone"`
	Email           string `json:"email" validate:"omitempty,email"`
	IDCardType      string `json:"id_card_type" validate:"omitempty,oneof=GHANA_CARD PASSPORT VOTER_ID OTHER"`
	IDCardNumber    string `json:"id_card_number"`
}

type NextOfKinInput struct {
	FullName     string `json:"full_name" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	Address      string `json:"address"`
	Mobile       string `json:"mobile" validate:"omitempty,ghphone"`
	IDCardType   string `json:"id_card_type" validate:"omitempty,oneof=GHANA_CARD PASSPORT VOTER_ID OTHER"`
	IDCardNumber string `json:"id_card_number"`
}

type BankAccountInput struct {
	BankName      string `json:"bank_name" validate:"required"`
	Branch        string `json:"branch"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
}

type RequestDocumentsRequest struct {
	RequirementCodes []string `json:"requirement_codes"`
	Description      string   `json:"description"`
	Message          string   `json:"message" validate:"max=2000"`
}

type ApproveRequest struct {
	ActivateAccount bool   `json:"activate_account"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type VerifyUploadRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

type RejectUploadRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ApplicationStatusResponse is the public view returned for a tracking code.
type ApplicationStatusResponse struct {
	TrackingCode         string   `json:"tracking_code"`
	BusinessName         string   `json:"business_name"`
	Status               Status   `json:"status"`
	StatusLabel          string   `json:"status_label"`
	OutstandingDocuments []string `json:"outstanding_documents"`
}
