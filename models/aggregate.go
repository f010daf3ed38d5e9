package models

// ApplicationAggregate is an application together with everything the
// resolver and report generator need, read in one transaction.
type ApplicationAggregate struct {
	Application SupplierApplication          `json:"application"`
	Uploads     []DocumentUpload             `json:"uploads"`
	Requests    []OutstandingDocumentRequest `json:"requests"`
	Decision    *ReviewDecision              `json:"decision,omitempty"`
	Catalog     []DocumentRequirement        `json:"-"`
}
