package database

import (
	"gcx-supplier-go/models"

	"gorm.io/gorm"
)

const defaultExtensions = ".pdf,.jpg,.jpeg,.png"

var regions = []models.Region{
	{Code: "AR", Name: "Ashanti Region"},
	{Code: "BA", Name: "Brong-Ahafo Region"},
	{Code: "CR", Name: "Central Region"},
	{Code: "ER", Name: "Eastern Region"},
	{Code: "GR", Name: "Greater Accra Region"},
	{Code: "NR", Name: "Northern Region"},
	{Code: "UE", Name: "Upper East Region"},
	{Code: "UW", Name: "Upper West Region"},
	{Code: "VR", Name: "Volta Region"},
	{Code: "WR", Name: "Western Region"},
}

var commodities = []models.Commodity{
	{Name: "Rice", Description: "Milled and paddy rice"},
	{Name: "Maize", Description: "White and yellow maize"},
	{Name: "Tom Brown", Description: "Roasted cereal porridge mix", IsProcessedFood: true},
	{Name: "Palm Oil", Description: "Refined and unrefined palm oil", IsProcessedFood: true},
	{Name: "Cassava", Description: "Fresh cassava and gari"},
	{Name: "Yam", Description: "Fresh yam tubers"},
	{Name: "Plantain", Description: "Fresh plantain"},
	{Name: "Groundnut", Description: "Shelled and unshelled groundnut"},
	{Name: "Soybean", Description: "Soybean grain"},
	{Name: "Sorghum", Description: "Sorghum grain"},
}

var requirementCatalog = []models.DocumentRequirement{
	{
		Code:          "BUSINESS_REGISTRATION_DOCS",
		Label:         "Business Registration Documents",
		Description:   "Certificate of Incorporation, Form 3, Form C",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "VAT_CERTIFICATE",
		Label:         "VAT Certificate",
		Description:   "Valid VAT registration certificate",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "PPA_CERTIFICATE",
		Label:         "PPA Certificate",
		Description:   "Valid PPA registration certificate",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "TAX_CLEARANCE_CERT",
		Label:         "Tax Clearance Certificate",
		Description:   "Valid tax clearance certificate with TIN number",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "PROOF_OF_OFFICE",
		Label:         "Proof of Office",
		Description:   "Utility bill, rent agreement, or other proof of office location",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "ID_MD_CEO_PARTNERS",
		Label:         "ID of MD/CEO/Partners",
		Description:   "Valid ID of directors, partners, or managing director",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          models.RequirementGCXRegistrationProof,
		Label:         "GCX Registration Proof",
		Description:   "Proof of GCX registration or membership",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          "TEAM_MEMBER_ID",
		Label:         "Team Member ID",
		Description:   "Valid ID of experienced team member",
		IsRequired:    true,
		ConditionNote: "Required for all applications",
	},
	{
		Code:          models.RequirementFDACertificate,
		Label:         "FDA Certificate for Processed Food",
		Description:   "FDA certificate for processed food products",
		IsRequired:    false,
		Condition:     models.ConditionProcessedFood,
		ConditionNote: "Required only if supplying processed foods",
	},
}

// Seed inserts reference data that is missing. Existing rows are left
// untouched so operators can edit labels and limits.
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, r := range regions {
			region := r
			if err := tx.Where(models.Region{Code: region.Code}).FirstOrCreate(&region).Error; err != nil {
				return err
			}
		}

		for _, c := range commodities {
			commodity := c
			commodity.IsActive = true
			if err := tx.Where(models.Commodity{Name: commodity.Name}).FirstOrCreate(&commodity).Error; err != nil {
				return err
			}
		}

		for i, r := range requirementCatalog {
			req := r
			req.AllowedExtensions = defaultExtensions
			req.MaxFileSizeMB = 10
			req.IsActive = true
			req.SortOrder = (i + 1) * 10
			if err := tx.Where(models.DocumentRequirement{Code: req.Code}).FirstOrCreate(&req).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
