package models

import (
	"strings"
	"time"
)

// Company owns workers and company-level compliance documents.
type Company struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DocumentCategory is the fixed company document taxonomy.
type DocumentCategory string

const (
	DocumentCategoryGeneralLiability DocumentCategory = "GENERAL_LIABILITY_INSURANCE"
	DocumentCategoryWorkersComp      DocumentCategory = "WORKERS_COMP_INSURANCE"
	DocumentCategoryBusinessLicense  DocumentCategory = "BUSINESS_LICENSE"
	DocumentCategorySafetyProgram    DocumentCategory = "SAFETY_PROGRAM"
	DocumentCategoryAutoInsurance    DocumentCategory = "AUTO_INSURANCE"
	DocumentCategoryBonding          DocumentCategory = "BONDING"
	DocumentCategoryW9               DocumentCategory = "W9"
	DocumentCategoryOther            DocumentCategory = "OTHER"
)

// MandatoryDocumentCategories must all be on file for a clean snapshot.
var MandatoryDocumentCategories = []DocumentCategory{
	DocumentCategoryGeneralLiability,
	DocumentCategoryWorkersComp,
	DocumentCategoryBusinessLicense,
	DocumentCategorySafetyProgram,
}

var documentCategoryLabels = map[DocumentCategory]string{
	DocumentCategoryGeneralLiability: "General liability insurance certificate",
	DocumentCategoryWorkersComp:      "Workers' compensation insurance certificate",
	DocumentCategoryBusinessLicense:  "Business license",
	DocumentCategorySafetyProgram:    "Written safety program",
	DocumentCategoryAutoInsurance:    "Commercial auto insurance",
	DocumentCategoryBonding:          "Surety bond",
	DocumentCategoryW9:               "W-9",
	DocumentCategoryOther:            "Other",
}

// ParseDocumentCategory normalises raw input into a known category.
func ParseDocumentCategory(raw string) (DocumentCategory, bool) {
	category := DocumentCategory(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := documentCategoryLabels[category]
	return category, ok
}

// Label returns the display name for the category.
func (c DocumentCategory) Label() string {
	if label, ok := documentCategoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// CompanyDocument is a company-level compliance artifact.
type CompanyDocument struct {
	ID         string           `db:"id" json:"id"`
	CompanyID  string           `db:"company_id" json:"companyId"`
	Category   DocumentCategory `db:"category" json:"category"`
	Title      string           `db:"title" json:"title"`
	FileKey    string           `db:"file_key" json:"fileKey"`
	ExpiresAt  *time.Time       `db:"expires_at" json:"expiresAt,omitempty"`
	UploadedBy string           `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}
