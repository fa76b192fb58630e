package dto

import "time"

// RegisterCompanyDocumentRequest records a company-level compliance document.
type RegisterCompanyDocumentRequest struct {
	Category  string     `json:"category" validate:"required"`
	Title     string     `json:"title" validate:"required,max=255"`
	FileKey   string     `json:"fileKey" validate:"required,max=512"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// AuditActivityQuery binds audit listing filters.
type AuditActivityQuery struct {
	WorkerID string `form:"workerId"`
	Type     string `form:"type"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" validate:"omitempty,min=0"`
}
