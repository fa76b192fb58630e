package dto

import (
	"time"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/models"
)

// WorkerComplianceSummary pre-populates dispatch UI before an assignment attempt.
type WorkerComplianceSummary struct {
	WorkerID       string                  `json:"workerId"`
	Active         bool                    `json:"active"`
	Status         models.ComplianceStatus `json:"status"`
	Missing        []compliance.GapItem    `json:"missing"`
	Expiring       []compliance.GapItem    `json:"expiring"`
	Advisory       []compliance.GapItem    `json:"advisory"`
	Blocking       bool                    `json:"blocking"`
	LastVerifiedAt *time.Time              `json:"lastVerifiedAt,omitempty"`
}

// CertificationStatusChange records a cached status that a refresh corrected.
type CertificationStatusChange struct {
	CertificationID string                     `json:"certificationId"`
	Label           string                     `json:"label"`
	From            models.CertificationStatus `json:"from"`
	To              models.CertificationStatus `json:"to"`
}

// RefreshResult reports what a status refresh changed.
type RefreshResult struct {
	WorkerID       string                      `json:"workerId"`
	PreviousStatus models.ComplianceStatus     `json:"previousStatus"`
	Status         models.ComplianceStatus     `json:"status"`
	Changes        []CertificationStatusChange `json:"changes"`
}

// ExpiringCertificationsQuery binds the expiring listing query string.
type ExpiringCertificationsQuery struct {
	WindowDays int    `form:"windowDays" validate:"omitempty,min=1,max=365"`
	Format     string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}

// ExpiringCertification is one row of the expiring listing.
type ExpiringCertification struct {
	CertificationID string                     `json:"certificationId"`
	WorkerID        string                     `json:"workerId"`
	WorkerName      string                     `json:"workerName"`
	Label           string                     `json:"label"`
	Required        bool                       `json:"required"`
	ExpiresAt       time.Time                  `json:"expiresAt"`
	DaysRemaining   int                        `json:"daysRemaining"`
	Status          models.CertificationStatus `json:"status"`
}

// SweepResult summarises one scheduled refresh pass.
type SweepResult struct {
	Workers int `json:"workers"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}
