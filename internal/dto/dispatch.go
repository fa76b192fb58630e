package dto

import (
	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/models"
)

// AssignWorkerRequest asks the compliance gate to dispatch a worker.
type AssignWorkerRequest struct {
	WorkerID       string  `json:"workerId" validate:"required"`
	ForceOverride  bool    `json:"forceOverride"`
	OverrideReason *string `json:"overrideReason" validate:"omitempty,max=2000"`
}

// AssignmentResponse is an assignment with its decoded gap summary.
type AssignmentResponse struct {
	models.Assignment
	GapSummary compliance.GapSummary `json:"gapSummary"`
}

// ComplianceBlockedDetails is returned with COMPLIANCE_BLOCKED and OVERRIDE_REASON_REQUIRED.
// It lists only the blocking gaps.
type ComplianceBlockedDetails struct {
	WorkerID           string                  `json:"workerId"`
	Status             models.ComplianceStatus `json:"status"`
	Missing            []compliance.GapItem    `json:"missing"`
	Expiring           []compliance.GapItem    `json:"expiring"`
	MinimumReasonChars int                     `json:"minimumReasonChars,omitempty"`
}
