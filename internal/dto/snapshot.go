package dto

import (
	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/models"
)

// CreateSnapshotRequest triggers a snapshot. Source defaults to manual.
type CreateSnapshotRequest struct {
	Source string `json:"source" validate:"omitempty,oneof=manual inspection print export dispatch"`
}

// SnapshotResponse exposes a sealed snapshot with its decoded payload.
type SnapshotResponse struct {
	models.Snapshot
	Payload   compliance.Payload `json:"payload"`
	HashValid bool               `json:"hashValid"`
}

// CreateSnapshotResponse adds the verification link the token now resolves to.
type CreateSnapshotResponse struct {
	Snapshot  SnapshotResponse `json:"snapshot"`
	Token     string           `json:"token"`
	VerifyURL string           `json:"verifyUrl,omitempty"`
}

// ListSnapshotsQuery binds paging for a worker's snapshot history.
type ListSnapshotsQuery struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

// VerificationResponse is the public inspector view. Everything in it comes
// from the sealed payload.
type VerificationResponse struct {
	SnapshotID     string                            `json:"snapshotId"`
	SnapshotHash   string                            `json:"snapshotHash"`
	HashValid      bool                              `json:"hashValid"`
	Status         models.ComplianceStatus           `json:"status"`
	Source         models.SnapshotSource             `json:"source"`
	SealedAt       string                            `json:"sealedAt"`
	Worker         compliance.PayloadWorker          `json:"worker"`
	Company        compliance.PayloadCompany         `json:"company"`
	Certifications []compliance.PayloadCertification `json:"certifications"`
	FailureReasons []compliance.FailureReason        `json:"failureReasons"`
}

// ProvisionTokenResponse returns a freshly provisioned token.
type ProvisionTokenResponse struct {
	WorkerID  string `json:"workerId"`
	Token     string `json:"token"`
	VerifyURL string `json:"verifyUrl,omitempty"`
}
