package models

import (
	"strings"
	"time"
)

// CertificationStatus is the derived state of a single certification.
type CertificationStatus string

const (
	CertificationStatusPass       CertificationStatus = "PASS"
	CertificationStatusIncomplete CertificationStatus = "INCOMPLETE"
	CertificationStatusExpired    CertificationStatus = "EXPIRED"
)

// Certification belongs to exactly one worker. Status is a stored cache of
// the derived value.
type Certification struct {
	ID        string              `db:"id" json:"id"`
	WorkerID  string              `db:"worker_id" json:"workerId"`
	PresetKey *string             `db:"preset_key" json:"presetKey,omitempty"`
	Name      string              `db:"name" json:"name"`
	Required  bool                `db:"required" json:"required"`
	IssueDate *time.Time          `db:"issue_date" json:"issueDate,omitempty"`
	ExpiresAt *time.Time          `db:"expires_at" json:"expiresAt,omitempty"`
	Status    CertificationStatus `db:"status" json:"status"`
	CreatedAt time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time           `db:"updated_at" json:"updatedAt"`
}

// Label is the human readable name, falling back to the preset key.
func (c Certification) Label() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if c.PresetKey != nil {
		return *c.PresetKey
	}
	return c.ID
}

// Category returns the preset identifier or the free-text name.
func (c Certification) Category() string {
	if c.PresetKey != nil && *c.PresetKey != "" {
		return *c.PresetKey
	}
	return c.Name
}

// ProofArtifact evidences a certification (scan, photo, document).
type ProofArtifact struct {
	ID              string    `db:"id" json:"id"`
	CertificationID string    `db:"certification_id" json:"certificationId"`
	FileKey         string    `db:"file_key" json:"fileKey"`
	ContentType     string    `db:"content_type" json:"contentType"`
	Digest          string    `db:"digest" json:"digest"`
	UploadedAt      time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// ExpiringCertification is a certification row joined with its worker for company-wide listings.
type ExpiringCertification struct {
	Certification
	WorkerFirstName string `db:"worker_first_name" json:"workerFirstName"`
	WorkerLastName  string `db:"worker_last_name" json:"workerLastName"`
	ProofCount      int    `db:"proof_count" json:"proofCount"`
}
