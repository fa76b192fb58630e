package models

import "time"

// Worker is a person eligible for field assignment. ComplianceStatus,
// LastVerifiedAt and ComplianceHash are caches refreshed by explicit
// operations and are never read back as a source of truth.
type Worker struct {
	ID               string           `db:"id" json:"id"`
	CompanyID        string           `db:"company_id" json:"companyId"`
	FirstName        string           `db:"first_name" json:"firstName"`
	LastName         string           `db:"last_name" json:"lastName"`
	Email            *string          `db:"email" json:"email,omitempty"`
	Phone            *string          `db:"phone" json:"phone,omitempty"`
	JobTitle         *string          `db:"job_title" json:"jobTitle,omitempty"`
	Active           bool             `db:"active" json:"active"`
	ComplianceStatus ComplianceStatus `db:"compliance_status" json:"complianceStatus"`
	LastVerifiedAt   *time.Time       `db:"last_verified_at" json:"lastVerifiedAt,omitempty"`
	ComplianceHash   *string          `db:"compliance_hash" json:"complianceHash,omitempty"`
	UpdatedByID      *string          `db:"updated_by_id" json:"updatedById,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (w Worker) FullName() string {
	switch {
	case w.FirstName == "":
		return w.LastName
	case w.LastName == "":
		return w.FirstName
	default:
		return w.FirstName + " " + w.LastName
	}
}

// ComplianceStatus is the aggregate worker (or snapshot) status.
type ComplianceStatus string

const (
	ComplianceStatusPass       ComplianceStatus = "PASS"
	ComplianceStatusFail       ComplianceStatus = "FAIL"
	ComplianceStatusIncomplete ComplianceStatus = "INCOMPLETE"
)

// WorkerComplianceUpdate carries the denormalized cache columns written after a refresh or snapshot.
type WorkerComplianceUpdate struct {
	WorkerID         string
	ComplianceStatus ComplianceStatus
	ComplianceHash   *string
	LastVerifiedAt   *time.Time
	UpdatedByID      *string
	UpdatedAt        time.Time
}
