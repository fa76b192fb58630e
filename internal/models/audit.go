package models

import "time"

// ActivityType names an audit event. The log is append-only.
type ActivityType string

const (
	ActivitySnapshotCreated       ActivityType = "SNAPSHOT_CREATED"
	ActivityCertExpired           ActivityType = "CERT_EXPIRED"
	ActivityTokenProvisioned      ActivityType = "VERIFICATION_TOKEN_PROVISIONED"
	ActivityAssignmentCreated     ActivityType = "ASSIGNMENT_CREATED"
	ActivityComplianceOverride    ActivityType = "COMPLIANCE_OVERRIDE"
	ActivityAssignmentBlocked     ActivityType = "ASSIGNMENT_BLOCKED"
	ActivityWorkerUnassigned      ActivityType = "WORKER_UNASSIGNED"
	ActivityCompanyDocumentAdded  ActivityType = "COMPANY_DOCUMENT_ADDED"
	ActivityNotificationDelivered ActivityType = "NOTIFICATION_DELIVERED"
	ActivityNotificationFailed    ActivityType = "NOTIFICATION_FAILED"
)

// AuditActivity is one evidentiary log entry. Never updated or deleted.
type AuditActivity struct {
	ID                     string       `db:"id" json:"id"`
	CompanyID              string       `db:"company_id" json:"companyId"`
	ActorID                string       `db:"actor_id" json:"actorId"`
	Type                   ActivityType `db:"type" json:"type"`
	RelatedEmployeeID      *string      `db:"related_employee_id" json:"relatedEmployeeId,omitempty"`
	RelatedCertificationID *string      `db:"related_certification_id" json:"relatedCertificationId,omitempty"`
	Metadata               []byte       `db:"metadata" json:"metadata,omitempty"`
	RequestID              *string      `db:"request_id" json:"requestId,omitempty"`
	CreatedAt              time.Time    `db:"created_at" json:"createdAt"`
}

// AuditActivityFilter narrows activity listings.
type AuditActivityFilter struct {
	CompanyID  string
	EmployeeID string
	Types      []ActivityType
	Limit      int
	Offset     int
}
