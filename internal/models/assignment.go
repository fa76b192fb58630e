package models

import "time"

// WorkOrder is the operational job a worker is dispatched to. Owned by the
// dispatch subsystem; read-only here.
type WorkOrder struct {
	ID             string     `db:"id" json:"id"`
	CompanyID      string     `db:"company_id" json:"companyId"`
	Number         string     `db:"number" json:"number"`
	Title          string     `db:"title" json:"title"`
	SiteAddress    *string    `db:"site_address" json:"siteAddress,omitempty"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"scheduledStart,omitempty"`
	Instructions   *string    `db:"instructions" json:"instructions,omitempty"`
}

// Assignment links a worker to a work order under a recorded compliance state.
// Rows are soft-removed through UnassignedAt and never deleted.
type Assignment struct {
	ID                     string           `db:"id" json:"id"`
	WorkOrderID            string           `db:"work_order_id" json:"workOrderId"`
	WorkerID               string           `db:"worker_id" json:"workerId"`
	ComplianceStatus       ComplianceStatus `db:"compliance_status" json:"complianceStatus"`
	GapSummary             []byte           `db:"gap_summary" json:"-"`
	OverrideAcknowledged   bool             `db:"override_acknowledged" json:"overrideAcknowledged"`
	OverrideReason         *string          `db:"override_reason" json:"overrideReason,omitempty"`
	OverrideActorID        *string          `db:"override_actor_id" json:"overrideActorId,omitempty"`
	OverrideAt             *time.Time       `db:"override_at" json:"overrideAt,omitempty"`
	ComplianceSnapshotHash *string          `db:"compliance_snapshot_hash" json:"complianceSnapshotHash,omitempty"`
	AssignedByID           string           `db:"assigned_by_id" json:"assignedById"`
	AssignedAt             time.Time        `db:"assigned_at" json:"assignedAt"`
	UnassignedAt           *time.Time       `db:"unassigned_at" json:"unassignedAt,omitempty"`
	UnassignedByID         *string          `db:"unassigned_by_id" json:"unassignedById,omitempty"`
}

// Active reports whether the assignment has not been soft-removed.
func (a Assignment) Active() bool {
	return a.UnassignedAt == nil
}
