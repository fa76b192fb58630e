package models

import "time"

// SnapshotSource tags what triggered a snapshot.
type SnapshotSource string

const (
	SnapshotSourceManual     SnapshotSource = "manual"
	SnapshotSourceInspection SnapshotSource = "inspection"
	SnapshotSourcePrint      SnapshotSource = "print"
	SnapshotSourceExport     SnapshotSource = "export"
	SnapshotSourceDispatch   SnapshotSource = "dispatch"
)

// Valid reports whether the source is one of the known tags.
func (s SnapshotSource) Valid() bool {
	switch s {
	case SnapshotSourceManual, SnapshotSourceInspection, SnapshotSourcePrint, SnapshotSourceExport, SnapshotSourceDispatch:
		return true
	}
	return false
}

// Snapshot is an immutable, hash-sealed compliance record. Rows are insert-only.
type Snapshot struct {
	ID           string           `db:"id" json:"id"`
	WorkerID     string           `db:"worker_id" json:"workerId"`
	CompanyID    string           `db:"company_id" json:"companyId"`
	Status       ComplianceStatus `db:"status" json:"status"`
	Payload      []byte           `db:"payload" json:"-"`
	SnapshotHash string           `db:"snapshot_hash" json:"snapshotHash"`
	Source       SnapshotSource   `db:"source" json:"source"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	CreatedByID  string           `db:"created_by_id" json:"createdById"`
}

// VerificationToken is the single mutable pointer from an opaque token to a
// worker's current snapshot. One row per worker.
type VerificationToken struct {
	WorkerID   string    `db:"worker_id" json:"workerId"`
	Token      string    `db:"token" json:"token"`
	SnapshotID *string   `db:"snapshot_id" json:"snapshotId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}
