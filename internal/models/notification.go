package models

import "time"

// NotificationChannel identifies the delivery medium.
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "EMAIL"
	NotificationChannelSMS   NotificationChannel = "SMS"
	NotificationChannelLog   NotificationChannel = "LOG"
)

// NotificationStatus tracks delivery outcome.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// NotificationLog durably records each outbound message and its delivery outcome.
type NotificationLog struct {
	ID            string              `db:"id" json:"id"`
	CompanyID     string              `db:"company_id" json:"companyId"`
	AssignmentID  *string             `db:"assignment_id" json:"assignmentId,omitempty"`
	WorkerID      string              `db:"worker_id" json:"workerId"`
	Channel       NotificationChannel `db:"channel" json:"channel"`
	Recipient     string              `db:"recipient" json:"recipient"`
	Subject       string              `db:"subject" json:"subject"`
	Body          string              `db:"body" json:"body"`
	AttachmentRef *string             `db:"attachment_ref" json:"attachmentRef,omitempty"`
	Status        NotificationStatus  `db:"status" json:"status"`
	Attempts      int                 `db:"attempts" json:"attempts"`
	LastError     *string             `db:"last_error" json:"lastError,omitempty"`
	CreatedAt     time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updatedAt"`
}
