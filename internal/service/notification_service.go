package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	"github.com/noah-isme/compliance-api/pkg/jobs"
	"github.com/noah-isme/compliance-api/pkg/notify"
)

// JobTypeAssignmentNotification tags queued assignment notifications.
const JobTypeAssignmentNotification = "assignment_notification"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type certificateLinker interface {
	Generate(resourceID, name string) (string, time.Time, error)
}

// AssignmentNotice carries what a dispatched worker needs to know.
type AssignmentNotice struct {
	Assignment models.Assignment
	WorkOrder  models.WorkOrder
	Worker     models.Worker
	Gaps       compliance.GapSummary
	SnapshotID string
}

// NotificationService composes assignment messages, records them durably and
// delivers them from a background queue. Delivery problems never reach the caller.
type NotificationService struct {
	store   complianceStore
	sender  notify.Sender
	queue   jobEnqueuer
	links   certificateLinker
	linkURL string
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithNotificationMetrics records delivery counters.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) { s.metrics = metrics }
}

// WithCertificateLinks attaches a signed, expiring certificate download link
// to every message whose assignment sealed a snapshot.
func WithCertificateLinks(links certificateLinker, baseURL string) NotificationServiceOption {
	return func(s *NotificationService) {
		s.links = links
		s.linkURL = strings.TrimRight(baseURL, "/")
	}
}

// WithNotificationClock overrides the time source.
func WithNotificationClock(now func() time.Time) NotificationServiceOption {
	return func(s *NotificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNotificationService constructs the service. Attach a queue with SetQueue
// before use; without one, messages are delivered inline with a single attempt.
func NewNotificationService(store complianceStore, sender notify.Sender, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = notify.NewLogSender(logger)
	}
	svc := &NotificationService{
		store:  store,
		sender: sender,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SetQueue attaches the delivery queue.
func (s *NotificationService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// NotifyAssignment records a PENDING notification and hands it to the queue.
func (s *NotificationService) NotifyAssignment(ctx context.Context, notice AssignmentNotice) error {
	msg := ComposeAssignmentMessage(notice)
	if link := s.certificateLink(notice.SnapshotID); link != "" {
		msg.AttachmentRef = link
		msg.Body += "\nCompliance certificate: " + link + "\n"
	}
	now := s.now()
	entry := &models.NotificationLog{
		CompanyID:     notice.WorkOrder.CompanyID,
		AssignmentID:  stringPtr(notice.Assignment.ID),
		WorkerID:      notice.Worker.ID,
		Channel:       models.NotificationChannel(s.sender.Channel()),
		Recipient:     recipientFor(s.sender.Channel(), notice.Worker),
		Subject:       msg.Subject,
		Body:          msg.Body,
		Status:        models.NotificationStatusPending,
		AttachmentRef: optionalString(msg.AttachmentRef),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		return q.InsertNotificationLog(ctx, entry)
	}); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	if entry.Recipient == "" {
		s.finish(ctx, entry, 0, notify.ErrNoRecipient)
		return notify.ErrNoRecipient
	}

	job := jobs.Job{ID: entry.ID, Type: JobTypeAssignmentNotification, Payload: entry.ID}
	if s.queue == nil {
		if err := s.HandleJob(ctx, job); err != nil {
			s.HandleDeadLetter(ctx, job, err)
			return err
		}
		return nil
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.finish(ctx, entry, 0, err)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// HandleJob delivers one queued notification. A returned error lets the queue retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("notification job %s has no log id", job.ID)
	}

	var entry *models.NotificationLog
	if err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		entry, err = q.GetNotificationLog(ctx, id)
		return err
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("notification log vanished", zap.String("notification_id", id))
			return nil
		}
		return fmt.Errorf("load notification %s: %w", id, err)
	}
	if entry.Status != models.NotificationStatusPending {
		return nil
	}

	sendErr := s.sender.Send(ctx, notify.Message{
		To:            entry.Recipient,
		Subject:       entry.Subject,
		Body:          entry.Body,
		AttachmentRef: derefString(entry.AttachmentRef),
	})
	attempts := entry.Attempts + 1
	if sendErr == nil {
		s.finish(ctx, entry, attempts, nil)
		return nil
	}

	lastError := sendErr.Error()
	if err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		return q.UpdateNotificationLog(ctx, repository.NotificationLogUpdate{
			ID:        entry.ID,
			Status:    models.NotificationStatusPending,
			Attempts:  attempts,
			LastError: &lastError,
			UpdatedAt: s.now(),
		})
	}); err != nil {
		s.logger.Error("failed to record notification attempt", zap.String("notification_id", entry.ID), zap.Error(err))
	}
	return sendErr
}

// HandleDeadLetter marks a notification FAILED once the queue gives up on it,
// including jobs abandoned when the queue stops.
func (s *NotificationService) HandleDeadLetter(ctx context.Context, job jobs.Job, cause error) {
	id, _ := job.Payload.(string)
	var entry *models.NotificationLog
	if err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		entry, err = q.GetNotificationLog(ctx, id)
		return err
	}); err != nil {
		s.logger.Error("failed to load dead-lettered notification", zap.String("notification_id", id), zap.Error(err))
		return
	}
	s.finish(ctx, entry, entry.Attempts, cause)
}

// finish stores the final outcome and its audit entry. Errors are logged only.
func (s *NotificationService) finish(ctx context.Context, entry *models.NotificationLog, attempts int, cause error) {
	status := models.NotificationStatusSent
	activity := models.ActivityNotificationDelivered
	var lastError *string
	metadata := map[string]interface{}{
		"notificationId": entry.ID,
		"channel":        entry.Channel,
		"attempts":       attempts,
	}
	if entry.AssignmentID != nil {
		metadata["assignmentId"] = *entry.AssignmentID
	}
	if cause != nil {
		status = models.NotificationStatusFailed
		activity = models.ActivityNotificationFailed
		msg := cause.Error()
		lastError = &msg
		metadata["error"] = msg
	}
	now := s.now()

	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		if err := q.UpdateNotificationLog(ctx, repository.NotificationLogUpdate{
			ID:        entry.ID,
			Status:    status,
			Attempts:  attempts,
			LastError: lastError,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return appendAudit(ctx, q, auditEntry{
			companyID: entry.CompanyID,
			actorID:   SystemActorID,
			activity:  activity,
			workerID:  entry.WorkerID,
			metadata:  metadata,
			at:        now,
		})
	})
	if err != nil {
		s.logger.Error("failed to record notification outcome", zap.String("notification_id", entry.ID), zap.Error(err))
	}
	s.metrics.RecordNotification(string(entry.Channel), string(status))
	if cause != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("notification_id", entry.ID),
			zap.String("worker_id", entry.WorkerID),
			zap.Int("attempts", attempts),
			zap.Error(cause),
		)
	}
}

// ComposeAssignmentMessage builds the worker-facing message. Overridden
// assignments always carry the override notice with every gap and the reason.
func ComposeAssignmentMessage(notice AssignmentNotice) notify.Message {
	order := notice.WorkOrder
	assignment := notice.Assignment

	subject := fmt.Sprintf("Work order %s: %s", order.Number, order.Title)
	if assignment.OverrideAcknowledged {
		subject = "[COMPLIANCE OVERRIDE] " + subject
	}

	var b strings.Builder
	name := notice.Worker.FirstName
	if name == "" {
		name = notice.Worker.FullName()
	}
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "You have been assigned to work order %s: %s.\n", order.Number, order.Title)
	if order.SiteAddress != nil && *order.SiteAddress != "" {
		fmt.Fprintf(&b, "Site: %s\n", *order.SiteAddress)
	}
	if order.ScheduledStart != nil {
		fmt.Fprintf(&b, "Scheduled start: %s\n", order.ScheduledStart.UTC().Format("Mon 02 Jan 2006 15:04 MST"))
	}
	if order.Instructions != nil && *order.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", *order.Instructions)
	}

	if assignment.OverrideAcknowledged {
		b.WriteString("\nCOMPLIANCE OVERRIDE NOTICE\n")
		b.WriteString("This assignment was approved although the following compliance items are unresolved:\n")
		for _, item := range notice.Gaps.Missing {
			fmt.Fprintf(&b, "- Missing: %s\n", item.Label)
		}
		for _, item := range notice.Gaps.Expiring {
			if item.ExpiresAt != nil {
				fmt.Fprintf(&b, "- Expired: %s (%s)\n", item.Label, item.ExpiresAt.UTC().Format("2006-01-02"))
			} else {
				fmt.Fprintf(&b, "- Expired: %s\n", item.Label)
			}
		}
		if assignment.OverrideReason != nil {
			fmt.Fprintf(&b, "Override reason: %s\n", *assignment.OverrideReason)
		}
		if assignment.OverrideActorID != nil {
			fmt.Fprintf(&b, "Approved by: %s", *assignment.OverrideActorID)
			if assignment.OverrideAt != nil {
				fmt.Fprintf(&b, " at %s", assignment.OverrideAt.UTC().Format(time.RFC3339))
			}
			b.WriteString("\n")
		}
	}

	msg := notify.Message{Subject: subject, Body: b.String()}
	if notice.SnapshotID != "" {
		msg.AttachmentRef = "snapshots/" + notice.SnapshotID + "/certificate"
	}
	return msg
}

func recipientFor(channel notify.Channel, worker models.Worker) string {
	switch channel {
	case notify.ChannelEmail:
		return derefString(worker.Email)
	case notify.ChannelSMS:
		return derefString(worker.Phone)
	default:
		if worker.Email != nil && *worker.Email != "" {
			return *worker.Email
		}
		if worker.Phone != nil && *worker.Phone != "" {
			return *worker.Phone
		}
		return worker.ID
	}
}

func (s *NotificationService) certificateLink(snapshotID string) string {
	if s.links == nil || snapshotID == "" {
		return ""
	}
	token, _, err := s.links.Generate(snapshotID, CertificateFilename(snapshotID))
	if err != nil {
		s.logger.Warn("failed to sign certificate link", zap.String("snapshot_id", snapshotID), zap.Error(err))
		return ""
	}
	return s.linkURL + "/" + token
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
