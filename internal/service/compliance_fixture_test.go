package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/pkg/notify"
)

var complianceNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const overrideReason = "Certification renewal in progress, client notified"

type complianceFixture struct {
	store  *memoryStore
	actor  Actor
	policy Policy
}

// newComplianceFixture seeds one company with every mandatory document, one
// active worker holding a verification token and one open work order.
func newComplianceFixture(t *testing.T) *complianceFixture {
	t.Helper()
	store := newMemoryStore()
	store.seedCompany("c-1", "Acme Field Services")
	store.seedDocuments("c-1", models.MandatoryDocumentCategories...)
	email := "dana.reyes@example.com"
	store.seedWorker(models.Worker{ID: "w-1", CompanyID: "c-1", FirstName: "Dana", LastName: "Reyes", Email: &email, Active: true})
	store.seedToken("w-1", "tok-w1")
	store.seedOrder(models.WorkOrder{ID: "wo-1", CompanyID: "c-1", Number: "WO-1001", Title: "Rooftop HVAC inspection"})

	return &complianceFixture{
		store:  store,
		actor:  Actor{UserID: "u-dispatch", CompanyID: "c-1", Role: models.RoleDispatcher},
		policy: Policy{VerifyBaseURL: "https://verify.example.com/v"},
	}
}

func (f *complianceFixture) clock() func() time.Time {
	return func() time.Time { return complianceNow }
}

// addCert seeds a certification on w-1 expiring the given offset from now.
func (f *complianceFixture) addCert(id string, required bool, expiresIn time.Duration, proofs int) {
	expires := complianceNow.Add(expiresIn)
	f.store.seedCert(models.Certification{ID: id, WorkerID: "w-1", Name: id, Required: required, ExpiresAt: &expires}, proofs)
}

func (f *complianceFixture) snapshots() []models.Snapshot {
	var out []models.Snapshot
	f.store.snapshot(func(s *memoryState) { out = append(out, s.snapshots...) })
	return out
}

func (f *complianceFixture) token(workerID string) models.VerificationToken {
	var out models.VerificationToken
	f.store.snapshot(func(s *memoryState) { out = s.tokens[workerID] })
	return out
}

func (f *complianceFixture) worker(id string) models.Worker {
	var out models.Worker
	f.store.snapshot(func(s *memoryState) { out = s.workers[id] })
	return out
}

func (f *complianceFixture) assignments() []models.Assignment {
	var out []models.Assignment
	f.store.snapshot(func(s *memoryState) { out = append(out, s.assignments...) })
	return out
}

const day = 24 * time.Hour

type recordingNotifier struct {
	mu      sync.Mutex
	notices []AssignmentNotice
	err     error
}

func (n *recordingNotifier) NotifyAssignment(ctx context.Context, notice AssignmentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

type stubSender struct {
	mu      sync.Mutex
	channel notify.Channel
	err     error
	sent    []notify.Message
}

func (s *stubSender) Channel() notify.Channel { return s.channel }

func (s *stubSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
