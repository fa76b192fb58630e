package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
)

// memoryState is an in-memory stand-in for the compliance tables.
type memoryState struct {
	workers       map[string]models.Worker
	companies     map[string]models.Company
	certs         map[string]models.Certification
	proofs        []models.ProofArtifact
	documents     []models.CompanyDocument
	snapshots     []models.Snapshot
	tokens        map[string]models.VerificationToken
	audits        []models.AuditActivity
	orders        map[string]models.WorkOrder
	assignments   []models.Assignment
	notifications map[string]models.NotificationLog
	seq           int
}

func newMemoryState() *memoryState {
	return &memoryState{
		workers:       map[string]models.Worker{},
		companies:     map[string]models.Company{},
		certs:         map[string]models.Certification{},
		tokens:        map[string]models.VerificationToken{},
		orders:        map[string]models.WorkOrder{},
		notifications: map[string]models.NotificationLog{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		workers:       make(map[string]models.Worker, len(s.workers)),
		companies:     make(map[string]models.Company, len(s.companies)),
		certs:         make(map[string]models.Certification, len(s.certs)),
		proofs:        append([]models.ProofArtifact(nil), s.proofs...),
		documents:     append([]models.CompanyDocument(nil), s.documents...),
		snapshots:     append([]models.Snapshot(nil), s.snapshots...),
		tokens:        make(map[string]models.VerificationToken, len(s.tokens)),
		audits:        append([]models.AuditActivity(nil), s.audits...),
		orders:        make(map[string]models.WorkOrder, len(s.orders)),
		assignments:   append([]models.Assignment(nil), s.assignments...),
		notifications: make(map[string]models.NotificationLog, len(s.notifications)),
		seq:           s.seq,
	}
	for k, v := range s.workers {
		c.workers[k] = v
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.certs {
		c.certs[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	return c
}

func (s *memoryState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// memoryStore commits a cloned state only when the callback succeeds.
type memoryStore struct {
	mu    sync.Mutex
	state *memoryState

	failOn map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: newMemoryState(), failOn: map[string]error{}}
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(q repository.ComplianceQueries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft := m.state.clone()
	if err := fn(&memoryQueries{state: draft, failOn: m.failOn}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *memoryStore) Read(ctx context.Context, fn func(q repository.ComplianceQueries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryQueries{state: m.state, failOn: m.failOn})
}

func (m *memoryStore) snapshot(fn func(s *memoryState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

func (m *memoryStore) auditTypes() []models.ActivityType {
	var out []models.ActivityType
	m.snapshot(func(s *memoryState) {
		for _, a := range s.audits {
			out = append(out, a.Type)
		}
	})
	return out
}

func (m *memoryStore) seedCompany(id, name string) {
	m.snapshot(func(s *memoryState) { s.companies[id] = models.Company{ID: id, Name: name} })
}

func (m *memoryStore) seedWorker(w models.Worker) {
	m.snapshot(func(s *memoryState) {
		if w.ComplianceStatus == "" {
			w.ComplianceStatus = models.ComplianceStatusIncomplete
		}
		s.workers[w.ID] = w
	})
}

func (m *memoryStore) seedCert(c models.Certification, proofs int) {
	m.snapshot(func(s *memoryState) {
		if c.Status == "" {
			c.Status = models.CertificationStatusIncomplete
		}
		s.certs[c.ID] = c
		for i := 0; i < proofs; i++ {
			s.proofs = append(s.proofs, models.ProofArtifact{
				ID:              fmt.Sprintf("%s-proof-%d", c.ID, i),
				CertificationID: c.ID,
				FileKey:         fmt.Sprintf("proofs/%s/%d.pdf", c.ID, i),
				Digest:          fmt.Sprintf("%064d", i+1),
			})
		}
	})
}

func (m *memoryStore) seedToken(workerID, token string) {
	m.snapshot(func(s *memoryState) {
		s.tokens[workerID] = models.VerificationToken{WorkerID: workerID, Token: token}
	})
}

func (m *memoryStore) seedDocuments(companyID string, categories ...models.DocumentCategory) {
	m.snapshot(func(s *memoryState) {
		for _, c := range categories {
			s.documents = append(s.documents, models.CompanyDocument{
				ID:        s.nextID("doc"),
				CompanyID: companyID,
				Category:  c,
				Title:     c.Label(),
				FileKey:   "docs/" + string(c),
			})
		}
	})
}

func (m *memoryStore) seedOrder(o models.WorkOrder) {
	m.snapshot(func(s *memoryState) { s.orders[o.ID] = o })
}

type memoryQueries struct {
	state  *memoryState
	failOn map[string]error
}

var _ repository.ComplianceQueries = (*memoryQueries)(nil)

func (q *memoryQueries) fail(op string) error {
	if q.failOn == nil {
		return nil
	}
	return q.failOn[op]
}

func (q *memoryQueries) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	w, ok := q.state.workers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &w, nil
}

func (q *memoryQueries) GetWorkerForUpdate(ctx context.Context, id string) (*models.Worker, error) {
	return q.GetWorker(ctx, id)
}

func (q *memoryQueries) ListActiveWorkerIDs(ctx context.Context, companyID string) ([]string, error) {
	var ids []string
	for id, w := range q.state.workers {
		if w.Active && (companyID == "" || w.CompanyID == companyID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (q *memoryQueries) UpdateWorkerCompliance(ctx context.Context, update models.WorkerComplianceUpdate) error {
	if err := q.fail("UpdateWorkerCompliance"); err != nil {
		return err
	}
	w, ok := q.state.workers[update.WorkerID]
	if !ok {
		return sql.ErrNoRows
	}
	w.ComplianceStatus = update.ComplianceStatus
	if update.ComplianceHash != nil {
		w.ComplianceHash = update.ComplianceHash
	}
	if update.LastVerifiedAt != nil {
		w.LastVerifiedAt = update.LastVerifiedAt
	}
	if update.UpdatedByID != nil {
		w.UpdatedByID = update.UpdatedByID
	}
	w.UpdatedAt = update.UpdatedAt
	q.state.workers[w.ID] = w
	return nil
}

func (q *memoryQueries) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	c, ok := q.state.companies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (q *memoryQueries) ListCompanies(ctx context.Context) ([]models.Company, error) {
	out := make([]models.Company, 0, len(q.state.companies))
	for _, c := range q.state.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memoryQueries) ListCertificationsByWorker(ctx context.Context, workerID string) ([]models.Certification, error) {
	var out []models.Certification
	for _, c := range q.state.certs {
		if c.WorkerID == workerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memoryQueries) ListProofsByWorker(ctx context.Context, workerID string) ([]models.ProofArtifact, error) {
	var out []models.ProofArtifact
	for _, p := range q.state.proofs {
		if c, ok := q.state.certs[p.CertificationID]; ok && c.WorkerID == workerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *memoryQueries) UpdateCertificationStatus(ctx context.Context, id string, status models.CertificationStatus, at time.Time) error {
	c, ok := q.state.certs[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.UpdatedAt = at
	q.state.certs[id] = c
	return nil
}

func (q *memoryQueries) ListExpiringCertifications(ctx context.Context, companyID string, before time.Time) ([]models.ExpiringCertification, error) {
	var out []models.ExpiringCertification
	for _, c := range q.state.certs {
		w, ok := q.state.workers[c.WorkerID]
		if !ok || !w.Active || w.CompanyID != companyID || c.ExpiresAt == nil || c.ExpiresAt.After(before) {
			continue
		}
		proofs := 0
		for _, p := range q.state.proofs {
			if p.CertificationID == c.ID {
				proofs++
			}
		}
		out = append(out, models.ExpiringCertification{
			Certification:   c,
			WorkerFirstName: w.FirstName,
			WorkerLastName:  w.LastName,
			ProofCount:      proofs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

func (q *memoryQueries) ListCompanyDocumentCategories(ctx context.Context, companyID string) ([]models.DocumentCategory, error) {
	seen := map[models.DocumentCategory]bool{}
	var out []models.DocumentCategory
	for _, d := range q.state.documents {
		if d.CompanyID == companyID && !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	return out, nil
}

func (q *memoryQueries) ListCompanyDocuments(ctx context.Context, companyID string) ([]models.CompanyDocument, error) {
	var out []models.CompanyDocument
	for _, d := range q.state.documents {
		if d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (q *memoryQueries) InsertCompanyDocument(ctx context.Context, doc *models.CompanyDocument) error {
	if doc.ID == "" {
		doc.ID = q.state.nextID("doc")
	}
	q.state.documents = append(q.state.documents, *doc)
	return nil
}

func (q *memoryQueries) InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := q.fail("InsertSnapshot"); err != nil {
		return err
	}
	if snapshot.ID == "" {
		snapshot.ID = q.state.nextID("snap")
	}
	q.state.snapshots = append(q.state.snapshots, *snapshot)
	return nil
}

func (q *memoryQueries) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	for _, s := range q.state.snapshots {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (q *memoryQueries) LatestSnapshotAt(ctx context.Context, workerID string) (*time.Time, error) {
	var latest *time.Time
	for _, s := range q.state.snapshots {
		if s.WorkerID != workerID {
			continue
		}
		at := s.CreatedAt
		if latest == nil || at.After(*latest) {
			latest = &at
		}
	}
	return latest, nil
}

func (q *memoryQueries) ListSnapshotsByWorker(ctx context.Context, workerID string, limit, offset int) ([]models.Snapshot, int, error) {
	var all []models.Snapshot
	for i := len(q.state.snapshots) - 1; i >= 0; i-- {
		if q.state.snapshots[i].WorkerID == workerID {
			all = append(all, q.state.snapshots[i])
		}
	}
	if limit <= 0 {
		limit = 50
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (q *memoryQueries) GetVerificationTokenByWorker(ctx context.Context, workerID string) (*models.VerificationToken, error) {
	t, ok := q.state.tokens[workerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (q *memoryQueries) GetVerificationToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	for _, t := range q.state.tokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (q *memoryQueries) InsertVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	if _, ok := q.state.tokens[token.WorkerID]; ok {
		return fmt.Errorf("duplicate token for worker %s", token.WorkerID)
	}
	q.state.tokens[token.WorkerID] = *token
	return nil
}

func (q *memoryQueries) PointVerificationToken(ctx context.Context, workerID, snapshotID string, at time.Time) error {
	t, ok := q.state.tokens[workerID]
	if !ok {
		return sql.ErrNoRows
	}
	id := snapshotID
	t.SnapshotID = &id
	t.UpdatedAt = at
	q.state.tokens[workerID] = t
	return nil
}

func (q *memoryQueries) InsertAuditActivity(ctx context.Context, activity *models.AuditActivity) error {
	if err := q.fail("InsertAuditActivity"); err != nil {
		return err
	}
	if activity.ID == "" {
		activity.ID = q.state.nextID("audit")
	}
	q.state.audits = append(q.state.audits, *activity)
	return nil
}

func (q *memoryQueries) ListAuditActivities(ctx context.Context, filter models.AuditActivityFilter) ([]models.AuditActivity, error) {
	var out []models.AuditActivity
	for _, a := range q.state.audits {
		if filter.CompanyID != "" && a.CompanyID != filter.CompanyID {
			continue
		}
		if filter.EmployeeID != "" && (a.RelatedEmployeeID == nil || *a.RelatedEmployeeID != filter.EmployeeID) {
			continue
		}
		if len(filter.Types) > 0 {
			match := false
			for _, t := range filter.Types {
				if t == a.Type {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (q *memoryQueries) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	o, ok := q.state.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (q *memoryQueries) GetActiveAssignment(ctx context.Context, workOrderID, workerID string) (*models.Assignment, error) {
	for _, a := range q.state.assignments {
		if a.WorkOrderID == workOrderID && a.WorkerID == workerID && a.Active() {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (q *memoryQueries) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	for _, a := range q.state.assignments {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (q *memoryQueries) InsertAssignment(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = q.state.nextID("asg")
	}
	q.state.assignments = append(q.state.assignments, *assignment)
	return nil
}

func (q *memoryQueries) MarkAssignmentUnassigned(ctx context.Context, id, actorID string, at time.Time) error {
	for i, a := range q.state.assignments {
		if a.ID == id && a.Active() {
			when := at
			by := actorID
			q.state.assignments[i].UnassignedAt = &when
			q.state.assignments[i].UnassignedByID = &by
			return nil
		}
	}
	return sql.ErrNoRows
}

func (q *memoryQueries) ListAssignmentsByWorkOrder(ctx context.Context, workOrderID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range q.state.assignments {
		if a.WorkOrderID == workOrderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *memoryQueries) InsertNotificationLog(ctx context.Context, log *models.NotificationLog) error {
	if log.ID == "" {
		log.ID = q.state.nextID("ntf")
	}
	q.state.notifications[log.ID] = *log
	return nil
}

func (q *memoryQueries) GetNotificationLog(ctx context.Context, id string) (*models.NotificationLog, error) {
	n, ok := q.state.notifications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &n, nil
}

func (q *memoryQueries) UpdateNotificationLog(ctx context.Context, update repository.NotificationLogUpdate) error {
	n, ok := q.state.notifications[update.ID]
	if !ok {
		return sql.ErrNoRows
	}
	n.Status = update.Status
	n.Attempts = update.Attempts
	n.LastError = update.LastError
	n.UpdatedAt = update.UpdatedAt
	q.state.notifications[update.ID] = n
	return nil
}
