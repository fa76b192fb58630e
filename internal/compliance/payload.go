package compliance

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
)

// PayloadSchemaVersion identifies the sealed payload layout. Bump it on any
// field change so historical payloads keep decoding.
const PayloadSchemaVersion = 1

const dateLayout = "2006-01-02"

// Payload is the sealed point-in-time record auditors rely on.
type Payload struct {
	SchemaVersion  int                    `json:"schemaVersion"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	Company        PayloadCompany         `json:"company"`
	Worker         PayloadWorker          `json:"worker"`
	Certifications []PayloadCertification `json:"certifications"`
	FailureReasons []FailureReason        `json:"failureReasons"`
}

// PayloadCompany is the company block shown to inspectors.
type PayloadCompany struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PayloadWorker is the worker summary. Contact details are deliberately absent.
type PayloadWorker struct {
	ID        string                  `json:"id"`
	FirstName string                  `json:"firstName"`
	LastName  string                  `json:"lastName"`
	JobTitle  *string                 `json:"jobTitle,omitempty"`
	Active    bool                    `json:"active"`
	Status    models.ComplianceStatus `json:"status"`
}

// PayloadCertification is one certification with its derived status.
type PayloadCertification struct {
	ID           string                     `json:"id"`
	Category     string                     `json:"category"`
	Name         string                     `json:"name"`
	Required     bool                       `json:"required"`
	IssueDate    *string                    `json:"issueDate,omitempty"`
	ExpiresAt    *string                    `json:"expiresAt,omitempty"`
	Status       models.CertificationStatus `json:"status"`
	ProofDigests []string                   `json:"proofDigests"`
}

// PayloadInput is everything BuildPayload needs.
type PayloadInput struct {
	Company        models.Company
	Worker         models.Worker
	Certifications []EvaluatedCertification
	FailureReasons []FailureReason
	Status         models.ComplianceStatus
	GeneratedAt    time.Time
}

// BuildPayload assembles the canonical payload. Certifications are ordered by
// ID and proof digests sorted so equal inputs always encode identically.
func BuildPayload(in PayloadInput) Payload {
	certs := make([]PayloadCertification, 0, len(in.Certifications))
	for _, c := range in.Certifications {
		cert := c.Certification
		digests := make([]string, 0, len(c.Proofs))
		for _, proof := range c.Proofs {
			digests = append(digests, ProofDigest(proof))
		}
		sort.Strings(digests)
		certs = append(certs, PayloadCertification{
			ID:           cert.ID,
			Category:     cert.Category(),
			Name:         cert.Label(),
			Required:     cert.Required,
			IssueDate:    formatDate(cert.IssueDate),
			ExpiresAt:    formatDate(cert.ExpiresAt),
			Status:       c.Status,
			ProofDigests: digests,
		})
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].ID < certs[j].ID })

	reasons := in.FailureReasons
	if reasons == nil {
		reasons = []FailureReason{}
	}

	return Payload{
		SchemaVersion: PayloadSchemaVersion,
		GeneratedAt:   in.GeneratedAt.UTC().Truncate(time.Microsecond),
		Company:       PayloadCompany{ID: in.Company.ID, Name: in.Company.Name},
		Worker: PayloadWorker{
			ID:        in.Worker.ID,
			FirstName: in.Worker.FirstName,
			LastName:  in.Worker.LastName,
			JobTitle:  in.Worker.JobTitle,
			Active:    in.Worker.Active,
			Status:    in.Status,
		},
		Certifications: certs,
		FailureReasons: reasons,
	}
}

// ProofDigest returns the stored artifact digest, or a reference digest over
// the artifact identity when the upload pipeline recorded none.
func ProofDigest(proof models.ProofArtifact) string {
	if proof.Digest != "" {
		return proof.Digest
	}
	sum := sha256.Sum256([]byte(proof.ID + ":" + proof.FileKey))
	return "ref:" + hex.EncodeToString(sum[:])
}

// Seal encodes the payload canonically and returns the bytes with their hash.
// The stored bytes are the hash input, so they must be persisted verbatim.
func Seal(p Payload) ([]byte, string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, "", fmt.Errorf("encode snapshot payload: %w", err)
	}
	raw := bytes.TrimRight(buf.Bytes(), "\n")
	return raw, Hash(raw), nil
}

// Hash is the hex sha256 digest of the payload bytes.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// VerifyHash reports whether raw still matches the sealed hash.
func VerifyHash(raw []byte, hash string) bool {
	return Hash(raw) == hash
}

// DecodePayload parses stored payload bytes, rejecting unknown schema versions.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode snapshot payload: %w", err)
	}
	if p.SchemaVersion != PayloadSchemaVersion {
		return Payload{}, fmt.Errorf("unsupported snapshot schema version %d", p.SchemaVersion)
	}
	return p, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}
