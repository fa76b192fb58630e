package compliance

import (
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
)

// DefaultExpiringWindow flags required certifications that lapse within 30 days.
const DefaultExpiringWindow = 30 * 24 * time.Hour

// GapItem is one required certification standing between a worker and a clean dispatch.
type GapItem struct {
	CertificationID string                     `json:"certificationId"`
	Label           string                     `json:"label"`
	Required        bool                       `json:"required"`
	Status          models.CertificationStatus `json:"status"`
	ExpiresAt       *time.Time                 `json:"expiresAt,omitempty"`
	Expired         bool                       `json:"expired"`
}

// GapSummary lists the required certifications blocking a clean assignment:
// missing (no valid proof) and expiring (already lapsed). Advisory holds
// certifications that are still valid but lapse inside the window; they never block.
type GapSummary struct {
	Missing  []GapItem `json:"missing"`
	Expiring []GapItem `json:"expiring"`
	Advisory []GapItem `json:"advisory"`
}

// ComputeGaps builds the live gap summary for dispatch decisions.
// Optional certifications never produce gaps.
func ComputeGaps(certs []EvaluatedCertification, now time.Time, window time.Duration) GapSummary {
	if window <= 0 {
		window = DefaultExpiringWindow
	}
	summary := GapSummary{Missing: []GapItem{}, Expiring: []GapItem{}, Advisory: []GapItem{}}
	horizon := now.Add(window)

	for _, c := range certs {
		cert := c.Certification
		if !cert.Required {
			continue
		}
		item := GapItem{
			CertificationID: cert.ID,
			Label:           cert.Label(),
			Required:        true,
			Status:          c.Status,
			ExpiresAt:       cert.ExpiresAt,
		}
		switch c.Status {
		case models.CertificationStatusIncomplete:
			summary.Missing = append(summary.Missing, item)
		case models.CertificationStatusExpired:
			item.Expired = true
			summary.Expiring = append(summary.Expiring, item)
		case models.CertificationStatusPass:
			if cert.ExpiresAt != nil && !cert.ExpiresAt.After(horizon) {
				summary.Advisory = append(summary.Advisory, item)
			}
		}
	}
	return summary
}

// Blocking reports whether any gap prevents a clean assignment.
func (g GapSummary) Blocking() bool {
	return len(g.Missing) > 0 || len(g.Expiring) > 0
}

// Empty reports whether the summary lists nothing at all, advisory items included.
func (g GapSummary) Empty() bool {
	return len(g.Missing) == 0 && len(g.Expiring) == 0 && len(g.Advisory) == 0
}

// Labels flattens the blocking labels, missing before expiring.
func (g GapSummary) Labels() []string {
	labels := make([]string, 0, len(g.Missing)+len(g.Expiring))
	for _, item := range g.Missing {
		labels = append(labels, item.Label)
	}
	for _, item := range g.Expiring {
		labels = append(labels, item.Label)
	}
	return labels
}
