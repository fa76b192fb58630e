package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Worker", "Certification", "Expires"}}
	data.Append("Dana Reyes", "First Aid, Level 2", "2024-07-01")
	data.Append("Sam Ortiz")

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Worker,Certification,Expires", lines[0])
	assert.Equal(t, `Dana Reyes,"First Aid, Level 2",2024-07-01`, lines[1])
	assert.Equal(t, "Sam Ortiz,,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRenderCertificate(t *testing.T) {
	certs := Dataset{Headers: []string{"Certification", "Status"}}
	certs.Append("OSHA 10", "PASS")

	out, err := NewPDFExporter().RenderCertificate(Certificate{
		CompanyName:    "Acme Field Services",
		WorkerName:     "Dana Reyes",
		Status:         "PASS",
		SnapshotID:     "snap-1",
		SnapshotHash:   "abc123",
		SealedAt:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Certifications: certs,
		FailureReasons: []string{"Company Business license not on file"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRenderCertificateRequiresHash(t *testing.T) {
	_, err := NewPDFExporter().RenderCertificate(Certificate{WorkerName: "Dana"})
	assert.Error(t, err)
}
