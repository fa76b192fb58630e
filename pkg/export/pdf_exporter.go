package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate is the printable view of one sealed compliance snapshot.
type Certificate struct {
	CompanyName    string
	WorkerName     string
	JobTitle       string
	Status         string
	SnapshotID     string
	SnapshotHash   string
	SealedAt       time.Time
	VerifyURL      string
	Certifications Dataset
	FailureReasons []string
}

// PDFExporter renders compliance certificates and tabular datasets.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderCertificate lays out the certificate header, certification table and
// failure list. Every value printed comes from the caller's sealed record.
func (e *PDFExporter) RenderCertificate(cert Certificate) ([]byte, error) {
	if cert.SnapshotHash == "" {
		return nil, fmt.Errorf("certificate requires a snapshot hash")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "COMPLIANCE VERIFICATION RECORD", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	field := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
	}
	field("Company", cert.CompanyName)
	field("Worker", cert.WorkerName)
	field("Job title", cert.JobTitle)
	field("Status", strings.ToUpper(cert.Status))
	field("Sealed at", cert.SealedAt.UTC().Format(time.RFC3339))
	field("Snapshot", cert.SnapshotID)
	field("SHA-256", cert.SnapshotHash)
	field("Verify at", cert.VerifyURL)
	pdf.Ln(4)

	if len(cert.Certifications.Headers) > 0 {
		writeTable(pdf, cert.Certifications)
		pdf.Ln(4)
	}

	if len(cert.FailureReasons) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "Outstanding items", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, reason := range cert.FailureReasons {
			pdf.MultiCell(0, 6, "- "+reason, "", "", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}
	writeTable(pdf, data)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(pdf *gofpdf.Fpdf, data Dataset) {
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}
