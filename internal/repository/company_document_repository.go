package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

// ListCompanyDocumentCategories returns the distinct categories on file for a company.
func (q *Queries) ListCompanyDocumentCategories(ctx context.Context, companyID string) ([]models.DocumentCategory, error) {
	const query = `SELECT DISTINCT category FROM company_documents WHERE company_id = $1 ORDER BY category`
	var categories []models.DocumentCategory
	if err := sqlx.SelectContext(ctx, q.db, &categories, query, companyID); err != nil {
		return nil, fmt.Errorf("list company document categories: %w", err)
	}
	return categories, nil
}

// ListCompanyDocuments returns a company's documents newest first.
func (q *Queries) ListCompanyDocuments(ctx context.Context, companyID string) ([]models.CompanyDocument, error) {
	const query = `SELECT id, company_id, category, title, file_key, expires_at, uploaded_by, created_at
	FROM company_documents WHERE company_id = $1 ORDER BY created_at DESC, id`
	var docs []models.CompanyDocument
	if err := sqlx.SelectContext(ctx, q.db, &docs, query, companyID); err != nil {
		return nil, fmt.Errorf("list company documents: %w", err)
	}
	return docs, nil
}

// InsertCompanyDocument stores a new company document.
func (q *Queries) InsertCompanyDocument(ctx context.Context, doc *models.CompanyDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO company_documents (id, company_id, category, title, file_key, expires_at, uploaded_by, created_at)
	VALUES (:id, :company_id, :category, :title, :file_key, :expires_at, :uploaded_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, doc); err != nil {
		return fmt.Errorf("insert company document: %w", err)
	}
	return nil
}
