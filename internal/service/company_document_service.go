package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

// CompanyDocumentService registers company-level compliance documents.
type CompanyDocumentService struct {
	store     complianceStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCompanyDocumentService constructs the service.
func NewCompanyDocumentService(store complianceStore, validate *validator.Validate, logger *zap.Logger) *CompanyDocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CompanyDocumentService{
		store:     store,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register stores a document for the actor's company. Unknown categories are rejected.
func (s *CompanyDocumentService) Register(ctx context.Context, actor Actor, req dto.RegisterCompanyDocumentRequest) (*models.CompanyDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if actor.CompanyID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "company scope required")
	}
	category, ok := models.ParseDocumentCategory(req.Category)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCategory, "unknown document category "+strings.TrimSpace(req.Category))
	}

	now := s.now()
	doc := &models.CompanyDocument{
		CompanyID:  actor.CompanyID,
		Category:   category,
		Title:      strings.TrimSpace(req.Title),
		FileKey:    strings.TrimSpace(req.FileKey),
		ExpiresAt:  req.ExpiresAt,
		UploadedBy: actorOrSystem(actor),
		CreatedAt:  now,
	}
	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		if err := q.InsertCompanyDocument(ctx, doc); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store company document")
		}
		return appendAudit(ctx, q, auditEntry{
			companyID: actor.CompanyID,
			actorID:   doc.UploadedBy,
			activity:  models.ActivityCompanyDocumentAdded,
			metadata: map[string]interface{}{
				"documentId": doc.ID,
				"category":   doc.Category,
				"title":      doc.Title,
			},
			at: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("company document registered",
		zap.String("company_id", doc.CompanyID),
		zap.String("document_id", doc.ID),
		zap.String("category", string(doc.Category)),
	)
	return doc, nil
}

// List returns the company's documents.
func (s *CompanyDocumentService) List(ctx context.Context, actor Actor) ([]models.CompanyDocument, error) {
	if actor.CompanyID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "company scope required")
	}
	var docs []models.CompanyDocument
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		docs, err = q.ListCompanyDocuments(ctx, actor.CompanyID)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list company documents")
	}
	if docs == nil {
		docs = []models.CompanyDocument{}
	}
	return docs, nil
}
