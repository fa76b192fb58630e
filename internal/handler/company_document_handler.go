package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/service"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/response"
)

type companyDocumentService interface {
	Register(ctx context.Context, actor service.Actor, req dto.RegisterCompanyDocumentRequest) (*models.CompanyDocument, error)
	List(ctx context.Context, actor service.Actor) ([]models.CompanyDocument, error)
}

// CompanyDocumentHandler manages company-level compliance documents.
type CompanyDocumentHandler struct {
	service companyDocumentService
}

// NewCompanyDocumentHandler constructs the handler.
func NewCompanyDocumentHandler(service companyDocumentService) *CompanyDocumentHandler {
	return &CompanyDocumentHandler{service: service}
}

// Register godoc
// @Summary Register a company compliance document
// @Tags Company Documents
// @Accept json
// @Produce json
// @Param payload body dto.RegisterCompanyDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /company-documents [post]
func (h *CompanyDocumentHandler) Register(c *gin.Context) {
	var req dto.RegisterCompanyDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	doc, err := h.service.Register(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List company compliance documents
// @Tags Company Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /company-documents [get]
func (h *CompanyDocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}
