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

type complianceService interface {
	RefreshWorkerStatus(ctx context.Context, workerID string, actor service.Actor) (*dto.RefreshResult, error)
	GetWorkerComplianceSummary(ctx context.Context, workerID string, actor service.Actor) (*dto.WorkerComplianceSummary, error)
	ListExpiringCertifications(ctx context.Context, actor service.Actor, query dto.ExpiringCertificationsQuery) ([]dto.ExpiringCertification, error)
	ExportExpiringCertifications(ctx context.Context, actor service.Actor, query dto.ExpiringCertificationsQuery) ([]byte, string, string, error)
	ListAuditActivities(ctx context.Context, actor service.Actor, query dto.AuditActivityQuery) ([]models.AuditActivity, error)
}

// ComplianceHandler exposes worker status, expiring certifications and the audit log.
type ComplianceHandler struct {
	service complianceService
}

// NewComplianceHandler builds a new handler.
func NewComplianceHandler(service complianceService) *ComplianceHandler {
	return &ComplianceHandler{service: service}
}

// Refresh godoc
// @Summary Recompute a worker's certification and compliance status
// @Tags Compliance
// @Produce json
// @Param id path string true "Worker ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workers/{id}/compliance/refresh [post]
func (h *ComplianceHandler) Refresh(c *gin.Context) {
	result, err := h.service.RefreshWorkerStatus(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Summary godoc
// @Summary Worker compliance summary for dispatch
// @Tags Compliance
// @Produce json
// @Param id path string true "Worker ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workers/{id}/compliance [get]
func (h *ComplianceHandler) Summary(c *gin.Context) {
	summary, err := h.service.GetWorkerComplianceSummary(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Expiring godoc
// @Summary List certifications expiring within a window
// @Tags Compliance
// @Produce json,text/csv,application/pdf
// @Param windowDays query int false "Window in days"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /compliance/expiring [get]
func (h *ComplianceHandler) Expiring(c *gin.Context) {
	var query dto.ExpiringCertificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	if query.Format == "csv" || query.Format == "pdf" {
		body, filename, contentType, err := h.service.ExportExpiringCertifications(c.Request.Context(), actorFromContext(c), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, filename, contentType, body)
		return
	}

	rows, err := h.service.ListExpiringCertifications(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// AuditActivities godoc
// @Summary List compliance audit activity
// @Tags Compliance
// @Produce json
// @Param workerId query string false "Filter by worker"
// @Param type query string false "Filter by activity type"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /audit-activities [get]
func (h *ComplianceHandler) AuditActivities(c *gin.Context) {
	var query dto.AuditActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.ListAuditActivities(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
