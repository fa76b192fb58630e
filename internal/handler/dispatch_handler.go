package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/service"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/response"
)

type dispatchService interface {
	AssignWorker(ctx context.Context, workOrderID string, actor service.Actor, req dto.AssignWorkerRequest) (*dto.AssignmentResponse, error)
	UnassignWorker(ctx context.Context, assignmentID string, actor service.Actor) (*dto.AssignmentResponse, error)
	ListAssignments(ctx context.Context, workOrderID string, actor service.Actor) ([]dto.AssignmentResponse, error)
}

// DispatchHandler exposes the compliance-gated assignment endpoints.
type DispatchHandler struct {
	service dispatchService
}

// NewDispatchHandler constructs the handler.
func NewDispatchHandler(service dispatchService) *DispatchHandler {
	return &DispatchHandler{service: service}
}

// Assign godoc
// @Summary Assign a worker to a work order
// @Description Blocked workers return COMPLIANCE_BLOCKED with the gap summary. Set forceOverride with a reason to proceed anyway.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.AssignWorkerRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /work-orders/{id}/assignments [post]
func (h *DispatchHandler) Assign(c *gin.Context) {
	var req dto.AssignWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.AssignWorker(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List a work order's assignments, including removed ones
// @Tags Dispatch
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/assignments [get]
func (h *DispatchHandler) List(c *gin.Context) {
	items, err := h.service.ListAssignments(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Unassign godoc
// @Summary Remove a worker from a work order
// @Tags Dispatch
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *DispatchHandler) Unassign(c *gin.Context) {
	result, err := h.service.UnassignWorker(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
