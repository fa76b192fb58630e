package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/service"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/response"
)

type snapshotService interface {
	CreateSnapshot(ctx context.Context, workerID string, actor service.Actor, req dto.CreateSnapshotRequest) (*dto.CreateSnapshotResponse, error)
	GetSnapshot(ctx context.Context, id string, actor service.Actor) (*dto.SnapshotResponse, error)
	ListSnapshots(ctx context.Context, workerID string, actor service.Actor, query dto.ListSnapshotsQuery) ([]dto.SnapshotResponse, int, error)
	RenderCertificate(ctx context.Context, id string, actor service.Actor) ([]byte, string, error)
}

// SnapshotHandler manages sealed compliance snapshots.
type SnapshotHandler struct {
	service snapshotService
}

// NewSnapshotHandler constructs the handler.
func NewSnapshotHandler(service snapshotService) *SnapshotHandler {
	return &SnapshotHandler{service: service}
}

// Create godoc
// @Summary Seal a compliance snapshot for a worker
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param id path string true "Worker ID"
// @Param payload body dto.CreateSnapshotRequest false "Snapshot source"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workers/{id}/snapshots [post]
func (h *SnapshotHandler) Create(c *gin.Context) {
	var req dto.CreateSnapshotRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid snapshot payload"))
			return
		}
	}
	result, err := h.service.CreateSnapshot(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List a worker's snapshots newest first
// @Tags Snapshots
// @Produce json
// @Param id path string true "Worker ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /workers/{id}/snapshots [get]
func (h *SnapshotHandler) List(c *gin.Context) {
	var query dto.ListSnapshotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, total, err := h.service.ListSnapshots(c.Request.Context(), c.Param("id"), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total})
}

// Get godoc
// @Summary Get a snapshot by id
// @Tags Snapshots
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /snapshots/{id} [get]
func (h *SnapshotHandler) Get(c *gin.Context) {
	snapshot, err := h.service.GetSnapshot(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Certificate godoc
// @Summary Download the snapshot certificate PDF
// @Tags Snapshots
// @Produce application/pdf
// @Param id path string true "Snapshot ID"
// @Success 200 {file} file
// @Failure 409 {object} response.Envelope
// @Router /snapshots/{id}/certificate [get]
func (h *SnapshotHandler) Certificate(c *gin.Context) {
	body, filename, err := h.service.RenderCertificate(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
