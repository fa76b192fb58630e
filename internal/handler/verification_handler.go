package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/middleware"
	"github.com/noah-isme/compliance-api/internal/service"
	"github.com/noah-isme/compliance-api/pkg/response"
)

type verificationService interface {
	ResolveToken(ctx context.Context, token string) (*dto.VerificationResponse, error)
	ProvisionToken(ctx context.Context, workerID string, actor service.Actor) (*dto.ProvisionTokenResponse, error)
}

// VerificationHandler serves the public inspector lookup and token provisioning.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(service verificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// Resolve godoc
// @Summary Resolve a verification token to the worker's current snapshot
// @Description Public endpoint scanned by inspectors. No authentication.
// @Tags Verification
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verify/{token} [get]
func (h *VerificationHandler) Resolve(c *gin.Context) {
	result, err := h.service.ResolveToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Provision godoc
// @Summary Provision a worker's verification token
// @Tags Verification
// @Produce json
// @Param id path string true "Worker ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workers/{id}/verification-token [post]
func (h *VerificationHandler) Provision(c *gin.Context) {
	result, err := h.service.ProvisionToken(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
