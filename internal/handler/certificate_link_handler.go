package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/service"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/response"
	"github.com/noah-isme/compliance-api/pkg/storage"
)

type certificateLinkParser interface {
	Parse(token string) (string, string, time.Time, error)
}

type certificateRenderer interface {
	RenderCertificate(ctx context.Context, id string, actor service.Actor) ([]byte, string, error)
}

// CertificateLinkHandler serves certificate PDFs behind signed, expiring links
// sent with assignment notifications.
type CertificateLinkHandler struct {
	links    certificateLinkParser
	renderer certificateRenderer
}

// NewCertificateLinkHandler constructs the handler.
func NewCertificateLinkHandler(links certificateLinkParser, renderer certificateRenderer) *CertificateLinkHandler {
	return &CertificateLinkHandler{links: links, renderer: renderer}
}

// Download godoc
// @Summary Download a snapshot certificate through a signed link
// @Tags Verification
// @Produce application/pdf
// @Param token path string true "Signed link token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /certificates/{token} [get]
func (h *CertificateLinkHandler) Download(c *gin.Context) {
	snapshotID, filename, _, err := h.links.Parse(c.Param("token"))
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			response.Error(c, appErrors.ErrLinkExpired)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "certificate link not found"))
		return
	}

	body, _, err := h.renderer.RenderCertificate(c.Request.Context(), snapshotID, service.Actor{})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
