package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/compliance-api/internal/middleware"
	"github.com/noah-isme/compliance-api/internal/models"
)

// Public path prefixes served without authentication.
const (
	VerifyPathPrefix      = "/verify"
	CertificatePathPrefix = "/certificates"
)

// Handlers groups every HTTP handler the router mounts. CertificateLink is
// optional and only mounted when link signing is configured.
type Handlers struct {
	Compliance      *ComplianceHandler
	Snapshot        *SnapshotHandler
	Verification    *VerificationHandler
	Dispatch        *DispatchHandler
	CompanyDocument *CompanyDocumentHandler
	CertificateLink *CertificateLinkHandler
	Metrics         *MetricsHandler
}

// RegisterRoutes mounts the public endpoints at the root and the
// authenticated API under apiPrefix.
func RegisterRoutes(r *gin.Engine, apiPrefix string, validator middleware.TokenValidator, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	r.GET(VerifyPathPrefix+"/:token", middleware.WithResponseMeta(), h.Verification.Resolve)
	if h.CertificateLink != nil {
		r.GET(CertificatePathPrefix+"/:token", h.CertificateLink.Download)
	}

	api := r.Group(apiPrefix)
	api.Use(middleware.JWT(validator))

	managers := middleware.RequireRoles(models.ComplianceManagers...)
	dispatchers := middleware.RequireRoles(models.Dispatchers...)

	workers := api.Group("/workers/:id")
	workers.GET("/compliance", dispatchers, h.Compliance.Summary)
	workers.POST("/compliance/refresh", managers, h.Compliance.Refresh)
	workers.POST("/snapshots", managers, h.Snapshot.Create)
	workers.GET("/snapshots", managers, h.Snapshot.List)
	workers.POST("/verification-token", managers, h.Verification.Provision)

	api.GET("/snapshots/:id", dispatchers, h.Snapshot.Get)
	api.GET("/snapshots/:id/certificate", dispatchers, h.Snapshot.Certificate)

	api.GET("/compliance/expiring", managers, h.Compliance.Expiring)
	api.GET("/audit-activities", managers, h.Compliance.AuditActivities)

	api.POST("/company-documents", managers, h.CompanyDocument.Register)
	api.GET("/company-documents", managers, h.CompanyDocument.List)

	api.POST("/work-orders/:id/assignments", dispatchers, h.Dispatch.Assign)
	api.GET("/work-orders/:id/assignments", dispatchers, h.Dispatch.List)
	api.DELETE("/assignments/:id", dispatchers, h.Dispatch.Unassign)
}
