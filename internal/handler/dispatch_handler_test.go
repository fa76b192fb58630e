package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/service"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

type dispatchServiceMock struct {
	lastReq     dto.AssignWorkerRequest
	lastOrderID string
	lastActor   service.Actor
	assignErr   error
}

func (m *dispatchServiceMock) AssignWorker(ctx context.Context, workOrderID string, actor service.Actor, req dto.AssignWorkerRequest) (*dto.AssignmentResponse, error) {
	m.lastReq = req
	m.lastOrderID = workOrderID
	m.lastActor = actor
	if m.assignErr != nil {
		return nil, m.assignErr
	}
	resp := &dto.AssignmentResponse{
		Assignment: models.Assignment{ID: "asg-1", WorkOrderID: workOrderID, WorkerID: req.WorkerID, ComplianceStatus: models.ComplianceStatusPass},
		GapSummary: compliance.GapSummary{Missing: []compliance.GapItem{}, Expiring: []compliance.GapItem{}},
	}
	if req.ForceOverride && req.OverrideReason != nil {
		resp.OverrideAcknowledged = true
		resp.OverrideReason = req.OverrideReason
	}
	return resp, nil
}

func (m *dispatchServiceMock) UnassignWorker(ctx context.Context, assignmentID string, actor service.Actor) (*dto.AssignmentResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrConflict, "worker is already unassigned")
}

func (m *dispatchServiceMock) ListAssignments(ctx context.Context, workOrderID string, actor service.Actor) ([]dto.AssignmentResponse, error) {
	return []dto.AssignmentResponse{}, nil
}

func TestDispatchHandlerAssignInvalidBody(t *testing.T) {
	handler := NewDispatchHandler(&dispatchServiceMock{})
	c, w := newTestContext(http.MethodPost, "/work-orders/wo-1/assignments", []byte(`{"workerId":`), dispatcherClaims)
	c.Params = gin.Params{{Key: "id", Value: "wo-1"}}

	handler.Assign(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchHandlerAssignOverridePassesReasonVerbatim(t *testing.T) {
	svc := &dispatchServiceMock{}
	handler := NewDispatchHandler(svc)
	reason := "  Certification renewal in progress, client notified "
	body, _ := json.Marshal(dto.AssignWorkerRequest{WorkerID: "w-1", ForceOverride: true, OverrideReason: &reason})
	c, w := newTestContext(http.MethodPost, "/work-orders/wo-1/assignments", body, dispatcherClaims)
	c.Params = gin.Params{{Key: "id", Value: "wo-1"}}

	handler.Assign(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "wo-1", svc.lastOrderID)
	assert.Equal(t, "c-1", svc.lastActor.CompanyID)
	require.NotNil(t, svc.lastReq.OverrideReason)
	assert.Equal(t, reason, *svc.lastReq.OverrideReason)

	var assignment dto.AssignmentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &assignment))
	assert.True(t, assignment.OverrideAcknowledged)
	assert.Equal(t, reason, *assignment.OverrideReason)
}

func TestDispatchHandlerAssignBlockedCarriesGaps(t *testing.T) {
	details := dto.ComplianceBlockedDetails{
		WorkerID: "w-1",
		Status:   models.ComplianceStatusFail,
		Missing:  []compliance.GapItem{},
		Expiring: []compliance.GapItem{{CertificationID: "osha-30", Label: "OSHA 30", Required: true, Expired: true}},
	}
	handler := NewDispatchHandler(&dispatchServiceMock{assignErr: appErrors.WithDetails(appErrors.ErrComplianceBlocked, details)})
	body, _ := json.Marshal(dto.AssignWorkerRequest{WorkerID: "w-1"})
	c, w := newTestContext(http.MethodPost, "/work-orders/wo-1/assignments", body, dispatcherClaims)
	c.Params = gin.Params{{Key: "id", Value: "wo-1"}}

	handler.Assign(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "COMPLIANCE_BLOCKED", env.Error.Code)

	var got dto.ComplianceBlockedDetails
	require.NoError(t, json.Unmarshal(env.Error.Details, &got))
	require.Len(t, got.Expiring, 1)
	assert.Equal(t, "osha-30", got.Expiring[0].CertificationID)
	assert.True(t, got.Expiring[0].Expired)
}

func TestDispatchHandlerUnassignConflict(t *testing.T) {
	handler := NewDispatchHandler(&dispatchServiceMock{})
	c, w := newTestContext(http.MethodDelete, "/assignments/asg-1", nil, dispatcherClaims)
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}

	handler.Unassign(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, w).Error.Code)
}
