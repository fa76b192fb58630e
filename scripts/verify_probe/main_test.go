package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
)

func TestProbeTargetReportsMismatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify/tok-w1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"verification token not found","status":404}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": dto.VerificationResponse{SnapshotID: "snap-2", Status: models.ComplianceStatusFail, HashValid: true},
		})
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}

	ok := probeTarget(client, srv.URL+"/verify", target{Token: "tok-w1", ExpectSnapshot: "snap-2", ExpectStatus: models.ComplianceStatusFail})
	require.NoError(t, ok.Error)
	assert.False(t, ok.failed())

	drift := probeTarget(client, srv.URL+"/verify/", target{Token: "tok-w1", ExpectStatus: models.ComplianceStatusPass})
	require.NoError(t, drift.Error)
	assert.Equal(t, []string{"status FAIL, expected PASS"}, drift.Mismatches)

	missing := probeTarget(client, srv.URL+"/verify", target{Token: "tok-unknown"})
	require.Error(t, missing.Error)
	assert.Contains(t, missing.Error.Error(), "NOT_FOUND")
	assert.Equal(t, http.StatusNotFound, missing.HTTPStatus)
}

func TestCompareFlagsTamperedSnapshot(t *testing.T) {
	got := compare(target{}, &dto.VerificationResponse{HashValid: false})
	assert.Equal(t, []string{"snapshot hash does not match payload"}, got)
}
