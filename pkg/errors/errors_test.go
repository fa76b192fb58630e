package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestCloneMatchesTemplate(t *testing.T) {
	clone := Clone(ErrWorkerNotFound, "worker w-1 not found")
	assert.True(t, errors.Is(clone, ErrWorkerNotFound))
	assert.False(t, errors.Is(clone, ErrNotFound))
	assert.Equal(t, "worker w-1 not found", clone.Message)
}

func TestWithDetailsKeepsTemplateUntouched(t *testing.T) {
	detailed := WithDetails(ErrComplianceBlocked, map[string]int{"missing": 2})
	require.NotNil(t, detailed.Details)
	assert.Nil(t, ErrComplianceBlocked.Details)
	assert.True(t, errors.Is(fmt.Errorf("assign: %w", detailed), ErrComplianceBlocked))
}
