package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NotFound("approve", "approval request", "abc")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestExecutionFailed_WrapsCause(t *testing.T) {
	cause := Validation("subdivide", "children area exceeds parent")
	err := ExecutionFailed("dispatch", cause)

	assert.Equal(t, KindExecutionFailed, KindOf(err))
	assert.True(t, errors.Is(err, ErrValidation), "cause kind stays reachable")
	assert.Contains(t, err.Error(), "children area exceeds parent")

	// already an execution failure: no double wrapping
	again := ExecutionFailed("approve", err)
	assert.Same(t, err, again)
}

func TestMissingFields_Details(t *testing.T) {
	err := MissingFields("submit", []string{"Parcel Documents", "Owner Information"})

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, []string{"Parcel Documents", "Owner Information"}, err.Details)
	assert.Equal(t, "submit: validation: incomplete submission [Parcel Documents, Owner Information]", err.Error())
}
