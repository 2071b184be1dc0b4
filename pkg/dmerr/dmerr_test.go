package dmerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	v := Validationf("text required")
	f := Forbiddenf("user %s is not a participant", "carol")
	n := NotFoundf("thread %d", 42)

	require.True(t, IsValidation(v))
	require.False(t, IsForbidden(v))
	require.True(t, IsForbidden(f))
	require.True(t, IsNotFound(n))
	require.False(t, IsNotFound(errors.New("disk on fire")))
}

func TestWrappingSurvivesFurtherWraps(t *testing.T) {
	err := fmt.Errorf("handling request: %w", NotFoundf("message %d", 7))
	require.True(t, IsNotFound(err))
	require.Contains(t, err.Error(), "message 7")
}
