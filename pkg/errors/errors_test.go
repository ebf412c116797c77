package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOfWalksTheChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("save episode: %w", Wrap("store_error", "write failed", cause))

	require.Equal(t, "store_error", CodeOf(err))
	require.True(t, IsCode(err, "store_error"))
	require.False(t, IsCode(err, "not_found"))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "save episode: write failed: connection refused", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("validation_error", "temperature %.1f out of range", 120.0)
	require.Equal(t, "temperature 120.0 out of range", err.Error())
	require.Equal(t, "validation_error", CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	require.Empty(t, CodeOf(errors.New("boom")))
	require.Empty(t, CodeOf(nil))
	require.False(t, IsCode(errors.New("boom"), ""))
}
