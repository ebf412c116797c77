package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opt, err := Options(" localhost:6379 ")
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:6379"}, opt.InitAddress)

	opt, err = Options("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	require.Equal(t, []string{"cache.internal:6380"}, opt.InitAddress)
	require.Equal(t, "secret", opt.Password)
	require.Equal(t, 2, opt.SelectDB)

	_, err = Options("redis://[bad")
	require.Error(t, err)
}
