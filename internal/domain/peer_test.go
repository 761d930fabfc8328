package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPeerDetails(t *testing.T) {
	d, err := NewPeerDetails("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", d.Name)
	assert.False(t, d.IsAdmin)

	d, err = NewPeerDetails("")
	require.NoError(t, err)
	assert.Equal(t, "unknown", d.Name)

	_, err = NewPeerDetails(strings.Repeat("x", MaxDisplayNameLen+1))
	assert.ErrorIs(t, err, ErrNameTooLong)
}
