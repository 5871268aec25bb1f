package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterIdentityIdempotent: repeated first-contact registration returns
// the same row and consumes the local id sequence exactly once.
func TestRegisterIdentityIdempotent(t *testing.T) {
	store := NewFake()

	first, err := store.SaveUserIfNotExists(42)
	require.NoError(t, err)
	again, err := store.SaveUserIfNotExists(42)
	require.NoError(t, err)

	assert.Equal(t, first.LocalID, again.LocalID)

	other, err := store.SaveUserIfNotExists(43)
	require.NoError(t, err)
	assert.Equal(t, first.LocalID+1, other.LocalID, "sequence advances once per identity")
}
