package substrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/config"
	"github.com/hartonomous/substrate/internal/objectstore"
)

func TestOpenObjectStoreDefaultsToMemory(t *testing.T) {
	store, err := openObjectStore(context.Background(), config.ObjectStoreConfig{})
	require.NoError(t, err)
	_, ok := store.(*objectstore.MemoryStore)
	assert.True(t, ok)
}

func TestOpenObjectStoreRejectsUnknownBackend(t *testing.T) {
	_, err := openObjectStore(context.Background(), config.ObjectStoreConfig{Backend: "nfs"})
	assert.Error(t, err)
}
