package memory

import (
	"testing"

	"research-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRepositorySaveAndGet(t *testing.T) {
	repo := NewContextRepository()

	sc := &store.SessionContext{UserID: "user-1"}
	repo.Save(sc)

	got, found := repo.Get("user-1")
	require.True(t, found)
	assert.Same(t, sc, got)

	_, found = repo.Get("user-2")
	assert.False(t, found)
}

func TestContextRepositoryDelete(t *testing.T) {
	repo := NewContextRepository()

	repo.Save(&store.SessionContext{UserID: "user-1"})
	repo.Delete("user-1")

	_, found := repo.Get("user-1")
	assert.False(t, found)
}

func TestContextRepositoryFlush(t *testing.T) {
	repo := NewContextRepository()

	repo.Save(&store.SessionContext{UserID: "user-1"})
	repo.Save(&store.SessionContext{UserID: "user-2"})
	repo.Flush()

	_, found := repo.Get("user-1")
	assert.False(t, found)
	_, found = repo.Get("user-2")
	assert.False(t, found)
}
