package main

import (
	"context"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage/storagetest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPairStatus(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()

	conn, err := setPairStatus(ctx, store, "alice", "bob", models.ConnectionAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionAccepted, conn.Status)

	blocked, err := setPairStatus(ctx, store, "bob", "alice", models.ConnectionBlocked)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, blocked.ID, "the pair keeps one row in either order")

	isBlocked, err := store.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, isBlocked)

	_, err = setPairStatus(ctx, store, "alice", "bob", models.ConnectionRemoved)
	require.NoError(t, err)
	isBlocked, err = store.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, isBlocked)

	_, err = setPairStatus(ctx, store, "alice", "alice", models.ConnectionAccepted)
	assert.Error(t, err)
}

func TestSaveUser(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()

	require.NoError(t, saveUser(ctx, store, "u1", "first"))
	require.NoError(t, saveUser(ctx, store, "u1", "renamed"))

	u, ok := store.User("u1")
	require.True(t, ok)
	assert.Equal(t, "renamed", u.Username)
	assert.Equal(t, "first", u.DisplayName)
}
