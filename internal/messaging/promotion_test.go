package messaging_test

import (
	"context"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/messaging"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage/storagetest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingStore blocks the pair right before the first status transition,
// as a concurrent block request would.
type blockingStore struct {
	*storagetest.Store
}

func (s blockingStore) TransitionConnectionStatus(ctx context.Context, id uint, from, to models.ConnectionStatus) (int64, error) {
	if err := s.Store.UpdateConnectionStatus(ctx, id, models.ConnectionBlocked); err != nil {
		return 0, err
	}
	return s.Store.TransitionConnectionStatus(ctx, id, from, to)
}

func TestCreateMessage_ConcurrentBlockIsKept(t *testing.T) {
	store := storagetest.New()
	store.AddConnection(4, "A", "B", models.ConnectionPending)
	conv, err := store.CreateConversation(ctx, []string{"A", "B"})
	require.NoError(t, err)

	svc := messaging.NewService(blockingStore{store}, nil)
	_, err = svc.CreateMessage(ctx, conv.ID, "A", messaging.CreateMessageInput{Content: "hey"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	blocked, err := store.IsBlocked(ctx, "A", "B")
	require.NoError(t, err)
	assert.True(t, blocked, "promotion must not overwrite the block")

	msgs, err := store.GetMessagesByConnection(ctx, 4, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCreateMessage_PromotesPendingPair(t *testing.T) {
	store := storagetest.New()
	store.AddConnection(4, "A", "B", models.ConnectionPending)
	conv, err := store.CreateConversation(ctx, []string{"A", "B"})
	require.NoError(t, err)

	msg, err := messaging.NewService(store, nil).CreateMessage(ctx, conv.ID, "B", messaging.CreateMessageInput{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, uint(4), msg.ConnectionID)

	conn, err := store.GetConnectionByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionAccepted, conn.Status)
}
