package models_test

import (
	"reflect"
	"sparkchat/backend/internal/models"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Username: "alice", DisplayName: "Alice"}
	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, Username: "bob"}

	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, existingID, user.ID, "BeforeCreate should preserve existing ID")
}

// TestUserStructTags guards the tags the store and the socket payloads rely on.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Equal(t, "id", idField.Tag.Get("json"))

	onlineField, found := userType.FieldByName("IsOnline")
	assert.True(t, found)
	assert.Equal(t, "isOnline", onlineField.Tag.Get("json"))
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, models.PairKey("a", "b"), models.PairKey("b", "a"))
	assert.Equal(t, "a:b", models.PairKey("b", "a"))
}

func TestParticipantKey(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantKey string
		wantSet []string
	}{
		{"sorted", []string{"b", "a"}, "a:b", []string{"a", "b"}},
		{"duplicates dropped", []string{"a", "b", "a"}, "a:b", []string{"a", "b"}},
		{"blanks dropped", []string{"a", " ", ""}, "a", []string{"a"}},
		{"three", []string{"c", "a", "b"}, "a:b:c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, set := models.ParticipantKey(tt.ids)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantSet, set)
		})
	}
}

func TestConnectionCounterpart(t *testing.T) {
	c := models.NewConnection("a", "b", models.ConnectionAccepted)

	assert.Equal(t, "b", c.Counterpart("a"))
	assert.Equal(t, "a", c.Counterpart("b"))
	assert.Equal(t, "", c.Counterpart("z"))
	assert.True(t, c.HasParticipant("a"))
	assert.False(t, c.HasParticipant(""))
	assert.Equal(t, "a:b", c.PairKey)
}

func TestMessageStatusOrdering(t *testing.T) {
	assert.Less(t, models.MessageSent.Rank(), models.MessageDelivered.Rank())
	assert.Less(t, models.MessageDelivered.Rank(), models.MessageRead.Rank())
	assert.False(t, models.MessageStatus("SEEN").Valid())
	assert.Equal(t, []models.MessageStatus{models.MessageSent, models.MessageDelivered}, models.MessageRead.Below())
	assert.Empty(t, models.MessageSent.Below())
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "conversation:7", models.ConnectionRoom(7))
	assert.Equal(t, "chat:7", models.ConversationRoom(7))
	assert.Equal(t, "user:u1", models.UserRoom("u1"))
}

// BenchmarkUserBeforeCreate measures UUID generation performance.
func BenchmarkUserBeforeCreate(b *testing.B) {
	user := &models.User{Username: "benchmark_user"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user.ID = ""
		_ = user.BeforeCreate(nil)
	}
}
