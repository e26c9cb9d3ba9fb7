package models_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"pulse/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	user := &models.User{Email: "ada@example.com", Name: "Ada"}
	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	// Act
	err := user.BeforeCreate(nil)

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, Email: "bob@example.com"}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID, "BeforeCreate should preserve existing ID")
}

// TestUserBeforeCreate_MultipleUsers verifies unique UUIDs are generated for multiple users.
func TestUserBeforeCreate_MultipleUsers(t *testing.T) {
	users := []*models.User{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
		{Email: "c@example.com"},
	}
	generated := make(map[string]bool)

	for _, user := range users {
		assert.NoError(t, user.BeforeCreate(nil))
		assert.NotContains(t, generated, user.ID, "Each user should have a unique ID")
		generated[user.ID] = true
	}

	assert.Len(t, generated, len(users))
}

// TestUserJSONHidesSecrets makes sure password hashes and block flags never reach clients.
func TestUserJSONHidesSecrets(t *testing.T) {
	hash := "$2a$12$abcdefghijklmnopqrstuv"
	user := models.User{ID: "u1", Email: "ada@example.com", Password: &hash, IsBlocked: true}

	raw, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), hash)
	assert.NotContains(t, string(raw), "IsBlocked")
	assert.Contains(t, string(raw), `"email":"ada@example.com"`)
}

func TestUserHasPassword(t *testing.T) {
	empty := ""
	hash := "x"

	assert.False(t, (&models.User{}).HasPassword(), "OAuth-only accounts have no password")
	assert.False(t, (&models.User{Password: &empty}).HasPassword())
	assert.True(t, (&models.User{Password: &hash}).HasPassword())
}

// TestModelStructTags verifies that struct tags are correctly defined for GORM and JSON.
func TestModelStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	emailField, found := userType.FieldByName("Email")
	assert.True(t, found)
	assert.Contains(t, emailField.Tag.Get("gorm"), "uniqueIndex")

	tagsField, found := reflect.TypeOf(models.Post{}).FieldByName("Tags")
	assert.True(t, found)
	assert.Contains(t, tagsField.Tag.Get("gorm"), "type:text[]", "Tags should use PostgreSQL array type")
}

// TestPostTagsArray verifies PostgreSQL array functionality.
func TestPostTagsArray(t *testing.T) {
	post := &models.Post{Title: "hello", Tags: pq.StringArray{"go", "redis", "websocket"}}

	err := post.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.Len(t, post.Tags, 3)

	value, err := post.Tags.Value()
	assert.NoError(t, err)
	assert.Equal(t, `{"go","redis","websocket"}`, value)
}

func TestNewEnvelope(t *testing.T) {
	env := models.NewEnvelope(models.EventPresence, models.PresencePayload{UserID: "u1", Status: models.StatusOnline}, "")

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "presence", decoded["type"])
	assert.NotContains(t, decoded, "userId", "server-originated envelopes carry no sender")
	assert.Equal(t, map[string]any{"userId": "u1", "status": "online"}, decoded["payload"])
	assert.False(t, env.Timestamp.IsZero())
}

// BenchmarkUserBeforeCreate measures UUID generation performance.
func BenchmarkUserBeforeCreate(b *testing.B) {
	user := &models.User{Email: "bench@example.com"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user.ID = ""
		_ = user.BeforeCreate(nil)
	}
}
