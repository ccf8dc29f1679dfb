package integrationtests

import (
	"context"
	"testing"

	"docgpt-backend/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestPostgresStore(t *testing.T) {
	store := database.NewStore(createDB(t))
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "alice", "hash")
	assert.ErrorIs(t, err, database.ErrDuplicateUsername)

	url := "https://example.com/article"
	chat := database.Chat{UserID: user.ID, Title: "Site: " + url, FileType: "Site", FileURL: &url}
	require.NoError(t, store.CreateChat(ctx, &chat))

	human, err := store.AppendMessage(ctx, chat.ID, database.RoleHuman, "hi", nil)
	require.NoError(t, err)
	ai, err := store.AppendMessage(ctx, chat.ID, database.RoleAI, "hello", datatypes.JSON(`{"model": "gpt-4o-mini"}`))
	require.NoError(t, err)
	assert.True(t, ai.Timestamp.After(human.Timestamp))

	messages, err := store.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, database.RoleHuman, messages[0].Role)
	assert.JSONEq(t, `{"model": "gpt-4o-mini"}`, string(messages[1].Metadata))

	stored, err := store.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(ai.Timestamp))

	assert.Equal(t, user.ID, stored.UserID)

	require.NoError(t, store.DeleteChat(ctx, chat.ID))
	_, err = store.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	messages, err = store.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
