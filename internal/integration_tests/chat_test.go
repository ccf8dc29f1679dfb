package integrationtests

import (
	"context"
	"testing"
	"time"

	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/chat"
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/llm"
	"docgpt-backend/internal/loaders"
	"docgpt-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyAgent struct{}

func (replyAgent) Respond(ctx context.Context, systemPrompt string, history []llm.Turn, input string, onFragment llm.FragmentFunc) (string, error) {
	reply := "answer to " + input
	if onFragment != nil {
		if err := onFragment(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func TestChatOnPostgresAndS3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Setenv("DOCGPT_INTEGRATION_KEY", "sk-test")

	store := database.NewStore(createDB(t))
	uploads := storage.NewUploads(setupS3Provider(t, ctx))
	require.NoError(t, uploads.Init(ctx))

	dispatcher := loaders.NewDispatcher()
	dispatcher.Register(loaders.Txt, loaders.NewTxtLoader(t.TempDir()), loaders.SingleAttempt)
	dispatcher.Register(loaders.Csv, loaders.NewCsvLoader(t.TempDir()), loaders.SingleAttempt)

	manager := chat.NewManager(store, dispatcher, uploads, func(string) (llm.Agent, error) { return replyAgent{}, nil }, chat.ManagerConfig{
		ProviderKeyEnv: "DOCGPT_INTEGRATION_KEY",
		Model:          "test-model",
		CacheSize:      4,
	})

	authService := auth.NewService(store, "secret", time.Hour)
	_, err := authService.Register(ctx, "alice", "pw123")
	require.NoError(t, err)
	sess, _, err := authService.Login(ctx, "alice", "pw123")
	require.NoError(t, err)

	doc, err := loaders.NewFileDocument(loaders.Csv, "prices.csv", loaders.NewMemoryFile([]byte("item,price\napple,1\n")))
	require.NoError(t, err)

	created, err := manager.Submit(ctx, sess, doc)
	require.NoError(t, err)

	exchange, err := manager.Send(ctx, sess, "how much is an apple?", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer to how much is an apple?", exchange.AI.Content)

	// a second login of the same user reloads the file from object storage
	other, _, err := authService.Login(ctx, "alice", "pw123")
	require.NoError(t, err)

	_, err = manager.Open(ctx, other, created.ID)
	require.NoError(t, err)

	active, err := manager.Current(ctx, other)
	require.NoError(t, err)
	require.Len(t, active.Messages, 2)

	require.NoError(t, manager.Delete(ctx, other, created.ID))
	assert.Equal(t, chat.NoActiveChat, manager.State(other))
}
