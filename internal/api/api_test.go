package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	backend "docgpt-backend/internal/api"
	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/chat"
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/llm"
	"docgpt-backend/internal/loaders"
	"docgpt-backend/internal/storage"
	"docgpt-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyEnv = "DOCGPT_API_TEST_KEY"

type fakeLoader struct{}

func (fakeLoader) Load(ctx context.Context, doc loaders.Document) (string, error) {
	switch d := doc.(type) {
	case loaders.FileDocument:
		data, err := d.Content.ReadAll()
		d.Content.Reset()
		return string(data), err
	default:
		return "", fmt.Errorf("%w: %w", loaders.ErrDocumentUnavailable, loaders.ErrUnreachable)
	}
}

type echoAgent struct{}

func (echoAgent) Respond(ctx context.Context, systemPrompt string, history []llm.Turn, input string, onFragment llm.FragmentFunc) (string, error) {
	fragments := []string{"you said: ", input}
	for _, f := range fragments {
		if err := onFragment(f); err != nil {
			return "", err
		}
	}
	return strings.Join(fragments, ""), nil
}

func createRouter(t *testing.T) chi.Router {
	t.Setenv(testKeyEnv, "sk-test")

	db, err := database.NewDatabase("file::memory:")
	require.NoError(t, err)
	store := database.NewStore(db)

	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	uploads := storage.NewUploads(provider)
	require.NoError(t, uploads.Init(context.Background()))

	agents := func(apiKey string) (llm.Agent, error) { return echoAgent{}, nil }
	manager := chat.NewManager(store, fakeLoader{}, uploads, agents, chat.ManagerConfig{
		ProviderKeyEnv: testKeyEnv,
		Model:          "test-model",
		CacheSize:      16,
	})

	service := backend.NewService(auth.NewService(store, "test-secret", time.Hour), manager, false)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

type client struct {
	t      *testing.T
	router chi.Router
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name != backend.SessionCookie {
			continue
		}
		if cookie.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = cookie
		}
	}
	return rec
}

func (c *client) json(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) form(fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(c.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(c.t, err)
	}
	require.NoError(c.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/chats", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var res T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func loggedIn(t *testing.T, router chi.Router, username string) *client {
	c := &client{t: t, router: router}

	rec := c.json(http.MethodPost, "/auth/register", api.Credentials{Username: username, Password: "pw123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.json(http.MethodPost, "/auth/login", api.Credentials{Username: username, Password: "pw123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, c.cookie)

	return c
}

func TestHealth(t *testing.T) {
	c := &client{t: t, router: createRouter(t)}
	rec := c.json(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	router := createRouter(t)
	c := &client{t: t, router: router}

	rec := c.json(http.MethodPost, "/auth/register", api.Credentials{Username: "alice", Password: "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	registered := decode[api.RegisterResponse](t, rec)

	rec = c.json(http.MethodPost, "/auth/register", api.Credentials{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.json(http.MethodPost, "/auth/register", api.Credentials{Username: "", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.json(http.MethodPost, "/auth/login", api.Credentials{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, c.cookie)

	rec = c.json(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.json(http.MethodPost, "/auth/login", api.Credentials{Username: "alice", Password: "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[api.Session](t, rec)
	assert.Equal(t, registered.UserId, login.UserId)
	assert.NotEmpty(t, login.Token)
	require.NotNil(t, c.cookie)

	rec = c.json(http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[api.Session](t, rec)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, registered.UserId, sess.UserId)

	// bearer tokens are accepted as well as the cookie
	bearer := &client{t: t, router: router}
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	assert.Equal(t, http.StatusOK, bearer.do(req).Code)

	rec = c.json(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.cookie)

	rec = c.json(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenRejectedAfterLogout(t *testing.T) {
	router := createRouter(t)
	c := loggedIn(t, router, "alice")
	token := c.cookie.Value

	other := loggedIn(t, router, "bob")

	rec := c.json(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	bearer := &client{t: t, router: router}
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, bearer.do(req).Code)

	replayed := &client{t: t, router: router, cookie: &http.Cookie{Name: backend.SessionCookie, Value: token}}
	assert.Equal(t, http.StatusUnauthorized, replayed.json(http.MethodGet, "/chats", nil).Code)
	assert.Nil(t, replayed.cookie)

	assert.Equal(t, http.StatusOK, other.json(http.MethodGet, "/auth/session", nil).Code)
}

func TestCorruptSessionCookie(t *testing.T) {
	router := createRouter(t)
	c := &client{t: t, router: router, cookie: &http.Cookie{Name: backend.SessionCookie, Value: "not-a-token"}}

	rec := c.json(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, c.cookie)

	rec = c.json(http.MethodGet, "/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a corrupt cookie does not block logging in again
	c.cookie = &http.Cookie{Name: backend.SessionCookie, Value: "still-not-a-token"}
	rec = c.json(http.MethodPost, "/auth/register", api.Credentials{Username: "alice", Password: "pw123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func readStream(t *testing.T, rec *httptest.ResponseRecorder) []map[string]json.RawMessage {
	var messages []map[string]json.RawMessage
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var msg map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		messages = append(messages, msg)
	}
	require.NoError(t, scanner.Err())
	return messages
}

func TestChatLifecycle(t *testing.T) {
	router := createRouter(t)
	c := loggedIn(t, router, "alice")

	rec := c.json(http.MethodGet, "/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_active_chat", decode[api.ActiveChat](t, rec).State)

	rec = c.json(http.MethodPost, "/chat/messages", api.SendMessageRequest{Message: "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.form(map[string]string{"type": "Txt"}, "notes.txt", "Hello world")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[api.Chat](t, rec)
	assert.Equal(t, "Txt", created.FileType)
	require.NotNil(t, created.FilePath)
	assert.Nil(t, created.FileUrl)
	assert.True(t, strings.HasPrefix(created.Title, "Txt: notes_"))

	rec = c.json(http.MethodPost, "/chat/messages", api.SendMessageRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	stream := readStream(t, rec)
	require.Len(t, stream, 3)

	var fragment api.ReplyFragment
	require.NoError(t, json.Unmarshal(stream[0]["data"], &fragment))
	assert.Equal(t, "you said: ", fragment.Fragment)

	var exchange api.Exchange
	require.NoError(t, json.Unmarshal(stream[2]["data"], &exchange))
	assert.Equal(t, "human", exchange.Human.Role)
	assert.Equal(t, "ai", exchange.AI.Role)
	assert.Equal(t, "you said: hi", exchange.AI.Content)

	rec = c.json(http.MethodGet, "/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[api.ActiveChat](t, rec)
	assert.Equal(t, "bound", active.State)
	require.NotNil(t, active.Chat)
	assert.Equal(t, created.Id, active.Chat.Id)
	require.Len(t, active.Messages, 2)
	assert.Equal(t, "hi", active.Messages[0].Content)

	rec = c.json(http.MethodPatch, "/chats/"+created.Id.String(), api.RenameChatRequest{Title: "Meeting notes"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Meeting notes", decode[api.Chat](t, rec).Title)

	rec = c.json(http.MethodGet, "/chats?search=meeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.Chat](t, rec), 1)

	rec = c.json(http.MethodGet, "/chats?search=nothing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.Chat](t, rec))

	rec = c.json(http.MethodDelete, "/chat/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.json(http.MethodGet, "/chat", nil)
	assert.Empty(t, decode[api.ActiveChat](t, rec).Messages)

	rec = c.json(http.MethodPost, "/chats/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.json(http.MethodGet, "/chat", nil)
	assert.Equal(t, "no_active_chat", decode[api.ActiveChat](t, rec).State)

	rec = c.json(http.MethodPost, "/chats/"+created.Id.String()+"/open", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.json(http.MethodGet, "/chat", nil)
	assert.Equal(t, "bound", decode[api.ActiveChat](t, rec).State)

	rec = c.json(http.MethodDelete, "/chats/"+created.Id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.json(http.MethodGet, "/chat", nil)
	assert.Equal(t, "no_active_chat", decode[api.ActiveChat](t, rec).State)

	rec = c.json(http.MethodGet, "/chats", nil)
	assert.Empty(t, decode[[]api.Chat](t, rec))
}

func TestSubmitErrors(t *testing.T) {
	router := createRouter(t)
	c := loggedIn(t, router, "alice")

	rec := c.form(map[string]string{"type": "Docx"}, "notes.docx", "data")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.form(map[string]string{"type": "Pdf"}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.form(map[string]string{"type": "Site"}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.form(map[string]string{"type": "Site", "url": "example.com"}, "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.json(http.MethodGet, "/chats", nil)
	assert.Empty(t, decode[[]api.Chat](t, rec))

	t.Setenv(testKeyEnv, "")
	rec = c.form(map[string]string{"type": "Txt"}, "notes.txt", "Hello world")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOtherUsersChat(t *testing.T) {
	router := createRouter(t)
	alice := loggedIn(t, router, "alice")
	bob := loggedIn(t, router, "bob")

	rec := alice.form(map[string]string{"type": "Txt"}, "notes.txt", "Hello world")
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[api.Chat](t, rec)

	rec = bob.json(http.MethodPost, "/chats/"+created.Id.String()+"/open", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = bob.json(http.MethodDelete, "/chats/"+created.Id.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = bob.json(http.MethodGet, "/chats", nil)
	assert.Empty(t, decode[[]api.Chat](t, rec))

	rec = bob.json(http.MethodPost, "/chats/not-a-uuid/open", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = alice.json(http.MethodGet, "/chats", nil)
	assert.Len(t, decode[[]api.Chat](t, rec), 1)
}

func TestCORSCredentials(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	request := func(origins []string, origin string) http.Header {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		backend.CORS(origins)(ok).ServeHTTP(rec, req)
		return rec.Header()
	}

	headers := request([]string{"http://localhost:3000"}, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", headers.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", headers.Get("Access-Control-Allow-Credentials"))

	headers = request([]string{"http://localhost:3000"}, "http://evil.example")
	assert.Empty(t, headers.Get("Access-Control-Allow-Origin"))

	headers = request([]string{"*"}, "http://evil.example")
	assert.NotEmpty(t, headers.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, headers.Get("Access-Control-Allow-Credentials"))
}
