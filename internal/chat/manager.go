package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/config"
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/llm"
	"docgpt-backend/internal/loaders"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrUnauthorized = errors.New("chat does not belong to this user")
	ErrNoActiveChat = errors.New("no active chat")
	ErrInvalidInput = errors.New("invalid input")
)

// DocumentLoader turns a document into plain text.
type DocumentLoader interface {
	Load(ctx context.Context, doc loaders.Document) (string, error)
}

// UploadStore keeps the uploaded files chats are bound to.
type UploadStore interface {
	Save(ctx context.Context, original, ext string, data io.Reader) (string, error)
	Open(ctx context.Context, stored string) ([]byte, error)
	Remove(ctx context.Context, stored string) error
}

type ManagerConfig struct {
	// ProviderKeyEnv names the environment variable holding the agent API key.
	ProviderKeyEnv string
	Model          string
	CacheSize      int
}

type Manager struct {
	store     *database.Store
	documents DocumentLoader
	uploads   UploadStore
	agents    llm.Factory
	keyEnv    string
	model     string
	sessions  *SessionCache
}

func NewManager(store *database.Store, documents DocumentLoader, uploads UploadStore, agents llm.Factory, cfg ManagerConfig) *Manager {
	return &Manager{
		store:     store,
		documents: documents,
		uploads:   uploads,
		agents:    agents,
		keyEnv:    cfg.ProviderKeyEnv,
		model:     cfg.Model,
		sessions:  NewSessionCache(cfg.CacheSize),
	}
}

// Submit loads a new document and binds the session to a freshly created chat
// for it. On failure the session keeps whatever it was bound to before and no
// chat is created.
func (m *Manager) Submit(ctx context.Context, sess auth.Session, doc loaders.Document) (database.Chat, error) {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	key, err := config.ProviderKey(m.keyEnv)
	if err != nil {
		return database.Chat{}, err
	}

	prevState, prevBinding := st.state, st.binding
	st.state = Loading

	chat, b, err := m.bind(ctx, sess, doc, key, nil)
	if err != nil {
		st.state, st.binding = prevState, prevBinding
		return database.Chat{}, err
	}

	st.bind(b)
	slog.Info("bound new chat", "session_id", sess.ID, "chat_id", chat.ID, "type", doc.Type())

	return chat, nil
}

// Open resumes an existing chat: its document is loaded again from the stored
// file or url and its history is replayed into memory.
func (m *Manager) Open(ctx context.Context, sess auth.Session, chatID uuid.UUID) (database.Chat, error) {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	key, err := config.ProviderKey(m.keyEnv)
	if err != nil {
		return database.Chat{}, err
	}

	chat, err := m.ownedChat(ctx, st, sess, chatID)
	if err != nil {
		return database.Chat{}, err
	}

	prevState, prevBinding := st.state, st.binding
	st.state = Loading

	doc, err := m.storedDocument(ctx, chat)
	if err != nil {
		st.state, st.binding = prevState, prevBinding
		return database.Chat{}, err
	}

	_, b, err := m.bind(ctx, sess, doc, key, &chat)
	if err != nil {
		st.state, st.binding = prevState, prevBinding
		return database.Chat{}, err
	}

	st.bind(b)
	slog.Info("opened chat", "session_id", sess.ID, "chat_id", chat.ID, "messages", b.memory.Len())

	return chat, nil
}

// bind performs the Loading to Bound transition without touching session
// state. existing is nil for a fresh submission.
func (m *Manager) bind(ctx context.Context, sess auth.Session, doc loaders.Document, key string, existing *database.Chat) (database.Chat, *binding, error) {
	text, err := m.documents.Load(ctx, doc)
	if err != nil {
		return database.Chat{}, nil, err
	}

	prompt := SystemPrompt(doc.Type(), text)

	agent, err := m.agents(key)
	if err != nil {
		return database.Chat{}, nil, fmt.Errorf("error creating agent: %w", err)
	}

	var chat database.Chat
	if existing != nil {
		chat = *existing
	} else {
		chat, err = m.createChat(ctx, sess, doc)
		if err != nil {
			return database.Chat{}, nil, err
		}
	}

	messages, err := m.store.ListMessages(ctx, chat.ID)
	if err != nil {
		return database.Chat{}, nil, err
	}

	return chat, &binding{
		chatID:       chat.ID,
		docType:      doc.Type(),
		systemPrompt: prompt,
		agent:        agent,
		memory:       NewMemory(messages),
	}, nil
}

func (m *Manager) createChat(ctx context.Context, sess auth.Session, doc loaders.Document) (database.Chat, error) {
	chat := database.Chat{UserID: sess.UserID, FileType: string(doc.Type())}

	switch d := doc.(type) {
	case loaders.URLDocument:
		url := d.URL
		chat.FileURL = &url
		chat.Title = Title(d.Kind, url)

	case loaders.FileDocument:
		data, err := d.Content.ReadAll()
		d.Content.Reset()
		if err != nil {
			return database.Chat{}, fmt.Errorf("error reading upload: %w", err)
		}

		stored, err := m.uploads.Save(ctx, d.Name, d.Kind.Extension(), bytes.NewReader(data))
		if err != nil {
			return database.Chat{}, err
		}
		chat.FilePath = &stored
		chat.Title = Title(d.Kind, stored)

		if err := m.store.CreateChat(ctx, &chat); err != nil {
			if rmErr := m.uploads.Remove(ctx, stored); rmErr != nil {
				slog.Warn("unable to remove upload of failed chat", "path", stored, "error", rmErr)
			}
			return database.Chat{}, err
		}
		return chat, nil

	default:
		return database.Chat{}, fmt.Errorf("%w: unknown document", loaders.ErrUnsupportedType)
	}

	if err := m.store.CreateChat(ctx, &chat); err != nil {
		return database.Chat{}, err
	}
	return chat, nil
}

// storedDocument rebuilds the document a chat was created from.
func (m *Manager) storedDocument(ctx context.Context, chat database.Chat) (loaders.Document, error) {
	docType, err := loaders.ParseDocumentType(chat.FileType)
	if err != nil {
		return nil, err
	}

	if chat.FileURL != nil {
		return loaders.NewURLDocument(docType, *chat.FileURL)
	}
	if chat.FilePath == nil {
		return nil, fmt.Errorf("%w: chat %v has no source", database.ErrInvalidChat, chat.ID)
	}

	data, err := m.uploads.Open(ctx, *chat.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loaders.ErrDocumentUnavailable, err)
	}
	return loaders.NewFileDocument(docType, path.Base(*chat.FilePath), loaders.NewMemoryFile(data))
}

// ownedChat fetches chatID and checks it belongs to the session's user. A chat
// owned by someone else drops the session back to NoActiveChat.
func (m *Manager) ownedChat(ctx context.Context, st *sessionState, sess auth.Session, chatID uuid.UUID) (database.Chat, error) {
	chat, err := m.store.GetChat(ctx, chatID)
	if err != nil {
		return database.Chat{}, err
	}
	if chat.UserID != sess.UserID {
		slog.Warn("chat access denied", "session_id", sess.ID, "user_id", sess.UserID, "chat_id", chatID)
		st.reset()
		return database.Chat{}, ErrUnauthorized
	}
	return chat, nil
}

// checkActiveOwner re-runs the ownership check for the bound chat. A chat
// deleted elsewhere leaves the session with no active chat.
func (m *Manager) checkActiveOwner(ctx context.Context, st *sessionState, sess auth.Session) (*binding, error) {
	if st.state != Bound || st.binding == nil {
		return nil, ErrNoActiveChat
	}

	chat, err := m.store.GetChat(ctx, st.binding.chatID)
	if errors.Is(err, database.ErrNotFound) {
		slog.Info("active chat was deleted", "session_id", sess.ID, "chat_id", st.binding.chatID)
		st.reset()
		return nil, ErrNoActiveChat
	}
	if err != nil {
		return nil, err
	}
	if chat.UserID != sess.UserID {
		slog.Warn("active chat no longer owned by user", "session_id", sess.ID, "user_id", sess.UserID, "chat_id", st.binding.chatID)
		st.reset()
		return nil, ErrUnauthorized
	}
	return st.binding, nil
}

type Exchange struct {
	Human database.Message
	AI    database.Message
}

// Send runs one turn on the bound chat. The human message is stored before
// the agent is called and the reply after it finishes, so a failed agent call
// leaves the question recorded without an answer.
func (m *Manager) Send(ctx context.Context, sess auth.Session, input string, onFragment llm.FragmentFunc) (Exchange, error) {
	if strings.TrimSpace(input) == "" {
		return Exchange{}, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}

	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	b, err := m.checkActiveOwner(ctx, st, sess)
	if err != nil {
		return Exchange{}, err
	}

	history := b.memory.Turns()

	human, err := m.store.AppendMessage(ctx, b.chatID, database.RoleHuman, input, nil)
	if err != nil {
		return Exchange{}, err
	}
	b.memory.Append(human)

	reply, err := b.agent.Respond(ctx, b.systemPrompt, history, input, onFragment)
	if err != nil {
		return Exchange{Human: human}, err
	}

	ai, err := m.store.AppendMessage(ctx, b.chatID, database.RoleAI, reply, m.replyMetadata())
	if err != nil {
		return Exchange{Human: human}, err
	}
	b.memory.Append(ai)

	return Exchange{Human: human, AI: ai}, nil
}

func (m *Manager) replyMetadata() datatypes.JSON {
	data, err := json.Marshal(map[string]string{"model": m.model})
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// NewChat unbinds the session so the next document starts a new chat.
func (m *Manager) NewChat(sess auth.Session) {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.reset()
}

// Logout drops all chat state held for the session.
func (m *Manager) Logout(sess auth.Session) {
	if st, ok := m.sessions.Peek(sess.ID); ok {
		st.mu.Lock()
		st.reset()
		st.mu.Unlock()
	}
	m.sessions.Remove(sess.ID)
}

// Delete removes a chat and its messages. Deleting the active chat unbinds
// the session.
func (m *Manager) Delete(ctx context.Context, sess auth.Session, chatID uuid.UUID) error {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := m.ownedChat(ctx, st, sess, chatID); err != nil {
		return err
	}

	if err := m.store.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	if st.binding != nil && st.binding.chatID == chatID {
		st.reset()
	}

	slog.Info("deleted chat", "session_id", sess.ID, "chat_id", chatID)
	return nil
}

// ClearHistory purges the active chat's messages and its memory. The chat and
// its document binding are kept.
func (m *Manager) ClearHistory(ctx context.Context, sess auth.Session) error {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	b, err := m.checkActiveOwner(ctx, st, sess)
	if err != nil {
		return err
	}

	if err := m.store.ClearMessages(ctx, b.chatID); err != nil {
		return err
	}
	b.memory.Clear()

	return nil
}

func (m *Manager) Rename(ctx context.Context, sess auth.Session, chatID uuid.UUID, title string) (database.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return database.Chat{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}

	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	chat, err := m.ownedChat(ctx, st, sess, chatID)
	if err != nil {
		return database.Chat{}, err
	}

	if err := m.store.UpdateChatTitle(ctx, chatID, title); err != nil {
		return database.Chat{}, err
	}
	chat.Title = title

	return chat, nil
}

// List returns the user's chats, most recently updated first, filtered by
// search when it is not empty.
func (m *Manager) List(ctx context.Context, sess auth.Session, search string) ([]database.Chat, error) {
	chats, err := m.store.ListChats(ctx, &sess.UserID)
	if err != nil {
		return nil, err
	}

	filtered := make([]database.Chat, 0, len(chats))
	for _, chat := range chats {
		if MatchesSearch(chat, search) {
			filtered = append(filtered, chat)
		}
	}
	return filtered, nil
}

type Active struct {
	Chat     database.Chat
	Messages []database.Message
}

// Current returns the bound chat with its persisted transcript.
func (m *Manager) Current(ctx context.Context, sess auth.Session) (Active, error) {
	st := m.sessions.Get(sess.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	b, err := m.checkActiveOwner(ctx, st, sess)
	if err != nil {
		return Active{}, err
	}

	chat, err := m.store.GetChat(ctx, b.chatID)
	if err != nil {
		return Active{}, err
	}

	messages, err := m.store.ListMessages(ctx, b.chatID)
	if err != nil {
		return Active{}, err
	}

	return Active{Chat: chat, Messages: messages}, nil
}

// State reports the session's state. A session that is mid transition blocks
// until the transition completes.
func (m *Manager) State(sess auth.Session) State {
	st, ok := m.sessions.Peek(sess.ID)
	if !ok {
		return NoActiveChat
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.state
}
