package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidChat       = errors.New("invalid chat record")
)

// SQLite only supports one writer at a time, so we need a lock
// whenever we write to the database
var dbMutex sync.Mutex

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("error getting %s: %w", what, err)
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	user := User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var existing int64
		if err := txn.Model(&User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
			return fmt.Errorf("error checking username: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateUsername
		}

		if err := txn.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateUsername
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return User{}, notFound(err, fmt.Sprintf("user %q", username))
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return User{}, notFound(err, fmt.Sprintf("user %v", userID))
	}
	return user, nil
}

// CreateChat inserts chat. ID, CreatedAt and UpdatedAt are filled in when zero.
func (s *Store) CreateChat(ctx context.Context, chat *Chat) error {
	if (chat.FilePath == nil) == (chat.FileURL == nil) {
		return fmt.Errorf("%w: exactly one of file_path and file_url must be set", ErrInvalidChat)
	}
	if chat.UserID == uuid.Nil {
		return fmt.Errorf("%w: chat must have an owner", ErrInvalidChat)
	}

	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}

	dbMutex.Lock()
	defer dbMutex.Unlock()

	if err := s.db.WithContext(ctx).Omit("Messages").Create(chat).Error; err != nil {
		return fmt.Errorf("error creating chat: %w", err)
	}
	return nil
}

func (s *Store) UpdateChatTitle(ctx context.Context, chatID uuid.UUID, title string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	result := s.db.WithContext(ctx).Model(&Chat{}).Where("chat_id = ?", chatID).Update("title", title)
	if result.Error != nil {
		return fmt.Errorf("error updating chat title: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("error updating chat title %v: %w", chatID, ErrNotFound)
	}
	return nil
}

// ListChats returns chats most recently updated first. A nil owner lists
// every chat.
func (s *Store) ListChats(ctx context.Context, owner *uuid.UUID) ([]Chat, error) {
	query := s.db.WithContext(ctx).Order("updated_at DESC")
	if owner != nil {
		query = query.Where("user_id = ?", *owner)
	}

	var chats []Chat
	if err := query.Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}
	return chats, nil
}

func (s *Store) GetChat(ctx context.Context, chatID uuid.UUID) (Chat, error) {
	var chat Chat
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&chat).Error; err != nil {
		return Chat{}, notFound(err, fmt.Sprintf("chat %v", chatID))
	}
	return chat, nil
}

// AppendMessage records a message and refreshes the chat's updated_at in one
// transaction. The timestamp is kept strictly after the chat's previous
// updated_at so messages sort in insertion order even when the clock does not
// advance between appends.
func (s *Store) AppendMessage(ctx context.Context, chatID uuid.UUID, role Role, content string, metadata datatypes.JSON) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("invalid message role %q", role)
	}

	dbMutex.Lock()
	defer dbMutex.Unlock()

	var message Message
	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var chat Chat
		if err := txn.Select("chat_id", "updated_at").Where("chat_id = ?", chatID).First(&chat).Error; err != nil {
			return notFound(err, fmt.Sprintf("chat %v", chatID))
		}

		ts := time.Now().UTC().Truncate(time.Microsecond)
		if !ts.After(chat.UpdatedAt) {
			ts = chat.UpdatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
		}

		message = Message{
			ID:        uuid.New(),
			ChatID:    chatID,
			Role:      role,
			Content:   content,
			Timestamp: ts,
			Metadata:  metadata,
		}
		if err := txn.Create(&message).Error; err != nil {
			return fmt.Errorf("error saving message: %w", err)
		}

		if err := txn.Model(&Chat{}).Where("chat_id = ?", chatID).Update("updated_at", ts).Error; err != nil {
			return fmt.Errorf("error touching chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return Message{}, err
	}

	return message, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	var messages []Message
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("timestamp ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return messages, nil
}

func (s *Store) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Delete(&Message{}, "chat_id = ?", chatID).Error; err != nil {
			return fmt.Errorf("error deleting messages: %w", err)
		}

		result := txn.Delete(&Chat{}, "chat_id = ?", chatID)
		if result.Error != nil {
			return fmt.Errorf("error deleting chat: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("error deleting chat %v: %w", chatID, ErrNotFound)
		}
		return nil
	})
}

// ClearMessages removes a chat's history and keeps the chat itself.
func (s *Store) ClearMessages(ctx context.Context, chatID uuid.UUID) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	if err := s.db.WithContext(ctx).Delete(&Message{}, "chat_id = ?", chatID).Error; err != nil {
		return fmt.Errorf("error clearing messages: %w", err)
	}
	return nil
}
