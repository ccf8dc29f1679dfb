package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docgpt-backend/internal/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateUsername  = database.ErrDuplicateUsername
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCorruptSession     = errors.New("corrupt session")
	ErrExpiredSession     = errors.New("session expired")
	ErrRevokedSession     = errors.New("session logged out")
)

type Service struct {
	store    *database.Store
	secret   []byte
	ttl      time.Duration
	hashCost int
	now      func() time.Time

	mu sync.Mutex
	// revoked maps logged out session ids to the latest expiry of any token
	// issued for them.
	revoked map[uuid.UUID]time.Time
}

func NewService(store *database.Store, secret string, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		secret:   []byte(secret),
		ttl:      ttl,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		revoked:  make(map[uuid.UUID]time.Time),
	}
}

func (s *Service) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	if username == "" || password == "" {
		return uuid.Nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		return uuid.Nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		return uuid.Nil, err
	}

	slog.Info("registered user", "user_id", user.ID, "username", username)

	return user.ID, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (uuid.UUID, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, err
	}

	if !checkPassword(user.PasswordHash, password) {
		return uuid.Nil, ErrInvalidCredentials
	}

	return user.ID, nil
}

// Login authenticates the credentials and starts a new session.
func (s *Service) Login(ctx context.Context, username, password string) (Session, string, error) {
	userID, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Session{}, "", err
	}

	sess := s.newSession(userID, username)
	token, err := s.Issue(sess)
	if err != nil {
		return Session{}, "", err
	}

	slog.Info("user logged in", "user_id", userID, "session_id", sess.ID)

	return sess, token, nil
}

// Logout invalidates sess. Tokens issued for it are rejected by Decode until
// they would have expired anyway.
func (s *Service) Logout(sess Session) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expiry := range s.revoked {
		if !now.Before(expiry) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sess.ID] = now.Add(s.ttl)

	slog.Info("user logged out", "user_id", sess.UserID, "session_id", sess.ID)
}

func (s *Service) isRevoked(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.revoked[id]
	return ok && s.now().Before(expiry)
}
