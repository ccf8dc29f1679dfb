package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the authenticated state held by a client between requests.
// ID identifies the login, so two logins of the same user have separate chat
// state.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	IssuedAt time.Time
}

func (s Session) validate() error {
	switch {
	case s.ID == uuid.Nil:
		return errors.New("missing session id")
	case s.UserID == uuid.Nil:
		return errors.New("missing user id")
	case s.Username == "":
		return errors.New("missing username")
	case s.IssuedAt.IsZero():
		return errors.New("missing issued at")
	}
	return nil
}

type claims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

func (s *Service) newSession(userID uuid.UUID, username string) Session {
	return Session{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		IssuedAt: s.now().UTC().Truncate(time.Second),
	}
}

// Issue signs sess into an opaque token.
func (s *Service) Issue(sess Session) (string, error) {
	if err := sess.validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		SessionID: sess.ID.String(),
		Username:  sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.IssuedAt.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("error signing session token: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns the session it carries. Any token that
// fails verification or lacks a field yields ErrCorruptSession, except expired
// tokens which yield ErrExpiredSession and tokens of a logged out session which
// yield ErrRevokedSession.
func (s *Service) Decode(token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredSession
		}
		return Session{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Session{}, fmt.Errorf("%w: invalid claims", ErrCorruptSession)
	}

	var sess Session
	if sess.ID, err = uuid.Parse(c.SessionID); err != nil {
		return Session{}, fmt.Errorf("%w: invalid session id: %v", ErrCorruptSession, err)
	}
	if sess.UserID, err = uuid.Parse(c.Subject); err != nil {
		return Session{}, fmt.Errorf("%w: invalid user id: %v", ErrCorruptSession, err)
	}
	sess.Username = c.Username
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time.UTC()
	}

	if err := sess.validate(); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	if s.isRevoked(sess.ID) {
		return Session{}, ErrRevokedSession
	}

	return sess, nil
}

// Refresh marks sess as used now and returns it with a newly signed token.
func (s *Service) Refresh(sess Session) (Session, string, error) {
	sess.IssuedAt = s.now().UTC().Truncate(time.Second)
	token, err := s.Issue(sess)
	if err != nil {
		return Session{}, "", err
	}
	return sess, token, nil
}

// TTL is how long an issued token stays valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
