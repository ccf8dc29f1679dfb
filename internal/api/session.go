package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docgpt-backend/internal/auth"
)

const SessionCookie = "docgpt_session"

type sessionKey struct{}

func sessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(auth.Session)
	return sess, ok
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *Service) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.TTL() / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadSession decodes the request's session token, if any. A token that does
// not decode is discarded and the request continues unauthenticated. A valid
// session is refreshed and the new token returned in the cookie.
func (s *Service) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.auth.Decode(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredSession) || errors.Is(err, auth.ErrRevokedSession) {
				slog.Info("discarding session", "reason", err)
			} else {
				slog.Warn("discarding corrupt session", "error", err)
			}
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		if refreshed, token, err := s.auth.Refresh(sess); err != nil {
			slog.Error("error refreshing session", "session_id", sess.ID, "error", err)
		} else {
			sess = refreshed
			s.setSessionCookie(w, token)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFromContext(r.Context()); !ok {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mustSession returns the session placed in the context by requireSession.
func mustSession(r *http.Request) (auth.Session, error) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		return auth.Session{}, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}
	return sess, nil
}
