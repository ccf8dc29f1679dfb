package api

import (
	"net/http"

	"docgpt-backend/internal/auth"
	"docgpt-backend/pkg/api"
)

func convertSession(sess auth.Session, token string) api.Session {
	return api.Session{
		UserId:   sess.UserID,
		Username: sess.Username,
		IssuedAt: sess.IssuedAt,
		Token:    token,
	}
}

func (s *Service) Register(r *http.Request) (any, error) {
	req, err := ParseRequest[api.Credentials](r)
	if err != nil {
		return nil, err
	}

	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		return nil, mapError(err)
	}

	return api.RegisterResponse{UserId: userID}, nil
}

// Login writes the cookie itself so it is not handled by RestHandler.
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest[api.Credentials](r)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	sess, token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	s.setSessionCookie(w, token)
	WriteJsonResponse(w, convertSession(sess, token))
}

func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := sessionFromContext(r.Context()); ok {
		s.auth.Logout(sess)
		s.manager.Logout(sess)
	}
	s.clearSessionCookie(w)
	WriteJsonResponse(w, struct{}{})
}

func (s *Service) GetSession(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}
	return convertSession(sess, ""), nil
}
