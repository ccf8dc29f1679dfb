package api

import (
	"errors"
	"net/http"

	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/chat"
	"docgpt-backend/internal/config"
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/loaders"
)

var errorCodes = []struct {
	err  error
	code int
}{
	{auth.ErrDuplicateUsername, http.StatusConflict},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidInput, http.StatusBadRequest},
	{auth.ErrCorruptSession, http.StatusUnauthorized},
	{auth.ErrExpiredSession, http.StatusUnauthorized},
	{auth.ErrRevokedSession, http.StatusUnauthorized},
	{chat.ErrUnauthorized, http.StatusForbidden},
	{chat.ErrNoActiveChat, http.StatusConflict},
	{chat.ErrInvalidInput, http.StatusBadRequest},
	{loaders.ErrUnsupportedType, http.StatusBadRequest},
	{loaders.ErrDocumentUnavailable, http.StatusUnprocessableEntity},
	{config.ErrMissingCredential, http.StatusServiceUnavailable},
	{database.ErrNotFound, http.StatusNotFound},
}

// mapError attaches a status code to errors from the service layer. Errors
// that do not match a known kind are internal.
func mapError(err error) error {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return err
	}

	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return CodedError(e.code, err)
		}
	}
	return CodedError(http.StatusInternalServerError, err)
}
