package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docgpt-backend/internal/chat"
	"docgpt-backend/internal/loaders"
	"docgpt-backend/pkg/api"
)

// Uploads above this size are spooled to disk while parsing the form.
const maxUploadMemory = 32 << 20

var errStreamClosed = errors.New("client stopped reading the stream")

func (s *Service) ListChats(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.ListChatsParams](r)
	if err != nil {
		return nil, err
	}

	chats, err := s.manager.List(r.Context(), sess, params.Search)
	if err != nil {
		return nil, mapError(err)
	}

	return convertChats(chats), nil
}

func documentFromForm(r *http.Request) (loaders.Document, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse form: %v", err)
	}

	docType, err := loaders.ParseDocumentType(r.FormValue("type"))
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	if !docType.IsUpload() {
		doc, err := loaders.NewURLDocument(docType, r.FormValue("url"))
		if err != nil {
			return nil, CodedError(http.StatusBadRequest, err)
		}
		return doc, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing file for %s document: %v", docType, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to read uploaded file: %v", err)
	}

	doc, err := loaders.NewFileDocument(docType, header.Filename, loaders.NewMemoryFile(data))
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}
	return doc, nil
}

func (s *Service) SubmitDocument(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	doc, err := documentFromForm(r)
	if err != nil {
		return nil, err
	}

	created, err := s.manager.Submit(r.Context(), sess, doc)
	if err != nil {
		return nil, mapError(err)
	}

	return convertChat(created), nil
}

func (s *Service) OpenChat(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	chatID, err := URLParamUUID(r, "chat_id")
	if err != nil {
		return nil, err
	}

	opened, err := s.manager.Open(r.Context(), sess, chatID)
	if err != nil {
		return nil, mapError(err)
	}

	return convertChat(opened), nil
}

func (s *Service) RenameChat(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	chatID, err := URLParamUUID(r, "chat_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.RenameChatRequest](r)
	if err != nil {
		return nil, err
	}

	renamed, err := s.manager.Rename(r.Context(), sess, chatID, req.Title)
	if err != nil {
		return nil, mapError(err)
	}

	return convertChat(renamed), nil
}

func (s *Service) DeleteChat(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	chatID, err := URLParamUUID(r, "chat_id")
	if err != nil {
		return nil, err
	}

	if err := s.manager.Delete(r.Context(), sess, chatID); err != nil {
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Service) NewChat(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	s.manager.NewChat(sess)

	return api.ActiveChat{State: string(chat.NoActiveChat), Messages: []api.Message{}}, nil
}

func (s *Service) GetActiveChat(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	active, err := s.manager.Current(r.Context(), sess)
	if errors.Is(err, chat.ErrNoActiveChat) {
		return api.ActiveChat{State: string(s.manager.State(sess)), Messages: []api.Message{}}, nil
	}
	if err != nil {
		return nil, mapError(err)
	}

	current := convertChat(active.Chat)
	return api.ActiveChat{
		State:    string(chat.Bound),
		Chat:     &current,
		Messages: convertMessages(active.Messages),
	}, nil
}

// SendMessage streams the reply fragments followed by the stored exchange.
func (s *Service) SendMessage(r *http.Request) (StreamResponse, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.SendMessageRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message cannot be empty")
	}
	if state := s.manager.State(sess); state != chat.Bound {
		return nil, mapError(fmt.Errorf("%w: session is %s", chat.ErrNoActiveChat, state))
	}

	return func(yield func(any, error) bool) {
		open := true
		exchange, err := s.manager.Send(r.Context(), sess, req.Message, func(fragment string) error {
			if !open {
				return errStreamClosed
			}
			if !yield(api.ReplyFragment{Fragment: fragment}, nil) {
				open = false
				return errStreamClosed
			}
			return nil
		})
		if !open {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}

		yield(api.Exchange{
			Human: convertMessage(exchange.Human),
			AI:    convertMessage(exchange.AI),
		}, nil)
	}, nil
}

func (s *Service) ClearHistory(r *http.Request) (any, error) {
	sess, err := mustSession(r)
	if err != nil {
		return nil, err
	}

	if err := s.manager.ClearHistory(r.Context(), sess); err != nil {
		return nil, mapError(err)
	}

	return nil, nil
}
