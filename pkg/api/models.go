package api

import (
	"time"

	"github.com/google/uuid"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

type Session struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IssuedAt time.Time `json:"issued_at"`
	Token    string    `json:"token,omitempty"`
}

type Chat struct {
	Id        uuid.UUID `json:"chat_id"`
	Title     string    `json:"title"`
	FileType  string    `json:"file_type"`
	FilePath  *string   `json:"file_path"`
	FileUrl   *string   `json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListChatsParams struct {
	Search string `schema:"search"`
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

type Message struct {
	Id        uuid.UUID `json:"message_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  any       `json:"metadata,omitempty"`
}

type ActiveChat struct {
	State    string    `json:"state"`
	Chat     *Chat     `json:"chat,omitempty"`
	Messages []Message `json:"messages"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

// ReplyFragment is streamed for each piece of the reply as it is generated.
type ReplyFragment struct {
	Fragment string `json:"fragment"`
}

// Exchange is the last item of a message stream.
type Exchange struct {
	Human Message `json:"human"`
	AI    Message `json:"ai"`
}
