package api

import (
	"encoding/json"

	"docgpt-backend/internal/database"
	"docgpt-backend/pkg/api"
)

func convertChat(c database.Chat) api.Chat {
	return api.Chat{
		Id:        c.ID,
		Title:     c.Title,
		FileType:  c.FileType,
		FilePath:  c.FilePath,
		FileUrl:   c.FileURL,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func convertChats(cs []database.Chat) []api.Chat {
	chats := make([]api.Chat, 0, len(cs))
	for _, c := range cs {
		chats = append(chats, convertChat(c))
	}
	return chats
}

func convertMessage(m database.Message) api.Message {
	msg := api.Message{
		Id:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if len(m.Metadata) > 0 {
		msg.Metadata = json.RawMessage(m.Metadata)
	}
	return msg
}

func convertMessages(ms []database.Message) []api.Message {
	messages := make([]api.Message, 0, len(ms))
	for _, m := range ms {
		messages = append(messages, convertMessage(m))
	}
	return messages
}
