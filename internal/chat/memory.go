package chat

import (
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/llm"
)

// Memory is the in-process copy of a chat's history handed to the agent. The
// messages table is authoritative; memory is rebuilt from it whenever a chat
// is opened.
type Memory struct {
	turns []llm.Turn
}

func NewMemory(messages []database.Message) *Memory {
	m := &Memory{turns: make([]llm.Turn, 0, len(messages))}
	for _, msg := range messages {
		m.Append(msg)
	}
	return m
}

func (m *Memory) Append(msg database.Message) {
	role := llm.RoleHuman
	if msg.Role == database.RoleAI {
		role = llm.RoleAI
	}
	m.turns = append(m.turns, llm.Turn{Role: role, Content: msg.Content})
}

// Turns returns a copy of the history.
func (m *Memory) Turns() []llm.Turn {
	return append([]llm.Turn(nil), m.turns...)
}

func (m *Memory) Len() int {
	return len(m.turns)
}

func (m *Memory) Clear() {
	m.turns = m.turns[:0]
}
