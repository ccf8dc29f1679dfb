package llm

import (
	"context"
	"fmt"
)

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

type Turn struct {
	Role    Role
	Content string
}

// FragmentFunc receives the reply as it is generated. Returning an error
// aborts generation.
type FragmentFunc func(fragment string) error

// Agent produces a reply to input given the system prompt and the prior
// turns. The returned reply is the concatenation of every fragment passed to
// onFragment.
type Agent interface {
	Respond(ctx context.Context, systemPrompt string, history []Turn, input string, onFragment FragmentFunc) (string, error)
}

const (
	BackendLangchain = "langchain"
	BackendOpenAI    = "openai"
)

type Config struct {
	Backend  string
	Model    string
	Endpoint string
}

// Factory builds an agent bound to an API key. Agents are built when a chat is
// bound because the key is read then.
type Factory func(apiKey string) (Agent, error)

func NewFactory(cfg Config) (Factory, error) {
	switch cfg.Backend {
	case BackendLangchain, "":
		return func(apiKey string) (Agent, error) {
			return NewLangchainAgent(apiKey, cfg.Model, cfg.Endpoint)
		}, nil
	case BackendOpenAI:
		return func(apiKey string) (Agent, error) {
			return NewOpenAIAgent(apiKey, cfg.Model, cfg.Endpoint), nil
		}, nil
	default:
		return nil, fmt.Errorf("invalid agent backend '%s': expected %s or %s", cfg.Backend, BackendLangchain, BackendOpenAI)
	}
}
