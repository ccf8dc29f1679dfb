package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type LangchainAgent struct {
	client *openai.LLM
	model  string
}

func NewLangchainAgent(apiKey, model, endpoint string) (*LangchainAgent, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if endpoint != "" {
		opts = append(opts, openai.WithBaseURL(endpoint))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create OpenAI client: %w", err)
	}

	return &LangchainAgent{client: client, model: model}, nil
}

func langchainMessages(systemPrompt string, history []Turn, input string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, turn := range history {
		switch turn.Role {
		case RoleHuman:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, turn.Content))
		case RoleAI:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, turn.Content))
		}
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))
}

func (a *LangchainAgent) Respond(ctx context.Context, systemPrompt string, history []Turn, input string, onFragment FragmentFunc) (string, error) {
	var reply strings.Builder

	_, err := a.client.GenerateContent(ctx, langchainMessages(systemPrompt, history, input),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			reply.Write(chunk)
			if onFragment != nil {
				return onFragment(string(chunk))
			}
			return nil
		}),
	)
	if err != nil {
		slog.Error("error calling OpenAI API", "model", a.model, "error", err)
		return "", fmt.Errorf("agent generation failed: %w", err)
	}

	return reply.String(), nil
}
