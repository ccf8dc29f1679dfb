package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIAgent struct {
	client openai.Client
	model  string
}

func NewOpenAIAgent(apiKey, model, endpoint string) *OpenAIAgent {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}

	return &OpenAIAgent{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func openaiMessages(systemPrompt string, history []Turn, input string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, turn := range history {
		switch turn.Role {
		case RoleHuman:
			messages = append(messages, openai.UserMessage(turn.Content))
		case RoleAI:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	return append(messages, openai.UserMessage(input))
}

func (a *OpenAIAgent) Respond(ctx context.Context, systemPrompt string, history []Turn, input string, onFragment FragmentFunc) (string, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: openaiMessages(systemPrompt, history, input),
	})
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}

		reply.WriteString(fragment)
		if onFragment != nil {
			if err := onFragment(fragment); err != nil {
				return "", err
			}
		}
	}

	if err := stream.Err(); err != nil {
		slog.Error("openai error: chat completions failed", "model", a.model, "error", err)
		return "", fmt.Errorf("agent generation failed: %w", err)
	}

	return reply.String(), nil
}
