package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/RichardoC/threadchat/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the provider answers without any candidate.
var ErrNoChoices = errors.New("provider returned no choices")

// Completer turns an ordered conversation history into reply text.
type Completer interface {
	Complete(ctx context.Context, history []models.ChatTurn) (string, error)
}

// GenerationParams are fixed for the lifetime of a completer.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
}

// DefaultGenerationParams match the values the chat UI was tuned against.
var DefaultGenerationParams = GenerationParams{MaxTokens: 2000, Temperature: 0.7}

// LangChainCompleter adapts any langchaingo model to Completer.
type LangChainCompleter struct {
	llm    llms.Model
	params GenerationParams
}

func NewLangChainCompleter(model llms.Model, params GenerationParams) *LangChainCompleter {
	return &LangChainCompleter{llm: model, params: params}
}

// NewOpenAI builds a completer against an OpenAI-compatible endpoint.
func NewOpenAI(baseURL, token, model string, params GenerationParams) (*LangChainCompleter, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewLangChainCompleter(llm, params), nil
}

func (c *LangChainCompleter) Complete(ctx context.Context, history []models.ChatTurn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, turn := range history {
		role, err := messageType(turn.Role)
		if err != nil {
			return "", err
		}
		messages = append(messages, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: turn.Content}},
		})
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(c.params.MaxTokens),
		llms.WithTemperature(c.params.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Content, nil
}

func messageType(role models.Role) (llms.ChatMessageType, error) {
	switch role {
	case models.RoleUser:
		return llms.ChatMessageTypeHuman, nil
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI, nil
	default:
		return "", fmt.Errorf("unsupported message role %q", role)
	}
}
