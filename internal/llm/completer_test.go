package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/RichardoC/threadchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is a langchaingo model that records what it was asked.
type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainCompleterMapsHistory(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Hi there"}}}}
	c := NewLangChainCompleter(model, DefaultGenerationParams)

	reply, err := c.Complete(context.Background(), []models.ChatTurn{
		{Role: models.RoleUser, Content: "Hello"},
		{Role: models.RoleAssistant, Content: "Hey"},
		{Role: models.RoleUser, Content: "How are you?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	require.Len(t, model.messages, 3)
	wantRoles := []llms.ChatMessageType{llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI, llms.ChatMessageTypeHuman}
	wantText := []string{"Hello", "Hey", "How are you?"}
	for i, msg := range model.messages {
		assert.Equal(t, wantRoles[i], msg.Role)
		require.Len(t, msg.Parts, 1)
		assert.Equal(t, llms.TextContent{Text: wantText[i]}, msg.Parts[0])
	}

	assert.Equal(t, 2000, model.opts.MaxTokens)
	assert.InDelta(t, 0.7, model.opts.Temperature, 1e-9)
}

func TestLangChainCompleterFailures(t *testing.T) {
	history := []models.ChatTurn{{Role: models.RoleUser, Content: "Hello"}}

	tests := []struct {
		name    string
		model   *fakeModel
		history []models.ChatTurn
		wantErr error
	}{
		{
			name:    "transport error",
			model:   &fakeModel{err: errors.New("connection refused")},
			history: history,
		},
		{
			name:    "nil response",
			model:   &fakeModel{},
			history: history,
			wantErr: ErrNoChoices,
		},
		{
			name:    "no choices",
			model:   &fakeModel{resp: &llms.ContentResponse{}},
			history: history,
			wantErr: ErrNoChoices,
		},
		{
			name:    "unknown role",
			model:   &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "x"}}}},
			history: []models.ChatTurn{{Role: "system", Content: "be nice"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLangChainCompleter(tt.model, DefaultGenerationParams)
			_, err := c.Complete(context.Background(), tt.history)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLangChainCompleterEmptyContentIsNotAnError(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: ""}}}}
	c := NewLangChainCompleter(model, GenerationParams{MaxTokens: 10, Temperature: 0})

	reply, err := c.Complete(context.Background(), []models.ChatTurn{{Role: models.RoleUser, Content: "Hello"}})
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Equal(t, 10, model.opts.MaxTokens)
}
