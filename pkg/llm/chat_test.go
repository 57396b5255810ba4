package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/llm"
)

type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	response *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	return m.response, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	require.Len(t, msg.Parts, 1)
	part, ok := msg.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func answer(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func TestNewWithModel(t *testing.T) {
	engine, err := llm.NewWithModel(&fakeModel{}, llm.ChatConfig{
		Model:          "testmodel",
		Temperature:    0.5,
		MaxTokens:      1000,
		SystemTemplate: "Test system template",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithModel(&fakeModel{}, llm.ChatConfig{Temperature: 3})
	assert.Error(t, err)

	_, err = llm.NewWithModel(&fakeModel{}, llm.ChatConfig{PromptTemplate: "{{.context"})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{response: answer("  Use cy.visit().  ")}
	engine, err := llm.NewWithModel(model, llm.ChatConfig{
		Temperature:    0.3,
		MaxTokens:      500,
		SystemTemplate: "system",
	})
	require.NoError(t, err)

	chunks := []models.Chunk{
		{ParentSourcePath: "docs/api/visit.mdx", Text: "cy.visit() loads a page."},
	}
	history := []models.Turn{{Question: "What is Cypress?", Answer: "A test runner."}}

	got, err := engine.Generate(context.Background(), "How do I open a page?", chunks, history)
	require.NoError(t, err)
	assert.Equal(t, "Use cy.visit().", got)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, "system", textOf(t, model.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, "What is Cypress?", textOf(t, model.messages[1]))
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, "A test runner.", textOf(t, model.messages[2]))

	prompt := textOf(t, model.messages[3])
	assert.Contains(t, prompt, "Source: docs/api/visit.mdx\ncy.visit() loads a page.")
	assert.Contains(t, prompt, "Question: How do I open a page?")
	assert.Contains(t, prompt, "Use three sentences maximum")
	assert.Contains(t, prompt, `Always say "thanks for asking!" at the end of the answer.`)

	assert.Equal(t, 0.3, model.options.Temperature)
	assert.Equal(t, 500, model.options.MaxTokens)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: errors.New("502 bad gateway")}},
		{"no choices", &fakeModel{response: &llms.ContentResponse{}}},
		{"nil response", &fakeModel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewWithModel(tt.model, llm.ChatConfig{})
			require.NoError(t, err)

			_, err = engine.Generate(context.Background(), "q", nil, nil)
			assert.ErrorIs(t, err, types.ErrGeneration)
		})
	}
}

func TestCondense(t *testing.T) {
	model := &fakeModel{response: answer("  How do I set the timeout of cy.visit()?\n")}
	engine, err := llm.NewWithModel(model, llm.ChatConfig{Temperature: 0.7})
	require.NoError(t, err)

	history := []models.Turn{{Question: "How do I open a page?", Answer: "Use cy.visit()."}}
	got, err := engine.Condense(context.Background(), "what about its timeout?", history)
	require.NoError(t, err)
	assert.Equal(t, "How do I set the timeout of cy.visit()?", got)

	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
	prompt := textOf(t, model.messages[0])
	assert.Contains(t, prompt, "Chat History:\nHuman: How do I open a page?\nAssistant: Use cy.visit().")
	assert.Contains(t, prompt, "Follow Up Input: what about its timeout?")
	assert.Equal(t, 0.0, model.options.Temperature)
}

func TestCondense_NoHistory(t *testing.T) {
	model := &fakeModel{err: errors.New("must not be called")}
	engine, err := llm.NewWithModel(model, llm.ChatConfig{})
	require.NoError(t, err)

	got, err := engine.Condense(context.Background(), "How do I open a page?", nil)
	require.NoError(t, err)
	assert.Equal(t, "How do I open a page?", got)
	assert.Nil(t, model.messages)
}

func TestCondense_Errors(t *testing.T) {
	history := []models.Turn{{Question: "q", Answer: "a"}}

	engine, err := llm.NewWithModel(&fakeModel{err: errors.New("502 bad gateway")}, llm.ChatConfig{})
	require.NoError(t, err)
	_, err = engine.Condense(context.Background(), "follow up", history)
	assert.ErrorIs(t, err, types.ErrGeneration)

	engine, err = llm.NewWithModel(&fakeModel{response: answer("   ")}, llm.ChatConfig{})
	require.NoError(t, err)
	got, err := engine.Condense(context.Background(), "follow up", history)
	require.NoError(t, err)
	assert.Equal(t, "follow up", got)
}

func TestNewWithConfig_UnknownProvider(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{Provider: "bogus"})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestFormatSources(t *testing.T) {
	assert.Empty(t, llm.FormatSources(nil))

	got := llm.FormatSources([]models.Chunk{
		{ParentSourcePath: "a.mdx"},
		{ParentSourcePath: "b.json"},
		{ParentSourcePath: "a.mdx"},
	})
	assert.Equal(t, "Sources:\na.mdx\nb.json", got)
}
