package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

const defaultSystemTemplate = "You are a helpful assistant with access to the following documentation. Answer questions based on this context."

const defaultPromptTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Use three sentences maximum and keep the answer as concise as possible.
Always say "thanks for asking!" at the end of the answer.

{{.context}}

Question: {{.question}}

Helpful Answer:`

const condenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string // "openai" or "ollama"
	Model          string
	BaseURL        string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	// PromptTemplate is a Go template with {{.context}} and {{.question}}.
	PromptTemplate string
	Timeout        time.Duration
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config   ChatConfig
	llm      llms.Model
	prompt   prompts.PromptTemplate
	condense prompts.PromptTemplate
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	var model llms.Model

	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, types.Wrap(types.ErrConfiguration, "ollama chat", err)
		}
		model = llm
	case "openai", "":
		if config.Model == "" {
			config.Model = "gpt-4o"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, types.Wrap(types.ErrConfiguration, "openai chat", err)
		}
		model = llm
	default:
		return nil, types.Wrap(types.ErrConfiguration, "chat", fmt.Errorf("unknown provider %q", config.Provider))
	}

	return NewWithModel(model, config)
}

// NewWithModel creates a ChatEngine around an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = defaultPromptTemplate
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	prompt := prompts.NewPromptTemplate(config.PromptTemplate, []string{"context", "question"})
	if _, err := prompt.Format(map[string]any{"context": "", "question": ""}); err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &ChatEngine{
		config:   config,
		llm:      model,
		prompt:   prompt,
		condense: prompts.NewPromptTemplate(condenseTemplate, []string{"chat_history", "question"}),
	}, nil
}

// Generate answers question from the retrieved chunks, continuing the
// conversation in history.
func (ce *ChatEngine) Generate(ctx context.Context, question string, docs []models.Chunk, history []models.Turn) (string, error) {
	human, err := ce.prompt.Format(map[string]any{
		"context":  formatContext(docs),
		"question": question,
	})
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "format prompt", err)
	}

	content := make([]llms.MessageContent, 0, 2+2*len(history))
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate))
	for _, turn := range history {
		content = append(content,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.Question),
			llms.TextParts(llms.ChatMessageTypeAI, turn.Answer),
		)
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, human))

	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "chat", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", types.Wrap(types.ErrGeneration, "chat", fmt.Errorf("no response from LLM"))
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Condense rewrites a follow-up question into a standalone one using the
// conversation so far. Without history the question is returned unchanged.
func (ce *ChatEngine) Condense(ctx context.Context, question string, history []models.Turn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	prompt, err := ce.condense.Format(map[string]any{
		"chat_history": formatHistory(history),
		"question":     question,
	})
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "format condense prompt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	response, err := ce.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "condense", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", types.Wrap(types.ErrGeneration, "condense", fmt.Errorf("no response from LLM"))
	}

	standalone := strings.TrimSpace(response.Choices[0].Content)
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

func formatHistory(history []models.Turn) string {
	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "Human: %s\nAssistant: %s\n", turn.Question, turn.Answer)
	}
	return strings.TrimSpace(b.String())
}

func formatContext(docs []models.Chunk) string {
	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", doc.ParentSourcePath, doc.Text))
	}
	return strings.TrimSpace(contextBuilder.String())
}

// FormatSources formats the distinct sources of docs for citation.
func FormatSources(docs []models.Chunk) string {
	if docs == nil {
		return ""
	}

	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		if !seen[doc.ParentSourcePath] {
			sources = append(sources, doc.ParentSourcePath)
			seen[doc.ParentSourcePath] = true
		}
	}

	if len(sources) == 0 {
		return ""
	}

	return fmt.Sprintf("Sources:\n%s", strings.Join(sources, "\n"))
}
