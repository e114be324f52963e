package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider serves rewrite requests directly against the OpenAI
// API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider using the given API key and
// model name.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Rewrite sends the prompt plus selection context and extracts any
// replacement text from the reply.
func (p *OpenAIProvider) Rewrite(ctx context.Context, req Request) (*Response, error) {
	var user strings.Builder
	if block := contextBlock(req); block != "" {
		user.WriteString(block)
		user.WriteString("\n")
	}
	user.WriteString(req.Prompt)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai rewrite: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai rewrite: empty response")
	}

	text := resp.Choices[0].Message.Content
	return &Response{
		Reply: text,
		LaTeX: extractReplacement(text),
	}, nil
}
