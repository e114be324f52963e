package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider serves rewrite requests directly against the
// Anthropic API, with no study-sheet server in between.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider using the given API key and
// model name.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Rewrite sends the prompt plus selection context and extracts any
// replacement text from the reply.
func (p *AnthropicProvider) Rewrite(ctx context.Context, req Request) (*Response, error) {
	var user strings.Builder
	if block := contextBlock(req); block != "" {
		user.WriteString(block)
		user.WriteString("\n")
	}
	user.WriteString(req.Prompt)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user.String())),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic rewrite: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	text := reply.String()
	return &Response{
		Reply: text,
		LaTeX: extractReplacement(text),
	}, nil
}
