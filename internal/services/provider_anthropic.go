package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicProvider calls the Messages API. The system prompt travels in the
// dedicated system parameter, never as a turn.
type AnthropicProvider struct {
	client      anthropic.Client
	apiKey      string
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicProvider(opts ProviderOptions) *AnthropicProvider {
	reqOpts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(opts.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(opts.BaseURL))
	}

	model := opts.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		apiKey:      opts.APIKey,
		model:       model,
		maxTokens:   int64(opts.MaxTokens),
		temperature: opts.Temperature,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Configured() bool { return p.apiKey != "" }

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, turn := range req.Messages {
		role, err := mapRole(anthropicRoles, turn.Role)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(p.temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &UpstreamError{
			Provider: p.Name(),
			Kind:     UpstreamInvalidResponse,
			Err:      errors.New("completion contained no text"),
		}
	}

	model := string(msg.Model)
	if model == "" {
		model = p.model
	}
	return &Completion{Text: text.String(), Model: model}, nil
}

func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		upstream := &UpstreamError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Err: err}
		if apiErr.Response != nil {
			upstream.RetryAfter = parseRetryAfter(apiErr.Response.Header, time.Now())
		}
		return upstream
	}
	return &UpstreamError{Provider: p.Name(), Err: err}
}
