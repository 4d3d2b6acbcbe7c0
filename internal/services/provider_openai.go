package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = openai.GPT3Dot5Turbo

// OpenAIProvider calls the Chat Completions API. The wire format has no
// separate system field, so the prompt goes out as the leading system message.
type OpenAIProvider struct {
	client      *openai.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIProvider(opts ProviderOptions) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		apiKey:      opts.APIKey,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: float32(opts.Temperature),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Configured() bool { return p.apiKey != "" }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.Messages {
		role, err := mapRole(openAIRoles, turn.Role)
		if err != nil {
			return nil, err
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		N:           1,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &UpstreamError{
			Provider: p.Name(),
			Kind:     UpstreamInvalidResponse,
			Err:      errors.New("completion contained no choices"),
		}
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: p.Name(), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{Provider: p.Name(), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &UpstreamError{Provider: p.Name(), Err: err}
}
