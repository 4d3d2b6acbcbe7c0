package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	rateChan    chan struct{} // Token bucket
}

// NewGeminiProvider leaves the client nil when no API key is set, so the
// provider reports itself unconfigured instead of falling back to ambient credentials.
func NewGeminiProvider(ctx context.Context, opts ProviderOptions, concurrentReqs int) (*GeminiProvider, error) {
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	if concurrentReqs <= 0 {
		concurrentReqs = 5
	}

	// Token bucket for concurrent requests
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	p := &GeminiProvider{
		model:       model,
		maxTokens:   int32(opts.MaxTokens),
		temperature: float32(opts.Temperature),
		rateChan:    rateChan,
	}
	if opts.APIKey == "" {
		return p, nil
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Configured() bool { return p.client != nil }

// acquireRate blocks until a rate slot is available
func (p *GeminiProvider) acquireRate(ctx context.Context) error {
	select {
	case <-p.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *GeminiProvider) releaseRate() {
	p.rateChan <- struct{}{}
}

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini: no message to send")
	}
	if err := p.acquireRate(ctx); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Err: err}
	}
	defer p.releaseRate()

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(p.temperature)
	if p.maxTokens > 0 {
		model.SetMaxOutputTokens(p.maxTokens)
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, turn := range req.Messages[:len(req.Messages)-1] {
		role, err := mapRole(geminiRoles, turn.Role)
		if err != nil {
			return nil, err
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, p.wrapError(err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &UpstreamError{
			Provider: p.Name(),
			Kind:     UpstreamInvalidResponse,
			Err:      errors.New("completion contained no text"),
		}
	}
	return &Completion{Text: text, Model: p.model}, nil
}

func (p *GeminiProvider) wrapError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &UpstreamError{Provider: p.Name(), Kind: UpstreamInvalidResponse, Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &UpstreamError{
			Provider:   p.Name(),
			StatusCode: gErr.Code,
			RetryAfter: parseRetryAfter(gErr.Header, time.Now()),
			Err:        err,
		}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPCode()
		if status <= 0 && apiErr.GRPCStatus() != nil {
			status = grpcCodeToHTTP(apiErr.GRPCStatus().Code())
		}
		if status < 0 {
			status = 0
		}
		return &UpstreamError{Provider: p.Name(), StatusCode: status, Err: err}
	}

	return &UpstreamError{Provider: p.Name(), Err: err}
}

func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
