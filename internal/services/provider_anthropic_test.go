package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tokensite-backend/internal/models"
)

type anthropicWireRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func newAnthropicServer(t *testing.T, handler func(w http.ResponseWriter, req anthropicWireRequest)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req anthropicWireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestAnthropicProvider_SendsSystemSeparatelyAndMapsRoles(t *testing.T) {
	var captured anthropicWireRequest
	srv, _ := newAnthropicServer(t, func(w http.ResponseWriter, req anthropicWireRequest) {
		captured = req
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"The token powers staking."}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	})

	provider := NewAnthropicProvider(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL + "/", MaxTokens: 1000})
	svc := NewChatService(provider, ChatOptions{})

	resp, err := svc.Handle(context.Background(), models.ChatRequest{
		Message: "What does the token do?",
		ConversationHistory: []models.HistoryEntry{
			{Role: models.RoleUser, Content: "Hi"},
			{Role: models.RoleAI, Content: "Hello! How can I help?"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != "The token powers staking." {
		t.Fatalf("unexpected response %q", resp.Response)
	}

	if len(captured.System) != 1 || captured.System[0].Text != DefaultSystemPrompt {
		t.Fatalf("expected system prompt in the system field, got %+v", captured.System)
	}
	wantRoles := []string{"user", "assistant", "user"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(captured.Messages))
	}
	for i, role := range wantRoles {
		if captured.Messages[i].Role != role {
			t.Fatalf("message %d: expected role %q, got %q", i, role, captured.Messages[i].Role)
		}
	}
	if captured.Messages[2].Content[0].Text != "What does the token do?" {
		t.Fatalf("expected user message last, got %+v", captured.Messages[2])
	}
	if captured.MaxTokens != 1000 || captured.Model != DefaultAnthropicModel {
		t.Fatalf("unexpected model parameters %q / %d", captured.Model, captured.MaxTokens)
	}
}

func TestAnthropicProvider_RateLimitCarriesRetryAfter(t *testing.T) {
	srv, hits := newAnthropicServer(t, func(w http.ResponseWriter, req anthropicWireRequest) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	provider := NewAnthropicProvider(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL + "/", MaxTokens: 100})
	_, err := provider.Complete(context.Background(), CompletionRequest{
		System:   "sys",
		Messages: []Turn{{Role: models.RoleUser, Content: "hi"}},
	})

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests || upstream.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Fatalf("expected a single attempt, got %d", atomic.LoadInt32(hits))
	}

	_, err = NewChatService(provider, ChatOptions{}).Handle(context.Background(), models.ChatRequest{Message: "hi"})
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 7*time.Second {
		t.Fatalf("expected RateLimitError with 7s, got %v", err)
	}
}

func TestAnthropicProvider_UnauthorizedBecomesMisconfigured(t *testing.T) {
	srv, _ := newAnthropicServer(t, func(w http.ResponseWriter, req anthropicWireRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	provider := NewAnthropicProvider(ProviderOptions{APIKey: "bad-key", BaseURL: srv.URL + "/", MaxTokens: 100})
	_, err := NewChatService(provider, ChatOptions{}).Handle(context.Background(), models.ChatRequest{Message: "hi"})
	var misconfig *MisconfiguredError
	if !errors.As(err, &misconfig) {
		t.Fatalf("expected MisconfiguredError, got %v", err)
	}
}

func TestAnthropicProvider_EmptyContentIsInvalidResponse(t *testing.T) {
	srv, _ := newAnthropicServer(t, func(w http.ResponseWriter, req anthropicWireRequest) {
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	})

	provider := NewAnthropicProvider(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL + "/", MaxTokens: 100})
	_, err := provider.Complete(context.Background(), CompletionRequest{Messages: []Turn{{Role: models.RoleUser, Content: "hi"}}})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.Kind != UpstreamInvalidResponse {
		t.Fatalf("expected invalid response error, got %v", err)
	}
}

func TestAnthropicProvider_MissingKeyNeverCallsUpstream(t *testing.T) {
	srv, hits := newAnthropicServer(t, func(w http.ResponseWriter, req anthropicWireRequest) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	provider := NewAnthropicProvider(ProviderOptions{BaseURL: srv.URL + "/"})
	if provider.Configured() {
		t.Fatalf("provider without key must not report configured")
	}

	_, err := NewChatService(provider, ChatOptions{}).Handle(context.Background(), models.ChatRequest{Message: "hi"})
	var misconfig *MisconfiguredError
	if !errors.As(err, &misconfig) || misconfig.Label != "AI service not configured" {
		t.Fatalf("expected not configured error, got %v", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("expected no upstream calls, got %d", atomic.LoadInt32(hits))
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"missing", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.value != "" {
				h.Set("Retry-After", tc.value)
			}
			if got := parseRetryAfter(h, now); got != tc.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
