package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tokensite-backend/internal/models"
)

func TestOpenAIProvider_LeadsWithSystemMessage(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Welcome aboard."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL + "/v1", MaxTokens: 200})
	completion, err := provider.Complete(context.Background(), CompletionRequest{
		System: "be helpful",
		Messages: []Turn{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAI, Content: "hello"},
			{Role: models.RoleUser, Content: "tell me more"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Text != "Welcome aboard." || completion.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected completion %+v", completion)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(captured.Messages))
	}
	for i, role := range wantRoles {
		if captured.Messages[i].Role != role {
			t.Fatalf("message %d: expected role %q, got %q", i, role, captured.Messages[i].Role)
		}
	}
	if captured.Messages[0].Content != "be helpful" {
		t.Fatalf("unexpected system content %q", captured.Messages[0].Content)
	}
}

func TestOpenAIProvider_WrapsStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	_, err := provider.Complete(context.Background(), CompletionRequest{Messages: []Turn{{Role: models.RoleUser, Content: "hi"}}})

	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 UpstreamError, got %v", err)
	}
}

func TestOpenAIProvider_RejectsUnknownRole(t *testing.T) {
	provider := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: "http://127.0.0.1:0/v1"})
	if _, err := provider.Complete(context.Background(), CompletionRequest{Messages: []Turn{{Role: "system", Content: "x"}}}); err == nil {
		t.Fatalf("expected error for unmapped role")
	}
}

func TestRoleTables(t *testing.T) {
	tests := []struct {
		name  string
		table map[string]string
		ai    string
	}{
		{"anthropic", anthropicRoles, "assistant"},
		{"openai", openAIRoles, "assistant"},
		{"gemini", geminiRoles, "model"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got, err := mapRole(tc.table, models.RoleAI); err != nil || got != tc.ai {
				t.Fatalf("ai mapped to %q (%v), want %q", got, err, tc.ai)
			}
			if got, err := mapRole(tc.table, models.RoleUser); err != nil || got != "user" {
				t.Fatalf("user mapped to %q (%v)", got, err)
			}
			if _, err := mapRole(tc.table, "assistant"); err == nil {
				t.Fatalf("expected upstream vocabulary to be rejected as input")
			}
		})
	}
}
