package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Turn is one prior message in the internal vocabulary ("user" / "ai").
type Turn struct {
	Role    string
	Content string
}

// CompletionRequest keeps the system prompt apart from the turn list.
// Each provider decides how the two are laid out on the wire.
type CompletionRequest struct {
	System   string
	Messages []Turn
}

type Completion struct {
	Text  string
	Model string
}

// Completer is a hosted chat-completion provider.
type Completer interface {
	Name() string
	// Configured is false when no credential was supplied; Complete must not be called then.
	Configured() bool
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// ProviderOptions are shared by all completion providers.
type ProviderOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Upstream role vocabularies, keyed by the internal role.
var (
	anthropicRoles = map[string]string{"user": "user", "ai": "assistant"}
	openAIRoles    = map[string]string{"user": "user", "ai": "assistant"}
	geminiRoles    = map[string]string{"user": "user", "ai": "model"}
)

func mapRole(table map[string]string, role string) (string, error) {
	mapped, ok := table[role]
	if !ok {
		return "", fmt.Errorf("no upstream role for %q", role)
	}
	return mapped, nil
}

// DefaultRetryAfter is reported when a rate-limited provider gives no hint.
const DefaultRetryAfter = 60 * time.Second

// parseRetryAfter reads a Retry-After header in either delta-seconds or HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	val := h.Get("Retry-After")
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
