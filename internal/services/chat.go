package services

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tokensite-backend/internal/models"
)

// HistoryLimit is how many prior turns are forwarded upstream.
const HistoryLimit = 6

const DefaultSystemPrompt = `You are the official assistant for the TokenSite ecosystem website. You help visitors understand the token, its utility, the swap, staking and holder access features, the roadmap, and how to use supported wallets safely.

Scope:
- Answer questions about the ecosystem, the token, wallets, swaps and general blockchain concepts.
- Politely decline unrelated requests and steer the conversation back to the ecosystem.
- Never give financial, investment or tax advice and never predict prices.
- Never ask for seed phrases, private keys or passwords. Remind users that the team will never ask for them.

Style:
- Be concise, friendly and accurate. Keep answers under 150 words unless the user asks for detail.
- Write in plain conversational sentences and short paragraphs.
- Do not use markdown. Do not use headings, bullet points, numbered lists, asterisks, pound signs or bold text.
- If you are unsure of a fact, say so and point the user to the official documentation or community channels.`

type ChatService struct {
	provider     Completer
	systemPrompt string
	timeout      time.Duration
	stripMarkup  bool
}

type ChatOptions struct {
	SystemPrompt string
	Timeout      time.Duration
	StripMarkup  bool
}

func NewChatService(provider Completer, opts ChatOptions) *ChatService {
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &ChatService{
		provider:     provider,
		systemPrompt: prompt,
		timeout:      opts.Timeout,
		stripMarkup:  opts.StripMarkup,
	}
}

// Handle validates the request, forwards it with a bounded history and maps
// provider failures onto the service error types.
func (s *ChatService) Handle(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &ValidationError{Message: "Message is required"}
	}

	if s.provider == nil || !s.provider.Configured() {
		return nil, &MisconfiguredError{
			Label:   "AI service not configured",
			Message: "The AI assistant is temporarily unavailable. Please try again later.",
		}
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	turns := recentTurns(req.ConversationHistory, HistoryLimit)
	turns = append(turns, Turn{Role: models.RoleUser, Content: message})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	completion, err := s.provider.Complete(ctx, CompletionRequest{
		System:   s.systemPrompt,
		Messages: turns,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	text := completion.Text
	if s.stripMarkup {
		text = StripMarkup(text)
	}

	return &models.ChatResponse{
		Response: text,
		Model:    completion.Model,
		Category: category,
	}, nil
}

// recentTurns keeps the last limit entries in order, then drops entries that
// cannot be forwarded (missing role or content, unknown role).
func recentTurns(history []models.HistoryEntry, limit int) []Turn {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	turns := make([]Turn, 0, len(history)+1)
	for _, entry := range history {
		if entry.Role == "" || strings.TrimSpace(entry.Content) == "" {
			continue
		}
		if entry.Role != models.RoleUser && entry.Role != models.RoleAI {
			continue
		}
		turns = append(turns, Turn{Role: entry.Role, Content: entry.Content})
	}
	return turns
}

func (s *ChatService) mapError(err error) error {
	log.Printf("AI provider %s error: %v", s.provider.Name(), err)

	upstream, ok := err.(*UpstreamError)
	if !ok {
		return &UpstreamError{Provider: s.provider.Name(), Err: err}
	}

	switch upstream.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := upstream.RetryAfter
		if retryAfter <= 0 {
			retryAfter = DefaultRetryAfter
		}
		return &RateLimitError{
			Message:    "The AI assistant is receiving too many requests. Please try again shortly.",
			RetryAfter: retryAfter,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &MisconfiguredError{
			Label:   "AI service authentication failed",
			Message: "The AI assistant is temporarily unavailable. Please try again later.",
			Err:     err,
		}
	}
	return upstream
}

var (
	headingPattern  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	bulletPattern   = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`)
	emphasisPattern = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
)

// StripMarkup removes heading, list and bold markers the system prompt asks the model not to emit.
func StripMarkup(text string) string {
	text = headingPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "$2")
	return strings.TrimSpace(text)
}
