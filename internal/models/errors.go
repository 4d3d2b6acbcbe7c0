package models

// ErrorResponse is the body of every non-2xx response.
// Error is a stable short label, Message is safe to show to end users.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds
	Details    string `json:"details,omitempty"`    // development only
	RequestID  string `json:"requestId,omitempty"`
}
