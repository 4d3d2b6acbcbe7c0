package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"tokensite-backend/internal/middleware"
	"tokensite-backend/internal/models"
	"tokensite-backend/internal/services"
)

const genericUnavailable = "Something went wrong on our side. Please try again later."

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(label, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     label,
		Message:   message,
		RequestID: middleware.GetRequestID(r),
	}
}

// MethodNotAllowed is installed on the router for known paths hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResp("Method not allowed", "This endpoint does not support "+r.Method+" requests.", r))
}

// handleServiceError translates service errors into the public error taxonomy.
// Internal detail is only attached when exposeDetails is set (development).
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, exposeDetails bool) {
	var (
		validation   *services.ValidationError
		unauthorized *services.UnauthorizedError
		forbidden    *services.ForbiddenError
		rateLimited  *services.RateLimitError
		misconfig    *services.MisconfiguredError
		upstream     *services.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResp(validation.Message, "Please check your request and try again.", r))
		return
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResp(unauthorized.Message, "Wallet verification failed. Please sign the message again.", r))
		return
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResp(forbidden.Message, "This wallet does not meet the access requirements.", r))
		return
	case errors.As(err, &rateLimited):
		seconds := int(math.Ceil(rateLimited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		resp := errorResp("Rate limit exceeded", rateLimited.Message, r)
		resp.RetryAfter = seconds
		writeJSON(w, http.StatusTooManyRequests, resp)
		return
	}

	log.Printf("[%s] %s %s failed: %v", middleware.GetRequestID(r), r.Method, r.URL.Path, err)

	var resp models.ErrorResponse
	switch {
	case errors.As(err, &misconfig):
		resp = errorResp(misconfig.Label, misconfig.Message, r)
	case errors.As(err, &upstream):
		resp = errorResp(upstreamLabel(upstream), genericUnavailable, r)
	default:
		resp = errorResp("Internal server error", genericUnavailable, r)
	}
	if exposeDetails {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func upstreamLabel(e *services.UpstreamError) string {
	if e.Provider == "rpc" {
		return "Blockchain service error"
	}
	if e.Kind == services.UpstreamInvalidResponse {
		return "Invalid response from AI service"
	}
	return "AI service error"
}
