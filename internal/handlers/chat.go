package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tokensite-backend/internal/models"
	"tokensite-backend/internal/services"
)

type ChatHandler struct {
	chatService   *services.ChatService
	exposeDetails bool
}

func NewChatHandler(chatService *services.ChatService, exposeDetails bool) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		exposeDetails: exposeDetails,
	}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// A non-string message is treated like a missing one.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "message" {
			writeJSON(w, http.StatusBadRequest, errorResp("Message is required", "Please enter a message.", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body", "Request body must be valid JSON.", r))
		return
	}

	resp, err := h.chatService.Handle(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err, h.exposeDetails)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
