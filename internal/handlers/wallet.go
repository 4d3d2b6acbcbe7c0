package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tokensite-backend/internal/middleware"
	"tokensite-backend/internal/models"
	"tokensite-backend/internal/services"
)

type WalletHandler struct {
	walletService *services.WalletService
	accessService *services.AccessService
	maxAge        time.Duration
	exposeDetails bool
}

func NewWalletHandler(walletService *services.WalletService, accessService *services.AccessService, maxAge time.Duration, exposeDetails bool) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		accessService: accessService,
		maxAge:        maxAge,
		exposeDetails: exposeDetails,
	}
}

// Message returns the challenge the wallet should sign.
func (h *WalletHandler) Message(w http.ResponseWriter, r *http.Request) {
	var timestamp *int64
	if raw := r.URL.Query().Get("timestamp"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResp("Invalid timestamp", "Timestamp must be unix milliseconds.", r))
			return
		}
		timestamp = &ts
	}

	writeJSON(w, http.StatusOK, models.VerificationMessageResponse{
		Message:   h.walletService.VerificationMessage(timestamp),
		Timestamp: timestamp,
	})
}

// VerifySignature checks a signature over a caller-supplied message.
func (h *WalletHandler) VerifySignature(w http.ResponseWriter, r *http.Request) {
	var req models.SignatureCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.SignatureCheckResponse{Error: "Invalid request body"})
		return
	}
	if req.Address == "" || req.Signature == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, models.SignatureCheckResponse{Error: "Address, signature and message are required"})
		return
	}

	result := h.walletService.VerifyMessage(req.Address, req.Signature, req.Message)
	if result.IsValid {
		writeJSON(w, http.StatusOK, models.SignatureCheckResponse{Success: true})
		return
	}
	writeJSON(w, verificationFailureStatus(result), models.SignatureCheckResponse{Error: result.Error})
}

// Verify checks a signature over the site challenge and reports the outcome in the body.
func (h *WalletHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.VerificationResult{Error: "Invalid request body"})
		return
	}
	address := req.ClaimedAddress()
	if address == "" || req.Signature == "" {
		writeJSON(w, http.StatusBadRequest, models.VerificationResult{Error: "Wallet address and signature are required"})
		return
	}

	if req.Timestamp != nil && !h.walletService.IsTimestampValid(*req.Timestamp, h.maxAge) {
		writeJSON(w, http.StatusOK, models.VerificationResult{Error: "Signature expired or timestamp invalid"})
		return
	}

	result := h.walletService.Verify(address, req.Signature, req.Timestamp)
	status := http.StatusOK
	if !result.IsValid && verificationFailureStatus(result) == http.StatusBadRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// Login exchanges a fresh signature for a session token.
func (h *WalletHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body", "Request body must be valid JSON.", r))
		return
	}

	result, err := h.accessService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err, h.exposeDetails)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Session describes the wallet session attached by the JWT middleware.
func (h *WalletHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SessionResponse{
		Address:   middleware.GetWalletAddress(r.Context()),
		ExpiresAt: middleware.GetSessionExpiry(r.Context()),
	})
}

func verificationFailureStatus(result models.VerificationResult) int {
	switch result.Error {
	case services.ErrInvalidAddress.Error(), services.ErrInvalidSignatureFormat.Error():
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}
