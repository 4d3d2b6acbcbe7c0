package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationRequest carries a wallet's signature over the site challenge.
// WalletAddress is accepted as an alias of Address for the login flow.
type VerificationRequest struct {
	Address       string `json:"address"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Signature     string `json:"signature"`
	Timestamp     *int64 `json:"timestamp,omitempty"`
}

// ClaimedAddress returns whichever address field the client populated.
func (r VerificationRequest) ClaimedAddress() string {
	if r.Address != "" {
		return r.Address
	}
	return r.WalletAddress
}

type VerificationResult struct {
	IsValid          bool   `json:"isValid"`
	RecoveredAddress string `json:"recoveredAddress,omitempty"`
	Error            string `json:"error,omitempty"`
}

// SignatureCheckRequest verifies a signature over a caller-supplied message.
type SignatureCheckRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type SignatureCheckResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type VerificationMessageResponse struct {
	Message   string `json:"message"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// AccessResult is returned after a successful wallet login.
type AccessResult struct {
	IsValid          bool      `json:"isValid"`
	RecoveredAddress string    `json:"recoveredAddress"`
	Balance          string    `json:"balance,omitempty"`
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// AccessGrant is the audit record of an issued wallet session.
type AccessGrant struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Balance   string    `json:"balance"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expiresAt"`
}
