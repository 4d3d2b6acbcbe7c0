package services

import (
	"context"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"tokensite-backend/internal/models"
)

// SignatureStore remembers signatures already exchanged for a session.
type SignatureStore interface {
	// MarkUsed records the signature and reports false if it was already recorded.
	MarkUsed(ctx context.Context, signature string, ttl time.Duration) (bool, error)
}

// SessionIssuer signs wallet session tokens.
type SessionIssuer interface {
	GenerateWalletToken(address string, tokenID uuid.UUID, ttl time.Duration) (string, time.Time, error)
}

// AccessGrantRecorder persists issued sessions for auditing.
type AccessGrantRecorder interface {
	Record(ctx context.Context, grant *models.AccessGrant) error
}

type balanceChecker interface {
	Check(ctx context.Context, holder string) (*big.Int, error)
}

// AccessService runs the wallet login: timestamp window, signature, replay,
// balance gate, then session issuance. Each step fails fast.
type AccessService struct {
	wallet      *WalletService
	signatures  SignatureStore
	sessions    SessionIssuer
	gate        balanceChecker
	gateEnabled bool
	grants      AccessGrantRecorder
	maxAge      time.Duration
	sessionTTL  time.Duration
}

type AccessOptions struct {
	// GateRequired means a balance check is configured; a nil Gate then fails logins as misconfigured.
	GateRequired bool
	Gate         *BalanceGate
	Grants       AccessGrantRecorder
	MaxAge       time.Duration
	SessionTTL   time.Duration
}

func NewAccessService(wallet *WalletService, signatures SignatureStore, sessions SessionIssuer, opts AccessOptions) *AccessService {
	s := &AccessService{
		wallet:      wallet,
		signatures:  signatures,
		sessions:    sessions,
		gateEnabled: opts.GateRequired,
		grants:      opts.Grants,
		maxAge:      opts.MaxAge,
		sessionTTL:  opts.SessionTTL,
	}
	if opts.Gate != nil {
		s.gate = opts.Gate
		s.gateEnabled = true
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultSignatureMaxAge
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	return s
}

func (s *AccessService) Login(ctx context.Context, req models.VerificationRequest) (*models.AccessResult, error) {
	address := req.ClaimedAddress()
	if address == "" || req.Signature == "" {
		return nil, &ValidationError{Message: "Wallet address and signature are required"}
	}
	if req.Timestamp == nil {
		return nil, &ValidationError{Message: "Timestamp is required"}
	}
	if !s.wallet.IsTimestampValid(*req.Timestamp, s.maxAge) {
		return nil, &UnauthorizedError{Message: "Signature expired or timestamp invalid"}
	}

	recovered, err := s.wallet.check(address, req.Signature, s.wallet.VerificationMessage(req.Timestamp))
	switch {
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidSignatureFormat):
		return nil, &ValidationError{Message: err.Error()}
	case err != nil:
		return nil, &UnauthorizedError{Message: err.Error()}
	}

	fresh, err := s.signatures.MarkUsed(ctx, strings.ToLower(req.Signature), s.maxAge)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, &UnauthorizedError{Message: "Signature already used"}
	}

	var balance string
	if s.gateEnabled {
		if s.gate == nil {
			return nil, &MisconfiguredError{
				Label:   "Wallet verification not configured",
				Message: "Wallet verification is temporarily unavailable. Please try again later.",
			}
		}
		amount, err := s.gate.Check(ctx, recovered)
		if err != nil {
			return nil, err
		}
		balance = amount.String()
	}

	tokenID := uuid.New()
	token, expiresAt, err := s.sessions.GenerateWalletToken(recovered, tokenID, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	if s.grants != nil {
		grant := &models.AccessGrant{
			ID:        tokenID,
			Address:   recovered,
			Balance:   balance,
			IssuedAt:  time.Now().UTC(),
			ExpiresAt: expiresAt,
		}
		if err := s.grants.Record(ctx, grant); err != nil {
			log.Printf("Failed to record access grant for %s: %v", recovered, err)
		}
	}

	return &models.AccessResult{
		IsValid:          true,
		RecoveredAddress: recovered,
		Balance:          balance,
		Token:            token,
		ExpiresAt:        expiresAt,
	}, nil
}
