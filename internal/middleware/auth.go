package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	WalletKey        contextKey = "wallet_address"
	SessionExpiryKey contextKey = "session_expires_at"
)

// WalletClaims are carried by wallet session tokens.
type WalletClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

type JWTAuth struct {
	Secret []byte
	now    func() time.Time
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret), now: time.Now}
}

// GenerateWalletToken creates an HS256 session token for a verified wallet.
func (j *JWTAuth) GenerateWalletToken(address string, tokenID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(ttl).UTC().Truncate(time.Second)
	claims := WalletClaims{
		Wallet: strings.ToLower(address),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   strings.ToLower(address),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseWalletToken validates a session token and returns its claims.
func (j *JWTAuth) ParseWalletToken(tokenStr string) (*WalletClaims, error) {
	claims := &WalletClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Wallet == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware validates the session JWT and attaches the wallet address to context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid authorization format", r)
			return
		}

		claims, err := j.ParseWalletToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "Token expired", "Session has expired. Please verify your wallet again.", r)
			} else {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), WalletKey, claims.Wallet)
		if claims.ExpiresAt != nil {
			ctx = context.WithValue(ctx, SessionExpiryKey, claims.ExpiresAt.Time)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWalletAddress extracts the session wallet from request context
func GetWalletAddress(ctx context.Context) string {
	addr, _ := ctx.Value(WalletKey).(string)
	return addr
}

// GetSessionExpiry extracts the session expiry from request context
func GetSessionExpiry(ctx context.Context) time.Time {
	t, _ := ctx.Value(SessionExpiryKey).(time.Time)
	return t
}

func writeError(w http.ResponseWriter, status int, label, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     label,
		"message":   message,
		"requestId": GetRequestID(r),
	})
}
