package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"tokensite-backend/internal/models"
)

// DefaultChallenge is the text wallets are asked to sign.
const DefaultChallenge = "Welcome to TokenSite!\n\nSign this message to verify that you own this wallet. This request will not trigger a blockchain transaction or cost any gas fees."

// DefaultSignatureMaxAge bounds how old a signed timestamp may be.
const DefaultSignatureMaxAge = 10 * time.Minute

var (
	ErrInvalidAddress              = errors.New("Invalid address")
	ErrInvalidSignatureFormat      = errors.New("Invalid signature format")
	ErrSignatureVerificationFailed = errors.New("Signature verification failed")
	ErrSignatureMismatch           = errors.New("Signature does not match address")
)

// 65-byte r||s||v signature, hex encoded with 0x prefix.
var signatureRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)

type WalletService struct {
	challenge string
	now       func() time.Time
}

func NewWalletService(challenge string) *WalletService {
	if challenge == "" {
		challenge = DefaultChallenge
	}
	return &WalletService{challenge: challenge, now: time.Now}
}

// VerificationMessage returns the exact string a wallet must sign.
func (s *WalletService) VerificationMessage(timestamp *int64) string {
	if timestamp == nil {
		return s.challenge
	}
	return s.challenge + "\nTimestamp: " + strconv.FormatInt(*timestamp, 10)
}

// Verify checks a signature over the site challenge, optionally bound to a timestamp.
func (s *WalletService) Verify(address, signature string, timestamp *int64) models.VerificationResult {
	return s.VerifyMessage(address, signature, s.VerificationMessage(timestamp))
}

// VerifyMessage checks that address produced signature over message.
func (s *WalletService) VerifyMessage(address, signature, message string) models.VerificationResult {
	recovered, err := s.check(address, signature, message)
	if err != nil {
		return models.VerificationResult{IsValid: false, RecoveredAddress: recovered, Error: err.Error()}
	}
	return models.VerificationResult{IsValid: true, RecoveredAddress: recovered}
}

// IsTimestampValid reports whether timestamp (unix millis) lies within maxAge before now.
// Timestamps in the future are rejected.
func (s *WalletService) IsTimestampValid(timestamp int64, maxAge time.Duration) bool {
	return timestampWithinWindow(timestamp, s.now().UnixMilli(), maxAge)
}

func timestampWithinWindow(timestamp, nowMillis int64, maxAge time.Duration) bool {
	age := nowMillis - timestamp
	return age >= 0 && age <= maxAge.Milliseconds()
}

// check returns the lowercase recovered address. It is non-empty on mismatch too.
func (s *WalletService) check(address, signature, message string) (string, error) {
	if !isCanonicalAddress(address) {
		return "", ErrInvalidAddress
	}
	if !signatureRegex.MatchString(signature) {
		return "", ErrInvalidSignatureFormat
	}

	recovered, err := recoverAddress(message, signature)
	if err != nil {
		return "", ErrSignatureVerificationFailed
	}

	recoveredHex := strings.ToLower(recovered.Hex())
	if recoveredHex != strings.ToLower(address) {
		return recoveredHex, ErrSignatureMismatch
	}
	return recoveredHex, nil
}

// recoverAddress applies the personal_sign (EIP-191) recovery procedure.
func recoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("bad signature length")
	}

	// Wallets emit v as 27/28, the recovery function wants 0/1.
	switch sig[crypto.RecoveryIDOffset] {
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	case 0, 1:
	default:
		return common.Address{}, errors.New("bad recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// isCanonicalAddress accepts 0x-prefixed 20-byte hex. Mixed-case input must carry a valid EIP-55 checksum.
func isCanonicalAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return false
	}
	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(address).Hex() == address
}
