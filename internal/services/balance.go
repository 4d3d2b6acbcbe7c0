package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// balanceOf(address)
var balanceOfSelector = common.FromHex("0x70a08231")

// ContractCaller is the subset of *ethclient.Client the gate needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BalanceGate admits wallets holding at least a minimum amount of an ERC-20 token.
type BalanceGate struct {
	caller     ContractCaller
	token      common.Address
	minBalance *big.Int
	timeout    time.Duration
}

func NewBalanceGate(caller ContractCaller, tokenContract string, minBalance *big.Int, timeout time.Duration) (*BalanceGate, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address %q", tokenContract)
	}
	if minBalance == nil {
		minBalance = new(big.Int)
	}
	return &BalanceGate{
		caller:     caller,
		token:      common.HexToAddress(tokenContract),
		minBalance: minBalance,
		timeout:    timeout,
	}, nil
}

// BalanceOf reads the holder's token balance in base units at the latest block.
func (g *BalanceGate) BalanceOf(ctx context.Context, holder string) (*big.Int, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data := make([]byte, 0, len(balanceOfSelector)+common.HashLength)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(holder).Bytes(), common.HashLength)...)

	out, err := g.caller.CallContract(ctx, ethereum.CallMsg{To: &g.token, Data: data}, nil)
	if err != nil {
		return nil, &UpstreamError{Provider: "rpc", Err: err}
	}
	if len(out) < common.HashLength {
		return nil, &UpstreamError{
			Provider: "rpc",
			Kind:     UpstreamInvalidResponse,
			Err:      fmt.Errorf("balanceOf returned %d bytes", len(out)),
		}
	}
	return new(big.Int).SetBytes(out[:common.HashLength]), nil
}

// Check returns the holder's balance, or a ForbiddenError when it is below the minimum.
func (g *BalanceGate) Check(ctx context.Context, holder string) (*big.Int, error) {
	balance, err := g.BalanceOf(ctx, holder)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(g.minBalance) < 0 {
		return balance, &ForbiddenError{Message: "Insufficient token balance"}
	}
	return balance, nil
}

// ParseTokenAmount converts a decimal amount of whole tokens ("1500", "0.5") to base units.
func ParseTokenAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return new(big.Int), nil
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid token amount %q", amount)
	}
	return n, nil
}
