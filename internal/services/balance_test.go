package services

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const testTokenContract = "0x1111111111111111111111111111111111111111"

type stubCaller struct {
	balance *big.Int
	out     []byte
	err     error

	lastMsg ethereum.CallMsg
}

func (c *stubCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.lastMsg = msg
	if c.err != nil {
		return nil, c.err
	}
	if c.out != nil {
		return c.out, nil
	}
	return common.LeftPadBytes(c.balance.Bytes(), 32), nil
}

func TestBalanceGate_EncodesBalanceOfCall(t *testing.T) {
	caller := &stubCaller{balance: big.NewInt(42)}
	gate, err := NewBalanceGate(caller, testTokenContract, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	holder := "0x2222222222222222222222222222222222222222"
	balance, err := gate.BalanceOf(context.Background(), holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Int64() != 42 {
		t.Fatalf("expected 42, got %s", balance)
	}

	if caller.lastMsg.To == nil || *caller.lastMsg.To != common.HexToAddress(testTokenContract) {
		t.Fatalf("expected call to token contract, got %v", caller.lastMsg.To)
	}
	data := caller.lastMsg.Data
	if len(data) != 36 {
		t.Fatalf("expected 36 bytes of calldata, got %d", len(data))
	}
	if !bytes.Equal(data[:4], common.FromHex("0x70a08231")) {
		t.Fatalf("unexpected selector %x", data[:4])
	}
	if !bytes.Equal(data[4:16], make([]byte, 12)) || !bytes.Equal(data[16:], common.HexToAddress(holder).Bytes()) {
		t.Fatalf("unexpected address argument %x", data[4:])
	}
}

func TestBalanceGate_Check(t *testing.T) {
	minBalance := big.NewInt(1000)

	tests := []struct {
		name      string
		balance   int64
		forbidden bool
	}{
		{"below minimum", 999, true},
		{"at minimum", 1000, false},
		{"above minimum", 5000, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate, err := NewBalanceGate(&stubCaller{balance: big.NewInt(tc.balance)}, testTokenContract, minBalance, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err = gate.Check(context.Background(), "0x2222222222222222222222222222222222222222")
			var forbidden *ForbiddenError
			if got := errors.As(err, &forbidden); got != tc.forbidden {
				t.Fatalf("expected forbidden=%v, got err %v", tc.forbidden, err)
			}
		})
	}
}

func TestBalanceGate_RPCFailures(t *testing.T) {
	tests := []struct {
		name     string
		caller   *stubCaller
		wantKind UpstreamKind
	}{
		{"node error", &stubCaller{err: errors.New("connection refused")}, UpstreamFailed},
		{"short return data", &stubCaller{out: []byte{0x01}}, UpstreamInvalidResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate, err := NewBalanceGate(tc.caller, testTokenContract, nil, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err = gate.Check(context.Background(), "0x2222222222222222222222222222222222222222")
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if upstream.Provider != "rpc" || upstream.Kind != tc.wantKind {
				t.Fatalf("unexpected upstream error %+v", upstream)
			}
		})
	}
}

func TestNewBalanceGate_RejectsBadContract(t *testing.T) {
	if _, err := NewBalanceGate(&stubCaller{}, "not-an-address", nil, 0); err == nil {
		t.Fatalf("expected error for invalid contract address")
	}
}

func TestParseTokenAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"", 18, "0", false},
		{"0", 18, "0", false},
		{"1500", 18, "1500000000000000000000", false},
		{"0.5", 18, "500000000000000000", false},
		{"12.345", 6, "12345000", false},
		{"7", 0, "7", false},
		{"1.1234567", 6, "", true},
		{"abc", 18, "", true},
		{"-1", 18, "", true},
	}

	for _, tc := range tests {
		got, err := ParseTokenAmount(tc.amount, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTokenAmount(%q, %d) expected error, got %s", tc.amount, tc.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTokenAmount(%q, %d) unexpected error: %v", tc.amount, tc.decimals, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseTokenAmount(%q, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}
