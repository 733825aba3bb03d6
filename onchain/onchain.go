// Package onchain gives agents read and write access to an EVM chain:
// get_balance reads a native balance and transfer_funds signs and submits an
// EIP-1559 value transfer from the treasury key. transfer_funds is meant to
// be bound to the treasury allowlist policy by the executor.
package onchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TransferGas is the gas limit of a plain value transfer.
const TransferGas uint64 = 21000

var (
	// ErrNoSigner is returned by Transfer when no treasury key is configured.
	ErrNoSigner = errors.New("no treasury signing key configured")
	// ErrInvalidAddress is returned for malformed hex addresses.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidAmount is returned for non-positive or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// Backend is the subset of *ethclient.Client the treasury needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is empty")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	return client, nil
}

// Treasury reads balances and signs transfers.
type Treasury struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
}

// NewTreasury returns a read-only treasury when key is nil.
func NewTreasury(backend Backend, key *ecdsa.PrivateKey) *Treasury {
	t := &Treasury{backend: backend, key: key}
	if key != nil {
		t.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return t
}

// ParseKey parses a hex private key with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Address returns the signer address, or the zero address without a key.
func (t *Treasury) Address() common.Address { return t.from }

// Balance returns the latest native balance of addr in wei.
func (t *Treasury) Balance(ctx context.Context, addr string) (*big.Int, error) {
	account, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	bal, err := t.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return bal, nil
}

// Transfer signs and submits a dynamic-fee transfer of wei to addr.
func (t *Treasury) Transfer(ctx context.Context, to string, wei *big.Int) (*types.Transaction, error) {
	if t.key == nil {
		return nil, ErrNoSigner
	}
	dest, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	if wei == nil || wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	chainID, err := t.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}
	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       TransferGas,
		To:        &dest,
		Value:     wei,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), t.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed, nil
}

func parseAddress(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr), nil
}

// ParseEther converts a decimal ether amount ("0.5") to wei. Amounts finer
// than one wei are rejected.
func ParseEther(amount string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok || r.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %q has more than 18 decimals", ErrInvalidAmount, amount)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
