package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const receiptPollInterval = 2 * time.Second

// Tokens wraps a Client with ERC20 reads and the write operations the
// execution pipeline needs. Approvals are always for the exact requested
// amount; this type never grants unlimited allowances.
type Tokens struct {
	client         *Client
	erc20ABI       abi.ABI
	receiptTimeout time.Duration
}

func NewTokens(client *Client, receiptTimeout time.Duration) (*Tokens, error) {
	eABI, err := abi.JSON(mustERC20ABI())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}
	return &Tokens{
		client:         client,
		erc20ABI:       eABI,
		receiptTimeout: receiptTimeout,
	}, nil
}

func (t *Tokens) Wallet() common.Address { return t.client.WalletAddress() }

func (t *Tokens) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := t.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	result, err := t.client.CallContract(ctx, token, data)
	if err != nil {
		return 0, fmt.Errorf("decimals call: %w", err)
	}
	return uint8(new(big.Int).SetBytes(result).Uint64()), nil
}

func (t *Tokens) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := t.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	result, err := t.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

func (t *Tokens) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := t.erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	result, err := t.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("allowance call: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Approve grants spender exactly amount of token and returns the tx hash.
func (t *Tokens) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error) {
	data, err := t.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return "", err
	}
	txHash, err := t.client.SignAndSend(ctx, token, big.NewInt(0), data)
	if err != nil {
		return "", fmt.Errorf("approve tx: %w", err)
	}
	return txHash, nil
}

// WaitMined blocks until txHash is mined or the receipt timeout elapses.
// A reverted transaction is an error.
func (t *Tokens) WaitMined(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == 0 {
				return fmt.Errorf("tx %s reverted", txHash)
			}
			return nil
		}
		if !errors.Is(err, goeth.NotFound) {
			return fmt.Errorf("receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Send broadcasts a pre-encoded transaction (from a swap quote) and returns
// the tx hash.
func (t *Tokens) Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (string, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	return t.client.SignAndSend(ctx, to, value, data)
}
