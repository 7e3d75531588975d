package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/types"
)

// NativeBalance returns the latest native token balance of account, in wei.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		CallFailuresTotal.WithLabelValues(string(types.KindRemoteCall)).Inc()
		return nil, fmt.Errorf("get balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// GasPrice returns the node's suggested gas price, in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		CallFailuresTotal.WithLabelValues(string(types.KindRemoteCall)).Inc()
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	return price, nil
}
