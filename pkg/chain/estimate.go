package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// EstimateCreate simulates createNewVaultsAndStrategies(gauge) from caller
// and returns the gas it would use. Failures are *types.CallFailure.
func (c *Client) EstimateCreate(ctx context.Context, caller common.Address, gauge common.Address) (gas uint64, err error) {
	start := time.Now()
	defer func() {
		EstimateDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	msg, err := c.createMsg(caller, gauge)
	if err != nil {
		return 0, err
	}

	gas, err = c.backend.EstimateGas(ctx, msg)
	if err != nil {
		CallFailuresTotal.WithLabelValues(string(types.KindSimulation)).Inc()
		return 0, classify(types.KindSimulation, err)
	}

	c.logger.Debug("create-gas-estimated",
		zap.String("gauge", gauge.Hex()),
		zap.String("caller", caller.Hex()),
		zap.Uint64("gas", gas))

	return gas, nil
}

func (c *Client) createMsg(caller common.Address, gauge common.Address) (ethereum.CallMsg, error) {
	if c.factory == (common.Address{}) {
		return ethereum.CallMsg{}, fmt.Errorf("vault factory address not configured")
	}

	data, err := VaultFactoryABI.Pack(MethodCreate, gauge)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("pack %s: %w", MethodCreate, err)
	}

	factory := c.factory
	return ethereum.CallMsg{
		From: caller,
		To:   &factory,
		Data: data,
	}, nil
}
