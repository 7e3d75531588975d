package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Caller dispatches a batch of read-only calls. *chain.Client implements it.
type Caller interface {
	Aggregate(ctx context.Context, networkID uint64, calls []chain.Call) ([][]interface{}, error)
}

// Resolver asks the vault factory which gauges can still get a vault.
type Resolver struct {
	caller    Caller
	factory   common.Address
	networkID uint64
	logger    *zap.Logger
}

// Config holds resolver configuration.
type Config struct {
	Caller         Caller
	FactoryAddress common.Address
	NetworkID      uint64
	Logger         *zap.Logger
}

// New creates a new eligibility resolver.
func New(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Caller == nil {
		return nil, errors.New("caller cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Resolver{
		caller:    cfg.Caller,
		factory:   cfg.FactoryAddress,
		networkID: cfg.NetworkID,
		logger:    cfg.Logger,
	}, nil
}

// Resolve returns the candidates the factory reports as creatable, in input order.
// A failed batch is returned as an error and never as an empty set.
func (r *Resolver) Resolve(ctx context.Context, candidates []types.Gauge) ([]types.Gauge, error) {
	if len(candidates) == 0 {
		return []types.Gauge{}, nil
	}

	start := time.Now()
	defer func() {
		ResolveDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	calls := make([]chain.Call, len(candidates))
	for i := range candidates {
		calls[i] = chain.Call{
			Target: r.factory,
			ABI:    chain.VaultFactoryABI,
			Method: chain.MethodCanCreate,
			Args:   []interface{}{candidates[i].GaugeAddress},
		}
	}

	results, err := r.caller.Aggregate(ctx, r.networkID, calls)
	if err != nil {
		ResolveErrorsTotal.Inc()
		return nil, fmt.Errorf("check eligibility: %w", err)
	}
	if len(results) != len(candidates) {
		ResolveErrorsTotal.Inc()
		return nil, fmt.Errorf("check eligibility: got %d results for %d candidates", len(results), len(candidates))
	}

	eligible := make([]types.Gauge, 0, len(candidates))
	for i := range results {
		ok, decodeErr := chain.DecodeBool(results[i])
		if decodeErr != nil {
			ResolveErrorsTotal.Inc()
			return nil, fmt.Errorf("decode eligibility of %s: %w", candidates[i].GaugeAddress.Hex(), decodeErr)
		}
		if ok {
			eligible = append(eligible, candidates[i])
		}
	}

	EligibleGauges.Set(float64(len(eligible)))

	r.logger.Debug("eligibility-resolved",
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)),
		zap.Duration("duration", time.Since(start)))

	return eligible, nil
}
