package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// balanceBatchSize bounds the number of balanceOf calls per multicall.
const balanceBatchSize = 400

// Source lists vaults. *Client implements it.
type Source interface {
	FetchVaults(ctx context.Context, networks []uint64) ([]types.Vault, error)
}

// Caller dispatches a batch of read-only calls. *chain.Client implements it.
type Caller interface {
	Aggregate(ctx context.Context, networkID uint64, calls []chain.Call) ([][]interface{}, error)
}

// Store owns the catalog snapshot. It is loading until the first Refresh succeeds.
type Store struct {
	source    Source
	balances  Caller
	networkID uint64
	networks  []uint64
	logger    *zap.Logger

	mu      sync.RWMutex
	vaults  []types.Vault
	loaded  bool
	account common.Address
}

// StoreConfig holds store configuration. Balances is optional; without it
// Available and Deposited stay zero.
type StoreConfig struct {
	Source    Source
	Balances  Caller
	NetworkID uint64
	Networks  []uint64
	Logger    *zap.Logger
}

// NewStore creates a new catalog store.
func NewStore(cfg *StoreConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Store{
		source:    cfg.Source,
		balances:  cfg.Balances,
		networkID: cfg.NetworkID,
		networks:  cfg.Networks,
		logger:    cfg.Logger,
	}, nil
}

// SetAccount sets the account whose balances enrich the next Refresh.
func (s *Store) SetAccount(account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
}

// Refresh reloads the catalog. On failure the previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() {
		RefreshDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	vaults, err := s.source.FetchVaults(ctx, s.networks)
	if err != nil {
		RefreshErrorsTotal.Inc()
		return fmt.Errorf("fetch vaults: %w", err)
	}

	s.mu.RLock()
	account := s.account
	s.mu.RUnlock()

	if s.balances != nil && account != (common.Address{}) {
		err = s.enrich(ctx, vaults, account)
		if err != nil {
			RefreshErrorsTotal.Inc()
			return fmt.Errorf("read balances: %w", err)
		}
	}

	s.mu.Lock()
	s.vaults = vaults
	s.loaded = true
	s.mu.Unlock()

	VaultsLoaded.Set(float64(len(vaults)))
	s.logger.Info("catalog-refreshed",
		zap.Int("vaults", len(vaults)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// View applies q to the current snapshot.
func (s *Store) View(q Query) Result {
	s.mu.RLock()
	vaults := s.vaults
	loading := !s.loaded
	s.mu.RUnlock()

	result := View(vaults, q, loading)
	ViewsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result
}

// Vaults returns the current snapshot and whether it has loaded.
func (s *Store) Vaults() ([]types.Vault, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vaults, s.loaded
}

// enrich fills Deposited (vault shares) and Available (underlying) for vaults
// on the store's network. Each batch is all-or-nothing.
func (s *Store) enrich(ctx context.Context, vaults []types.Vault, account common.Address) error {
	indexes := make([]int, 0, len(vaults))
	for i := range vaults {
		if vaults[i].NetworkID == s.networkID {
			indexes = append(indexes, i)
		}
	}

	perBatch := balanceBatchSize / 2
	for startIdx := 0; startIdx < len(indexes); startIdx += perBatch {
		end := min(startIdx+perBatch, len(indexes))
		batch := indexes[startIdx:end]

		calls := make([]chain.Call, 0, len(batch)*2)
		for _, i := range batch {
			calls = append(calls,
				chain.Call{Target: vaults[i].Address, ABI: chain.ERC20ABI, Method: "balanceOf", Args: []interface{}{account}},
				chain.Call{Target: vaults[i].TokenAddress, ABI: chain.ERC20ABI, Method: "balanceOf", Args: []interface{}{account}},
			)
		}

		results, err := s.balances.Aggregate(ctx, s.networkID, calls)
		if err != nil {
			return err
		}
		if len(results) != len(calls) {
			return fmt.Errorf("got %d balances for %d calls", len(results), len(calls))
		}

		for j, i := range batch {
			deposited, err := chain.DecodeBigInt(results[2*j])
			if err != nil {
				return fmt.Errorf("decode vault balance of %s: %w", vaults[i].Address.Hex(), err)
			}
			available, err := chain.DecodeBigInt(results[2*j+1])
			if err != nil {
				return fmt.Errorf("decode token balance of %s: %w", vaults[i].TokenAddress.Hex(), err)
			}
			vaults[i].Deposited = normalize(deposited, vaults[i].Decimals)
			vaults[i].Available = normalize(available, vaults[i].Decimals)
		}
	}

	return nil
}

// normalize converts a raw token amount to units.
func normalize(amount *big.Int, decimals int) float64 {
	if amount == nil || amount.Sign() == 0 {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return value
}
