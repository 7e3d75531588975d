package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Caller dispatches a batch of read-only calls. *chain.Client implements it.
type Caller interface {
	Aggregate(ctx context.Context, networkID uint64, calls []chain.Call) ([][]interface{}, error)
}

// State is what consumers see for the current selection.
// Metadata is nil while Loading and after a failure.
type State struct {
	Gauge    common.Address
	Loading  bool
	Metadata *types.DisplayMetadata
	Err      error
}

// Resolver reads the selected gauge's ERC20 name and symbol and cleans them up.
// Only the most recent Resolve call may change State.
type Resolver struct {
	caller    Caller
	networkID uint64
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *zap.Logger

	mu         sync.RWMutex
	generation uint64
	state      State
}

// Config holds resolver configuration. Cache is optional.
type Config struct {
	Caller    Caller
	NetworkID uint64
	Cache     cache.Cache
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// New creates a new display metadata resolver.
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

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Resolver{
		caller:    cfg.Caller,
		networkID: cfg.NetworkID,
		cache:     cfg.Cache,
		cacheTTL:  ttl,
		logger:    cfg.Logger,
	}, nil
}

// State returns the current display state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Resolve computes display metadata for selected and publishes it as the current state.
// gen orders calls: the caller takes it when the selection is written, and a call
// whose gen is older than one already seen never touches the state.
// The empty selection clears the state without any remote call.
// A superseded call returns types.ErrSuperseded and its result is dropped.
func (r *Resolver) Resolve(ctx context.Context, gen uint64, selected types.Gauge) (*types.DisplayMetadata, error) {
	r.mu.Lock()
	if gen < r.generation {
		r.mu.Unlock()
		r.superseded(selected)
		return nil, types.ErrSuperseded
	}
	r.generation = gen
	if selected.IsZero() {
		r.state = State{}
		r.mu.Unlock()
		return nil, nil
	}
	r.state = State{Gauge: selected.GaugeAddress, Loading: true}
	r.mu.Unlock()

	metadata, err := r.fetch(ctx, selected)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		r.superseded(selected)
		return nil, types.ErrSuperseded
	}

	if err != nil {
		ResolutionsTotal.WithLabelValues("error").Inc()
		r.state = State{Gauge: selected.GaugeAddress, Err: err}
		return nil, err
	}

	ResolutionsTotal.WithLabelValues("success").Inc()
	r.state = State{Gauge: selected.GaugeAddress, Metadata: metadata}
	return metadata, nil
}

func (r *Resolver) superseded(selected types.Gauge) {
	SupersededTotal.Inc()
	r.logger.Debug("display-resolution-superseded",
		zap.String("gauge", selected.GaugeAddress.Hex()))
}

func (r *Resolver) cacheKey(gauge common.Address) string {
	return fmt.Sprintf("display:%d:%s", r.networkID, strings.ToLower(gauge.Hex()))
}

// onChainNames is the cached part of the metadata: the raw ERC20 strings.
// Cleaning and the registry-name fallback are applied on every read.
type onChainNames struct {
	Name   string
	Symbol string
}

func (r *Resolver) fetch(ctx context.Context, selected types.Gauge) (*types.DisplayMetadata, error) {
	raw, err := r.readNames(ctx, selected.GaugeAddress)
	if err != nil {
		return nil, err
	}

	metadata := types.DisplayMetadata{
		Name:         CleanName(raw.Name, selected.Name),
		Symbol:       CleanSymbol(raw.Symbol, selected.Name),
		PoolAddress:  selected.PoolAddress,
		GaugeAddress: selected.GaugeAddress,
	}

	r.logger.Debug("display-metadata-resolved",
		zap.String("gauge", selected.GaugeAddress.Hex()),
		zap.String("name", metadata.Name),
		zap.String("symbol", metadata.Symbol))

	return &metadata, nil
}

func (r *Resolver) readNames(ctx context.Context, gauge common.Address) (onChainNames, error) {
	key := r.cacheKey(gauge)
	if cached, ok := cache.GetAs[onChainNames](r.cache, key); ok {
		return cached, nil
	}

	start := time.Now()
	defer func() {
		ResolveDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	calls := []chain.Call{
		{Target: gauge, ABI: chain.ERC20ABI, Method: "name"},
		{Target: gauge, ABI: chain.ERC20ABI, Method: "symbol"},
	}

	results, err := r.caller.Aggregate(ctx, r.networkID, calls)
	if err != nil {
		return onChainNames{}, fmt.Errorf("read gauge name and symbol: %w", err)
	}
	if len(results) != len(calls) {
		return onChainNames{}, fmt.Errorf("read gauge name and symbol: got %d results", len(results))
	}

	var raw onChainNames
	raw.Name, err = chain.DecodeString(results[0])
	if err != nil {
		return onChainNames{}, fmt.Errorf("decode gauge name: %w", err)
	}
	raw.Symbol, err = chain.DecodeString(results[1])
	if err != nil {
		return onChainNames{}, fmt.Errorf("decode gauge symbol: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(key, raw, r.cacheTTL)
	}
	return raw, nil
}

// CleanName removes the Curve gauge boilerplate from an on-chain name.
// An empty result falls back to fallback.
func CleanName(raw string, fallback string) string {
	name := strings.Replace(raw, "Curve.fi", "", 1)
	name = strings.Replace(name, "Gauge Deposit", "", 1)
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	return name
}

// CleanSymbol removes the gauge suffixes from an on-chain symbol.
// An empty result falls back to fallback.
func CleanSymbol(raw string, fallback string) string {
	symbol := strings.Replace(raw, "-gauge", "", 1)
	symbol = strings.Replace(symbol, "-f", "", 1)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fallback
	}
	return symbol
}
