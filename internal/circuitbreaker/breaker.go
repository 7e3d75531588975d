package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const gasWindow = 20

// BalanceFetcher reads the signer's native balance and the current gas price.
// chain.Client and test mocks implement it.
type BalanceFetcher interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// BalanceCircuitBreaker monitors the signer's native balance and blocks vault
// submissions when it cannot cover the gas of a create transaction. The
// threshold follows the gas used by recent submissions at the current gas
// price, and hysteresis keeps it from flapping.
type BalanceCircuitBreaker struct {
	enabled atomic.Bool

	checkInterval   time.Duration
	balances        BalanceFetcher
	address         common.Address
	logger          *zap.Logger
	gasMultiplier   float64
	minAbsolute     float64 // ETH
	hysteresisRatio float64

	mu               sync.RWMutex
	lastBalance      float64 // ETH
	lastGasPrice     float64 // gwei
	lastCheck        time.Time
	recentGas        []uint64
	disableThreshold float64
	enableThreshold  float64
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration
	GasMultiplier   float64 // required balance = avg gas * gas price * multiplier
	MinAbsolute     float64 // ETH, floor for the disable threshold
	HysteresisRatio float64 // re-enable at ratio * disable threshold
	Balances        BalanceFetcher
	Address         common.Address
	Logger          *zap.Logger
}

// Status is the current breaker state for logs and HTTP endpoints.
type Status struct {
	Enabled          bool      `json:"enabled"`
	LastBalance      float64   `json:"last_balance_eth"`
	LastGasPrice     float64   `json:"last_gas_price_gwei"`
	LastCheck        time.Time `json:"last_check"`
	DisableThreshold float64   `json:"disable_threshold_eth"`
	EnableThreshold  float64   `json:"enable_threshold_eth"`
	AvgGasUsed       uint64    `json:"avg_gas_used"`
	RecentTxCount    int       `json:"recent_tx_count"`
}

// New creates a new circuit breaker with the given configuration.
func New(cfg *Config) (*BalanceCircuitBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Balances == nil {
		return nil, fmt.Errorf("balance fetcher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.GasMultiplier <= 0 {
		return nil, fmt.Errorf("gas multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	b := &BalanceCircuitBreaker{
		checkInterval:    cfg.CheckInterval,
		balances:         cfg.Balances,
		address:          cfg.Address,
		logger:           cfg.Logger,
		gasMultiplier:    cfg.GasMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentGas:        make([]uint64, 0, gasWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}

	// Enabled until the first balance check says otherwise.
	b.enabled.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)
	BreakerAvgGasUsed.Set(0)

	return b, nil
}

// IsEnabled reports whether submissions may proceed. Lock-free.
func (b *BalanceCircuitBreaker) IsEnabled() bool {
	return b.enabled.Load()
}

// RecordGas adds the gas used by a mined create transaction to the rolling window.
func (b *BalanceCircuitBreaker) RecordGas(gasUsed uint64) {
	if gasUsed == 0 {
		b.logger.Warn("invalid-gas-used", zap.Uint64("gas-used", gasUsed))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentGas = append(b.recentGas, gasUsed)
	if len(b.recentGas) > gasWindow {
		b.recentGas = b.recentGas[1:]
	}

	avg := b.avgGasLocked()
	BreakerAvgGasUsed.Set(float64(avg))

	b.logger.Debug("gas-window-updated",
		zap.Uint64("avg-gas-used", avg),
		zap.Int("tx-count", len(b.recentGas)))
}

// CheckBalance fetches the balance and gas price, recomputes thresholds and
// updates the enabled state.
func (b *BalanceCircuitBreaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	wei, err := b.balances.NativeBalance(ctx, b.address)
	if err != nil {
		b.logger.Error("failed-to-check-balance",
			zap.Error(err),
			zap.String("address", b.address.Hex()))
		return fmt.Errorf("get balance: %w", err)
	}

	priceWei, err := b.balances.GasPrice(ctx)
	if err != nil {
		b.logger.Error("failed-to-check-gas-price", zap.Error(err))
		return fmt.Errorf("get gas price: %w", err)
	}

	balance := weiToEth(wei)
	gasPrice := weiToEth(priceWei)

	b.mu.Lock()
	avgGas := b.avgGasLocked()
	b.disableThreshold = math.Max(float64(avgGas)*gasPrice*b.gasMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio
	b.lastBalance = balance
	b.lastGasPrice = gasPrice * 1e9
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	BreakerBalance.Set(balance)
	BreakerDisableThreshold.Set(disableThreshold)
	BreakerEnableThreshold.Set(enableThreshold)

	currentlyEnabled := b.enabled.Load()
	shouldDisable := currentlyEnabled && balance < disableThreshold
	shouldEnable := !currentlyEnabled && balance >= enableThreshold

	switch {
	case shouldDisable:
		b.enabled.Store(false)
		BreakerEnabled.Set(0)
		BreakerStateChanges.Inc()

		b.logger.Warn("circuit-breaker-disabled",
			zap.Float64("balance-eth", balance),
			zap.Float64("disable-threshold-eth", disableThreshold),
			zap.Float64("enable-threshold-eth", enableThreshold))
	case shouldEnable:
		b.enabled.Store(true)
		BreakerEnabled.Set(1)
		BreakerStateChanges.Inc()

		b.logger.Info("circuit-breaker-enabled",
			zap.Float64("balance-eth", balance),
			zap.Float64("disable-threshold-eth", disableThreshold),
			zap.Float64("enable-threshold-eth", enableThreshold))
	default:
		b.logger.Debug("balance-checked",
			zap.Float64("balance-eth", balance),
			zap.Bool("enabled", currentlyEnabled),
			zap.Float64("disable-threshold-eth", disableThreshold))
	}

	return nil
}

// Start checks the balance once and then keeps checking in the background
// until ctx is cancelled.
func (b *BalanceCircuitBreaker) Start(ctx context.Context) {
	b.logger.Info("circuit-breaker-started",
		zap.String("address", b.address.Hex()),
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("gas-multiplier", b.gasMultiplier),
		zap.Float64("min-absolute-eth", b.minAbsolute),
		zap.Float64("hysteresis-ratio", b.hysteresisRatio))

	err := b.CheckBalance(ctx)
	if err != nil {
		b.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *BalanceCircuitBreaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("circuit-breaker-stopped")
			return
		case <-ticker.C:
			err := b.CheckBalance(ctx)
			if err != nil {
				b.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns the current breaker state.
func (b *BalanceCircuitBreaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Status{
		Enabled:          b.enabled.Load(),
		LastBalance:      b.lastBalance,
		LastGasPrice:     b.lastGasPrice,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgGasUsed:       b.avgGasLocked(),
		RecentTxCount:    len(b.recentGas),
	}
}

func (b *BalanceCircuitBreaker) avgGasLocked() uint64 {
	if len(b.recentGas) == 0 {
		return 0
	}
	var sum uint64
	for _, gas := range b.recentGas {
		sum += gas
	}
	return sum / uint64(len(b.recentGas))
}

func weiToEth(wei *big.Int) float64 {
	return decimal.NewFromBigInt(wei, -18).InexactFloat64()
}
