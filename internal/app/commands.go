package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// LoadGauges polls the registry once and resolves which gauges can get a vault.
func (a *App) LoadGauges(ctx context.Context) ([]types.GaugeOption, error) {
	err := a.discoveryService.Poll(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll registry: %w", err)
	}

	candidates, _ := a.discoveryService.Latest()

	err = a.driver.SetCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	return a.driver.Options(), nil
}

// CreateVault loads the gauges, selects gauge and submits the create
// transaction. The returned snapshot reflects the state after submission.
func (a *App) CreateVault(ctx context.Context, gauge common.Address) (factory.Snapshot, error) {
	_, err := a.LoadGauges(ctx)
	if err != nil {
		return factory.Snapshot{}, err
	}

	err = a.driver.Select(ctx, gauge)
	if errors.Is(err, factory.ErrUnknownGauge) {
		return a.driver.Snapshot(), err
	}
	if err != nil {
		// Display metadata is presentation only.
		a.logger.Warn("display-metadata-unavailable",
			zap.String("gauge", gauge.Hex()),
			zap.Error(err))
	}

	if a.breaker != nil {
		err = a.breaker.CheckBalance(ctx)
		if err != nil {
			a.logger.Warn("funds-check-failed", zap.Error(err))
		}
	}

	_, err = a.driver.Submit(ctx)
	snap := a.driver.Snapshot()
	if errors.Is(err, types.ErrEstimateBlocked) && snap.Estimate.Message != "" {
		return snap, fmt.Errorf("%w: %s", err, snap.Estimate.Message)
	}
	return snap, err
}

// ListVaults refreshes the catalog once and returns the requested view.
func (a *App) ListVaults(ctx context.Context, q catalog.Query) (catalog.Result, error) {
	err := a.catalogStore.Refresh(ctx)
	if err != nil {
		return catalog.Result{}, fmt.Errorf("refresh catalog: %w", err)
	}

	return a.catalogStore.View(q), nil
}

// DefaultQuery returns the configured catalog selection sorted by TVL.
func (a *App) DefaultQuery() catalog.Query {
	return catalog.Query{
		Categories: a.cfg.CatalogCategories,
		Networks:   a.cfg.CatalogNetworks,
		SortBy:     catalog.SortTVL,
		Direction:  catalog.Desc,
	}
}

// Close releases resources of an App that was never Run.
func (a *App) Close() {
	a.cancel()
	a.closeResources()
}
