package app

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/vault-factory/internal/factory"
	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Uint64("network-id", a.cfg.NetworkID),
		zap.String("factory", a.cfg.Factory().Hex()),
		zap.Bool("authenticated", a.signer != nil),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.logger.Info("application-started",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("registry-url", a.cfg.CurveRegistryURL),
		zap.String("catalog-url", a.cfg.CatalogURL))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() {
	// Subscribe before discovery starts so the first eligible set is seen.
	events, unsubscribe := a.driver.Subscribe(16)

	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.watchReadiness(events, unsubscribe)

	a.wg.Add(1)
	go a.runDiscoveryService()

	a.wg.Add(1)
	go a.runDriver()

	a.wg.Add(1)
	go a.runCatalogRefresh()

	if a.breaker != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.breaker.Start(a.ctx)
		}()
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscoveryService() {
	defer a.wg.Done()
	err := a.discoveryService.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-service-error", zap.Error(err))
	}
}

func (a *App) runDriver() {
	defer a.wg.Done()
	err := a.driver.Run(a.ctx, a.discoveryService.CandidatesChan())
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("driver-error", zap.Error(err))
	}
}

// watchReadiness marks the gauges component ready on the first eligible set
// resolved without error.
func (a *App) watchReadiness(events <-chan factory.Event, unsubscribe func()) {
	defer a.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == factory.EventEligible && ev.Snapshot.EligibleError == "" {
				a.healthChecker.MarkReady(componentGauges)
				a.logger.Info("gauges-ready", zap.Int("options", len(ev.Snapshot.Options)))
				return
			}
		}
	}
}

func (a *App) runCatalogRefresh() {
	defer a.wg.Done()

	a.refreshCatalog()

	ticker := time.NewTicker(a.cfg.CatalogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.refreshCatalog()
		}
	}
}

func (a *App) refreshCatalog() {
	err := a.catalogStore.Refresh(a.ctx)
	if err != nil {
		if a.ctx.Err() == nil {
			a.logger.Error("catalog-refresh-failed", zap.Error(err))
		}
		return
	}
	a.healthChecker.MarkReady(componentCatalog)
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
