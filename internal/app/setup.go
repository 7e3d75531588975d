package app

import (
	"context"
	"fmt"

	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/mselser95/vault-factory/internal/circuitbreaker"
	"github.com/mselser95/vault-factory/internal/discovery"
	"github.com/mselser95/vault-factory/internal/display"
	"github.com/mselser95/vault-factory/internal/eligibility"
	"github.com/mselser95/vault-factory/internal/estimate"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/mselser95/vault-factory/internal/storage"
	"github.com/mselser95/vault-factory/internal/submission"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/config"
	"github.com/mselser95/vault-factory/pkg/healthprobe"
	"github.com/mselser95/vault-factory/pkg/httpserver"
	"github.com/mselser95/vault-factory/pkg/websocket"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	err := a.setup(opts)
	if err != nil {
		a.closeResources()
		cancel()
		return nil, err
	}

	return a, nil
}

func (a *App) setup(opts *Options) error {
	cfg, logger := a.cfg, a.logger

	a.healthChecker = setupHealthChecker()

	chainClient, err := setupChainClient(a.ctx, cfg, logger, opts.Backend)
	if err != nil {
		return fmt.Errorf("setup chain client: %w", err)
	}
	a.chainClient = chainClient

	a.gaugeCache, err = setupCache("gauges", logger)
	if err != nil {
		return fmt.Errorf("setup gauge cache: %w", err)
	}

	a.displayCache, err = setupCache("display", logger)
	if err != nil {
		return fmt.Errorf("setup display cache: %w", err)
	}

	a.discoveryService = setupDiscoveryService(cfg, logger, a.gaugeCache)

	a.storage, err = setupStorage(a.ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	a.signer, err = setupSigner(cfg, logger, chainClient)
	if err != nil {
		return fmt.Errorf("setup signer: %w", err)
	}

	a.breaker, err = setupCircuitBreaker(cfg, logger, chainClient, a.signer)
	if err != nil {
		return fmt.Errorf("setup circuit breaker: %w", err)
	}

	a.catalogStore, err = setupCatalogStore(cfg, logger, chainClient, a.signer)
	if err != nil {
		return fmt.Errorf("setup catalog: %w", err)
	}

	a.driver, err = setupDriver(cfg, logger, chainClient, a.displayCache, a.signer, a.breaker, a.storage, a.catalogStore)
	if err != nil {
		return fmt.Errorf("setup driver: %w", err)
	}

	a.hub, err = websocket.NewHub(&websocket.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("setup websocket hub: %w", err)
	}

	a.httpServer = setupHTTPServer(cfg, logger, a.healthChecker, a.driver, a.catalogStore, a.hub)

	return nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New(componentGauges, componentCatalog)
}

func setupChainClient(ctx context.Context, cfg *config.Config, logger *zap.Logger, backend chain.Backend) (*chain.Client, error) {
	chainCfg := &chain.Config{
		Backend:          backend,
		NetworkID:        cfg.NetworkID,
		MulticallAddress: cfg.Multicall(),
		FactoryAddress:   cfg.Factory(),
		Logger:           logger,
	}

	if backend != nil {
		return chain.New(chainCfg)
	}
	return chain.Dial(ctx, cfg.RPCURL, chainCfg)
}

func setupCache(name string, logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        name,
		NumCounters: 100000, // 10x expected max items
		MaxCost:     10000,  // items, not bytes
		BufferItems: 64,     // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, gaugeCache cache.Cache) *discovery.Service {
	discoveryClient := discovery.NewClient(cfg.CurveRegistryURL, logger)
	return discovery.New(&discovery.Config{
		Client:       discoveryClient,
		Cache:        gaugeCache,
		PollInterval: cfg.DiscoveryPollInterval,
		Logger:       logger,
	})
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// setupSigner returns nil when no key is configured; the session is then unauthenticated.
func setupSigner(cfg *config.Config, logger *zap.Logger, chainClient *chain.Client) (*chain.Signer, error) {
	if cfg.PrivateKey == "" {
		logger.Warn("signer-disabled-no-private-key",
			zap.String("note", "WALLET_PRIVATE_KEY not set, vault creation disabled"))
		return nil, nil
	}

	signer, err := chain.NewSigner(chainClient, cfg.PrivateKey, cfg.ReceiptPollInterval)
	if err != nil {
		return nil, err
	}

	logger.Info("signer-enabled", zap.String("address", signer.Address().Hex()))
	return signer, nil
}

// setupCircuitBreaker returns nil when there is no signer or the guard is disabled.
func setupCircuitBreaker(
	cfg *config.Config,
	logger *zap.Logger,
	chainClient *chain.Client,
	signer *chain.Signer,
) (*circuitbreaker.BalanceCircuitBreaker, error) {
	if signer == nil || cfg.FundsCheckInterval == 0 {
		return nil, nil
	}

	return circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.FundsCheckInterval,
		GasMultiplier:   cfg.FundsGasMultiplier,
		MinAbsolute:     cfg.FundsMinBalance,
		HysteresisRatio: cfg.FundsHysteresis,
		Balances:        chainClient,
		Address:         signer.Address(),
		Logger:          logger,
	})
}

func setupCatalogStore(
	cfg *config.Config,
	logger *zap.Logger,
	chainClient *chain.Client,
	signer *chain.Signer,
) (*catalog.Store, error) {
	store, err := catalog.NewStore(&catalog.StoreConfig{
		Source:    catalog.NewClient(cfg.CatalogURL, logger),
		Balances:  chainClient,
		NetworkID: cfg.NetworkID,
		Networks:  cfg.CatalogNetworks,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	if signer != nil {
		store.SetAccount(signer.Address())
	}

	return store, nil
}

func setupDriver(
	cfg *config.Config,
	logger *zap.Logger,
	chainClient *chain.Client,
	displayCache cache.Cache,
	signer *chain.Signer,
	breaker *circuitbreaker.BalanceCircuitBreaker,
	recorder submission.Recorder,
	catalogStore *catalog.Store,
) (*factory.Driver, error) {
	eligibilityResolver, err := eligibility.New(&eligibility.Config{
		Caller:         chainClient,
		FactoryAddress: cfg.Factory(),
		NetworkID:      cfg.NetworkID,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create eligibility resolver: %w", err)
	}

	displayResolver, err := display.New(&display.Config{
		Caller:    chainClient,
		NetworkID: cfg.NetworkID,
		Cache:     displayCache,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create display resolver: %w", err)
	}

	estimator, err := estimate.New(&estimate.Config{
		Simulator:      chainClient,
		FactoryAddress: cfg.Factory(),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create estimator: %w", err)
	}

	// Nil pointers must not become non-nil interfaces.
	var submitter submission.Submitter
	if signer != nil {
		submitter = signer
	}
	var funds factory.FundsGuard
	if breaker != nil {
		funds = breaker
	}

	return factory.New(&factory.Config{
		Eligibility:    eligibilityResolver,
		Display:        displayResolver,
		Estimator:      estimator,
		Submitter:      submitter,
		Recorder:       recorder,
		RefreshCatalog: catalogStore.Refresh,
		RefreshDelay:   cfg.PostSubmitRefreshDelay,
		SubmitTimeout:  cfg.SubmissionTimeout,
		Funds:          funds,
		Logger:         logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	driver *factory.Driver,
	catalogStore *catalog.Store,
	hub *websocket.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:              cfg.HTTPPort,
		Logger:            logger,
		HealthChecker:     healthChecker,
		Driver:            driver,
		Catalog:           catalogStore,
		Hub:               hub,
		DefaultNetworks:   cfg.CatalogNetworks,
		DefaultCategories: cfg.CatalogCategories,
	})
}
