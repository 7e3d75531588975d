package app

import (
	"context"
	"sync"

	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/mselser95/vault-factory/internal/circuitbreaker"
	"github.com/mselser95/vault-factory/internal/discovery"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/mselser95/vault-factory/internal/storage"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/config"
	"github.com/mselser95/vault-factory/pkg/healthprobe"
	"github.com/mselser95/vault-factory/pkg/httpserver"
	"github.com/mselser95/vault-factory/pkg/websocket"
	"go.uber.org/zap"
)

// Readiness components.
const (
	componentGauges  = "gauges"
	componentCatalog = "catalog"
)

// App is the main application orchestrator.
type App struct {
	cfg              *config.Config
	logger           *zap.Logger
	healthChecker    *healthprobe.HealthChecker
	httpServer       *httpserver.Server
	hub              *websocket.Hub
	chainClient      *chain.Client
	signer           *chain.Signer                         // nil without WALLET_PRIVATE_KEY
	breaker          *circuitbreaker.BalanceCircuitBreaker // nil without signer or when disabled
	gaugeCache       *cache.RistrettoCache
	displayCache     *cache.RistrettoCache
	discoveryService *discovery.Service
	driver           *factory.Driver
	catalogStore     *catalog.Store
	storage          storage.Storage
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Backend replaces the RPC connection made from ETH_RPC_URL.
	Backend chain.Backend
}
