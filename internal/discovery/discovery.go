package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Fetcher returns the current gauge list. *Client implements it.
type Fetcher interface {
	FetchGauges(ctx context.Context) ([]types.Gauge, error)
}

// Service discovers gauges by polling the registry.
type Service struct {
	client       Fetcher
	cache        cache.Cache
	pollInterval time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	latest []types.Gauge
	polled bool

	candidatesCh chan []types.Gauge
}

// Config holds discovery service configuration.
type Config struct {
	Client       Fetcher
	Cache        cache.Cache
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a new discovery service.
func New(cfg *Config) *Service {
	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		candidatesCh: make(chan []types.Gauge, 1),
	}
}

// Run starts the discovery polling loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Initial poll
	err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			return ctx.Err()
		case <-ticker.C:
			err := s.Poll(ctx)
			if err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll fetches the registry once and publishes the result as a new candidate list.
func (s *Service) Poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	gauges, err := s.client.FetchGauges(ctx)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch gauges: %w", err)
	}

	GaugesDiscovered.Set(float64(len(gauges)))

	for i := range gauges {
		s.cacheGauge(&gauges[i])
	}

	s.mu.Lock()
	s.latest = gauges
	s.polled = true
	s.mu.Unlock()

	s.publish(gauges)

	s.logger.Debug("poll-complete",
		zap.Int("gauges", len(gauges)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// publish hands the list to the consumer, replacing an unconsumed older list.
func (s *Service) publish(gauges []types.Gauge) {
	for {
		select {
		case s.candidatesCh <- gauges:
			return
		default:
		}

		select {
		case <-s.candidatesCh:
			SupersededListsTotal.Inc()
			s.logger.Debug("candidate-list-superseded")
		default:
		}
	}
}

// CandidatesChan delivers the most recent polled gauge list.
func (s *Service) CandidatesChan() <-chan []types.Gauge {
	return s.candidatesCh
}

// Latest returns the last polled list and whether any poll has succeeded.
func (s *Service) Latest() ([]types.Gauge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.polled
}

func gaugeKey(address common.Address) string {
	return "gauge:" + strings.ToLower(address.Hex())
}

// cacheGauge stores a gauge in the cache.
func (s *Service) cacheGauge(gauge *types.Gauge) {
	if s.cache == nil {
		return
	}

	const cacheTTL = 24 * time.Hour
	success := s.cache.Set(gaugeKey(gauge.GaugeAddress), *gauge, cacheTTL)
	if !success {
		s.logger.Warn("failed-to-cache-gauge", zap.String("gauge", gauge.GaugeAddress.Hex()))
	}
}

// GetGauge retrieves a gauge by address from cache, falling back to the last poll.
func (s *Service) GetGauge(address common.Address) (types.Gauge, bool) {
	if gauge, ok := cache.GetAs[types.Gauge](s.cache, gaugeKey(address)); ok {
		return gauge, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.latest {
		if s.latest[i].GaugeAddress == address {
			return s.latest[i], true
		}
	}
	return types.Gauge{}, false
}
