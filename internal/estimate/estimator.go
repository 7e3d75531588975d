package estimate

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Simulator simulates the create call. *chain.Client implements it.
type Simulator interface {
	EstimateCreate(ctx context.Context, caller common.Address, gauge common.Address) (uint64, error)
}

// Level is the severity of an estimate message.
type Level string

const (
	LevelNone    Level = ""
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Result is the outcome of one estimation. Gas is zero on any failure.
// Blocked is set only for unpredictable failures and must stop submission.
// Loading is set while the simulation for Gauge and Caller is in flight.
type Result struct {
	Gauge   common.Address `json:"gauge"`
	Caller  common.Address `json:"caller"`
	Gas     uint64         `json:"gas"`
	Message string         `json:"message,omitempty"`
	Level   Level          `json:"level,omitempty"`
	Blocked bool           `json:"blocked"`
	Loading bool           `json:"loading"`
}

// Matches reports whether r was computed for gauge and caller.
func (r Result) Matches(gauge common.Address, caller common.Address) bool {
	return r.Gauge == gauge && r.Caller == caller
}

// Estimator owns the current cost estimate for the selection.
type Estimator struct {
	simulator Simulator
	factory   common.Address
	logger    *zap.Logger

	mu         sync.RWMutex
	generation uint64
	current    Result
}

// Config holds estimator configuration.
type Config struct {
	Simulator      Simulator
	FactoryAddress common.Address
	Logger         *zap.Logger
}

// New creates a new cost estimator.
func New(cfg *Config) (*Estimator, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Simulator == nil {
		return nil, errors.New("simulator cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Estimator{
		simulator: cfg.Simulator,
		factory:   cfg.FactoryAddress,
		logger:    cfg.Logger,
	}, nil
}

// Current returns the last applied estimate.
func (e *Estimator) Current() Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Estimate simulates creating a vault for gauge from caller and applies the result.
// gen orders calls: the caller takes it when gauge or caller changes, and a call
// whose gen is older than one already seen is dropped without simulating.
// Without a caller, gauge or factory the result is zero and nothing is simulated.
// Failures never surface as errors; they are folded into the Result.
// The only error is types.ErrSuperseded.
func (e *Estimator) Estimate(ctx context.Context, gen uint64, gauge common.Address, caller common.Address) (Result, error) {
	e.mu.Lock()
	if gen < e.generation {
		e.mu.Unlock()
		e.superseded(gauge)
		return Result{}, types.ErrSuperseded
	}
	e.generation = gen
	if !e.ready(gauge, caller) {
		e.current = Result{Gauge: gauge, Caller: caller}
		e.mu.Unlock()
		SkippedTotal.Inc()
		return e.current, nil
	}
	// A rerun for the same inputs keeps showing the previous result.
	if !e.current.Matches(gauge, caller) {
		e.current = Result{Gauge: gauge, Caller: caller, Loading: true}
	}
	e.mu.Unlock()

	result := Result{Gauge: gauge, Caller: caller}

	gas, err := e.simulator.EstimateCreate(ctx, caller, gauge)
	if err != nil {
		result = e.classify(result, err)
	} else {
		result.Gas = gas
		EstimatesTotal.WithLabelValues("success").Inc()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.superseded(gauge)
		return Result{}, types.ErrSuperseded
	}

	e.current = result
	return result, nil
}

func (e *Estimator) superseded(gauge common.Address) {
	SupersededTotal.Inc()
	e.logger.Debug("estimate-superseded", zap.String("gauge", gauge.Hex()))
}

func (e *Estimator) ready(gauge common.Address, caller common.Address) bool {
	zero := common.Address{}
	return caller != zero && gauge != zero && e.factory != zero
}

func (e *Estimator) classify(result Result, err error) Result {
	failure, ok := types.AsCallFailure(err)
	if ok && failure.Classification == types.ClassPredictable {
		result.Message = failure.Reason()
		result.Level = LevelWarning
		EstimatesTotal.WithLabelValues("warning").Inc()
		e.logger.Warn("estimate-warning",
			zap.String("gauge", result.Gauge.Hex()),
			zap.String("reason", result.Message))
		return result
	}

	if ok {
		result.Message = failure.Reason()
	} else {
		result.Message = types.RevertReason(err.Error())
	}
	result.Level = LevelError
	result.Blocked = true
	EstimatesTotal.WithLabelValues("error").Inc()
	e.logger.Error("estimate-error",
		zap.String("gauge", result.Gauge.Hex()),
		zap.String("reason", result.Message),
		zap.Error(err))
	return result
}
