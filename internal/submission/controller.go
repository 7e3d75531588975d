package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Submitter sends the create transaction and waits for it to be mined.
// *chain.Signer implements it.
type Submitter interface {
	Address() common.Address
	SubmitCreate(ctx context.Context, gauge common.Address) (*chain.TxResult, error)
}

// Recorder persists terminal outcomes. storage.Storage implements it.
type Recorder interface {
	StoreSubmission(ctx context.Context, record *types.SubmissionRecord) error
}

// RefreshFunc is run after a successful submission.
type RefreshFunc func(ctx context.Context) error

// Request is one user-initiated vault creation.
type Request struct {
	Gauge         common.Address
	Authenticated bool
	// EstimateBlocked is the error flag of the current cost estimate.
	EstimateBlocked bool
	// FundsBlocked is set when the signer cannot cover the gas.
	FundsBlocked bool
}

// Status is the observable controller state.
type Status struct {
	State    types.SubmissionState `json:"state"`
	Gauge    common.Address        `json:"gauge"`
	TxHash   common.Hash           `json:"tx_hash"`
	GasUsed  uint64                `json:"gas_used"`
	Reason   string                `json:"reason,omitempty"`
	Draining bool                  `json:"draining"`
}

// Controller runs the Idle -> Pending -> Succeeded|Failed state machine.
// Only one submission is in flight at a time.
type Controller struct {
	submitter      Submitter
	recorder       Recorder
	reresolve      RefreshFunc
	refreshCatalog RefreshFunc
	refreshDelay   time.Duration
	timeout        time.Duration
	onChange       func(Status)
	logger         *zap.Logger

	mu       sync.Mutex
	status   Status
	inFlight bool
}

// Config holds controller configuration.
// Recorder, RefreshCatalog and OnChange are optional.
type Config struct {
	Submitter Submitter
	Recorder  Recorder
	// Reresolve re-runs eligibility over the current candidate list.
	Reresolve RefreshFunc
	// RefreshCatalog reloads the vault catalog.
	RefreshCatalog RefreshFunc
	// RefreshDelay is waited after success so indexers can pick up the new vault.
	RefreshDelay time.Duration
	// Timeout bounds the create transaction, zero means no bound.
	Timeout  time.Duration
	OnChange func(Status)
	Logger   *zap.Logger
}

// New creates a new submission controller.
func New(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	if cfg.Reresolve == nil {
		return nil, errors.New("reresolve cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Controller{
		submitter:      cfg.Submitter,
		recorder:       cfg.Recorder,
		reresolve:      cfg.Reresolve,
		refreshCatalog: cfg.RefreshCatalog,
		refreshDelay:   cfg.RefreshDelay,
		timeout:        cfg.Timeout,
		onChange:       cfg.OnChange,
		logger:         cfg.Logger,
		status:         Status{State: types.SubmissionIdle},
	}, nil
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Reset returns a finished controller to Idle. It is a no-op while in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.status = Status{State: types.SubmissionIdle}
	status := c.status
	c.mu.Unlock()

	c.notify(status)
}

// Submit creates a vault for req.Gauge and blocks until the post-success
// refresh has drained. Guard violations return an error without any call.
// A failed transaction returns the final status together with the failure.
func (c *Controller) Submit(ctx context.Context, req Request) (Status, error) {
	switch {
	case !req.Authenticated:
		GuardRejectionsTotal.WithLabelValues("not-authenticated").Inc()
		return c.Status(), types.ErrNotAuthenticated
	case req.Gauge == (common.Address{}):
		GuardRejectionsTotal.WithLabelValues("zero-gauge").Inc()
		return c.Status(), types.ErrZeroGauge
	case req.EstimateBlocked:
		GuardRejectionsTotal.WithLabelValues("estimate-blocked").Inc()
		return c.Status(), types.ErrEstimateBlocked
	case req.FundsBlocked:
		GuardRejectionsTotal.WithLabelValues("insufficient-funds").Inc()
		return c.Status(), types.ErrInsufficientFunds
	}

	c.mu.Lock()
	if c.inFlight {
		status := c.status
		c.mu.Unlock()
		GuardRejectionsTotal.WithLabelValues("in-flight").Inc()
		return status, types.ErrSubmissionInFlight
	}
	c.inFlight = true
	c.status = Status{State: types.SubmissionPending, Gauge: req.Gauge}
	pending := c.status
	c.mu.Unlock()

	c.notify(pending)

	submittedAt := time.Now()
	c.logger.Info("submission-started",
		zap.String("gauge", req.Gauge.Hex()),
		zap.String("caller", c.submitter.Address().Hex()))

	txCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.submitter.SubmitCreate(txCtx, req.Gauge)
	SubmissionDurationSeconds.Observe(time.Since(submittedAt).Seconds())

	if err != nil {
		status := c.fail(req.Gauge, result, err)
		c.record(ctx, status, submittedAt)
		return c.finish(), fmt.Errorf("submit create: %w", err)
	}

	status := c.succeed(req.Gauge, result)
	c.record(ctx, status, submittedAt)
	c.drain(ctx)

	return c.finish(), nil
}

func (c *Controller) fail(gauge common.Address, result *chain.TxResult, err error) Status {
	reason := types.RevertReason(err.Error())
	if failure, ok := types.AsCallFailure(err); ok {
		reason = failure.Reason()
	}

	c.mu.Lock()
	c.status = Status{State: types.SubmissionFailed, Gauge: gauge, Reason: reason}
	if result != nil {
		c.status.TxHash = result.Hash
		c.status.GasUsed = result.GasUsed
	}
	status := c.status
	c.mu.Unlock()

	SubmissionsTotal.WithLabelValues(string(types.SubmissionFailed)).Inc()
	c.logger.Error("submission-failed",
		zap.String("gauge", gauge.Hex()),
		zap.String("reason", reason),
		zap.Error(err))

	c.notify(status)
	return status
}

func (c *Controller) succeed(gauge common.Address, result *chain.TxResult) Status {
	c.mu.Lock()
	c.status = Status{
		State:    types.SubmissionSucceeded,
		Gauge:    gauge,
		TxHash:   result.Hash,
		GasUsed:  result.GasUsed,
		Draining: true,
	}
	status := c.status
	c.mu.Unlock()

	SubmissionsTotal.WithLabelValues(string(types.SubmissionSucceeded)).Inc()
	c.logger.Info("submission-succeeded",
		zap.String("gauge", gauge.Hex()),
		zap.String("tx-hash", result.Hash.Hex()),
		zap.Uint64("gas-used", result.GasUsed))

	c.notify(status)
	return status
}

// drain waits refreshDelay, then re-runs eligibility and the catalog refresh together.
// Their failures are logged and never change the submission state.
func (c *Controller) drain(ctx context.Context) {
	if c.refreshDelay > 0 {
		timer := time.NewTimer(c.refreshDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Warn("post-submit-refresh-cancelled", zap.Error(ctx.Err()))
			return
		case <-timer.C:
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		err := c.reresolve(ctx)
		if err != nil {
			RefreshFailuresTotal.WithLabelValues("eligibility").Inc()
			c.logger.Error("post-submit-eligibility-failed", zap.Error(err))
		}
		return err
	})

	if c.refreshCatalog != nil {
		g.Go(func() error {
			err := c.refreshCatalog(ctx)
			if err != nil {
				RefreshFailuresTotal.WithLabelValues("catalog").Inc()
				c.logger.Error("post-submit-catalog-refresh-failed", zap.Error(err))
			}
			return err
		})
	}

	err := g.Wait()
	c.logger.Debug("post-submit-refresh-drained", zap.Bool("clean", err == nil))
}

func (c *Controller) finish() Status {
	c.mu.Lock()
	c.inFlight = false
	c.status.Draining = false
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	return status
}

func (c *Controller) record(ctx context.Context, status Status, submittedAt time.Time) {
	if c.recorder == nil {
		return
	}

	record := &types.SubmissionRecord{
		ID:           uuid.New().String(),
		GaugeAddress: status.Gauge,
		Caller:       c.submitter.Address(),
		TxHash:       status.TxHash,
		State:        status.State,
		Reason:       status.Reason,
		GasUsed:      status.GasUsed,
		SubmittedAt:  submittedAt,
		CompletedAt:  time.Now(),
	}

	err := c.recorder.StoreSubmission(ctx, record)
	if err != nil {
		c.logger.Error("failed-to-record-submission",
			zap.String("submission-id", record.ID),
			zap.Error(err))
	}
}

func (c *Controller) notify(status Status) {
	if c.onChange != nil {
		c.onChange(status)
	}
}
