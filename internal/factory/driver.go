package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/display"
	"github.com/mselser95/vault-factory/internal/estimate"
	"github.com/mselser95/vault-factory/internal/submission"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownGauge is returned when selecting a gauge that is not a current option.
	ErrUnknownGauge = errors.New("gauge is not an eligible option")
	// ErrForeignAccount is returned when a session names an account other than the signer's.
	ErrForeignAccount = errors.New("session account does not match the signer")
)

// Eligibility filters candidates down to creatable gauges.
type Eligibility interface {
	Resolve(ctx context.Context, candidates []types.Gauge) ([]types.Gauge, error)
}

// Display resolves presentation metadata for a selection.
type Display interface {
	Resolve(ctx context.Context, gen uint64, selected types.Gauge) (*types.DisplayMetadata, error)
	State() display.State
}

// Estimator simulates the create call for a selection.
type Estimator interface {
	Estimate(ctx context.Context, gen uint64, gauge common.Address, caller common.Address) (estimate.Result, error)
	Current() estimate.Result
}

// FundsGuard tells whether the signer can pay for a create transaction and
// learns from the gas used by mined ones.
type FundsGuard interface {
	IsEnabled() bool
	RecordGas(gasUsed uint64)
}

// Session is the caller identity used for estimates and submissions.
type Session struct {
	Account common.Address `json:"account"`
	Active  bool           `json:"active"`
}

func (s Session) caller() common.Address {
	if !s.Active {
		return common.Address{}
	}
	return s.Account
}

// Driver owns the candidate list, eligible set, selection and session, and
// re-runs the dependent resolvers when they change.
type Driver struct {
	eligibility Eligibility
	display     Display
	estimator   Estimator
	submissions *submission.Controller
	signer      common.Address
	funds       FundsGuard
	events      *broadcaster
	logger      *zap.Logger

	mu            sync.RWMutex
	candidates    []types.Gauge
	candidatesGen uint64
	eligible      []types.Gauge
	eligibleErr   error
	selected      types.Gauge
	session       Session
	// Bumped under mu whenever selected (displayGen) or the estimate inputs
	// (estimateGen) are written, so resolutions apply in write order.
	displayGen  uint64
	estimateGen uint64
}

// Config holds driver configuration. The submission controller is built
// from the Submit* fields with the driver's own eligibility re-run.
type Config struct {
	Eligibility Eligibility
	Display     Display
	Estimator   Estimator

	Submitter      submission.Submitter
	Recorder       submission.Recorder
	RefreshCatalog submission.RefreshFunc
	RefreshDelay   time.Duration
	SubmitTimeout  time.Duration
	// Funds is optional; without it the balance is not checked.
	Funds FundsGuard

	Logger *zap.Logger
}

// New creates a new orchestration driver.
func New(cfg *Config) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Eligibility == nil || cfg.Display == nil || cfg.Estimator == nil {
		return nil, errors.New("eligibility, display and estimator are required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	d := &Driver{
		eligibility: cfg.Eligibility,
		display:     cfg.Display,
		estimator:   cfg.Estimator,
		funds:       cfg.Funds,
		events:      newBroadcaster(),
		logger:      cfg.Logger,
		eligible:    []types.Gauge{},
	}

	if cfg.Submitter != nil {
		controller, err := submission.New(&submission.Config{
			Submitter: cfg.Submitter,
			Recorder:  cfg.Recorder,
			Reresolve: func(ctx context.Context) error {
				err := d.Reresolve(ctx)
				if errors.Is(err, types.ErrSuperseded) {
					return nil
				}
				return err
			},
			RefreshCatalog: cfg.RefreshCatalog,
			RefreshDelay:   cfg.RefreshDelay,
			Timeout:        cfg.SubmitTimeout,
			OnChange: func(submission.Status) {
				d.publish(EventSubmission)
			},
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create submission controller: %w", err)
		}
		d.submissions = controller
		d.signer = cfg.Submitter.Address()
		d.session = Session{Account: d.signer, Active: true}
	}

	return d, nil
}

// Run feeds every candidate list from lists into the driver until ctx ends.
func (d *Driver) Run(ctx context.Context, lists <-chan []types.Gauge) error {
	d.logger.Info("driver-starting")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver-stopping")
			return ctx.Err()
		case list, ok := <-lists:
			if !ok {
				d.logger.Info("candidate-source-closed")
				return nil
			}
			err := d.SetCandidates(ctx, list)
			if err != nil && !errors.Is(err, types.ErrSuperseded) {
				d.logger.Error("eligibility-resolution-failed", zap.Error(err))
			}
		}
	}
}

// SetCandidates replaces the candidate list and recomputes the eligible set.
func (d *Driver) SetCandidates(ctx context.Context, candidates []types.Gauge) error {
	d.mu.Lock()
	d.candidates = candidates
	d.candidatesGen++
	d.mu.Unlock()

	CandidateLists.Inc()
	d.publish(EventCandidates)

	return d.Reresolve(ctx)
}

// Reresolve recomputes the eligible set for the current candidate list.
// A newer candidate list makes this result stale; it is then dropped.
// On failure the previous eligible set is kept.
func (d *Driver) Reresolve(ctx context.Context) error {
	d.mu.RLock()
	candidates := d.candidates
	gen := d.candidatesGen
	d.mu.RUnlock()

	eligible, err := d.eligibility.Resolve(ctx, candidates)

	d.mu.Lock()
	if gen != d.candidatesGen {
		d.mu.Unlock()
		return types.ErrSuperseded
	}
	d.eligibleErr = err
	if err == nil {
		d.eligible = eligible
	}
	d.mu.Unlock()

	d.publish(EventEligible)

	if err != nil {
		return fmt.Errorf("resolve eligibility: %w", err)
	}

	d.logger.Info("eligibility-resolved",
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)))
	return nil
}

// Options returns the selectable gauges: eligible and weighted.
func (d *Driver) Options() []types.GaugeOption {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return optionsOf(d.eligible)
}

func optionsOf(eligible []types.Gauge) []types.GaugeOption {
	options := make([]types.GaugeOption, 0, len(eligible))
	for i := range eligible {
		if eligible[i].HasWeight() {
			options = append(options, eligible[i].Option())
		}
	}
	return options
}

// Select makes gauge the current selection and re-runs display and estimate.
// The zero address clears the selection.
func (d *Driver) Select(ctx context.Context, gauge common.Address) error {
	selected := types.Gauge{}

	if gauge != (common.Address{}) {
		found := false
		d.mu.RLock()
		for i := range d.eligible {
			if d.eligible[i].GaugeAddress == gauge && d.eligible[i].HasWeight() {
				selected = d.eligible[i]
				found = true
				break
			}
		}
		d.mu.RUnlock()

		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownGauge, gauge.Hex())
		}
	}

	d.mu.Lock()
	changed := d.selected.GaugeAddress != selected.GaugeAddress
	d.selected = selected
	d.displayGen++
	d.estimateGen++
	displayGen, estimateGen := d.displayGen, d.estimateGen
	session := d.session
	d.mu.Unlock()

	// A finished submission belongs to the previous selection.
	if changed && d.submissions != nil {
		d.submissions.Reset()
	}

	SelectionsTotal.Inc()
	d.publish(EventSelection)

	var g errgroup.Group
	g.Go(func() error {
		_, err := d.display.Resolve(ctx, displayGen, selected)
		if errors.Is(err, types.ErrSuperseded) {
			return nil
		}
		d.publish(EventDisplay)
		return err
	})
	g.Go(func() error {
		d.runEstimate(ctx, estimateGen, selected.GaugeAddress, session)
		return nil
	})

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("resolve display metadata: %w", err)
	}
	return nil
}

// SetSession changes the caller and re-runs the estimate for the current selection.
// With a signer configured, an active session must name the signer's account.
func (d *Driver) SetSession(ctx context.Context, session Session) error {
	if d.submissions != nil && session.Active && session.Account != d.signer {
		return fmt.Errorf("%w: %s", ErrForeignAccount, session.Account.Hex())
	}

	d.mu.Lock()
	changed := d.session != session
	if !changed {
		d.mu.Unlock()
		return nil
	}
	d.session = session
	d.estimateGen++
	gen := d.estimateGen
	gauge := d.selected.GaugeAddress
	d.mu.Unlock()

	d.publish(EventSession)
	d.runEstimate(ctx, gen, gauge, session)
	return nil
}

func (d *Driver) runEstimate(ctx context.Context, gen uint64, gauge common.Address, session Session) {
	_, err := d.estimator.Estimate(ctx, gen, gauge, session.caller())
	if errors.Is(err, types.ErrSuperseded) {
		return
	}
	d.publish(EventEstimate)
}

// Submit creates a vault for the current selection.
func (d *Driver) Submit(ctx context.Context) (submission.Status, error) {
	if d.submissions == nil {
		return submission.Status{State: types.SubmissionIdle}, types.ErrNotAuthenticated
	}

	d.mu.RLock()
	gauge := d.selected.GaugeAddress
	session := d.session
	d.mu.RUnlock()

	current := d.estimator.Current()
	blocked := current.Blocked && current.Matches(gauge, session.caller())

	status, err := d.submissions.Submit(ctx, submission.Request{
		Gauge:           gauge,
		Authenticated:   session.Active && session.Account != (common.Address{}),
		EstimateBlocked: blocked,
		FundsBlocked:    d.fundsBlocked(),
	})
	if err == nil && d.funds != nil && status.State == types.SubmissionSucceeded {
		d.funds.RecordGas(status.GasUsed)
	}
	return status, err
}

func (d *Driver) fundsBlocked() bool {
	return d.funds != nil && !d.funds.IsEnabled()
}

// Subscribe returns a stream of state change events and a function to stop it.
func (d *Driver) Subscribe(buffer int) (<-chan Event, func()) {
	return d.events.subscribe(buffer)
}

func (d *Driver) publish(kind EventKind) {
	d.events.publish(Event{Kind: kind, Snapshot: d.Snapshot()})
}
