package factory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/display"
	"github.com/mselser95/vault-factory/internal/eligibility"
	"github.com/mselser95/vault-factory/internal/estimate"
	"github.com/mselser95/vault-factory/internal/testutil"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var factoryAddr = common.HexToAddress("0x21b1FC8A52f179757bf555346130bF27c0C2A17A")

// chainFake answers eligibility from a mutable set and name/symbol from the gauge name.
type chainFake struct {
	mu       sync.Mutex
	eligible map[common.Address]bool
	fail     error
}

func (f *chainFake) set(gauge common.Address, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eligible[gauge] = ok
}

func (f *chainFake) respond(_ context.Context, calls []chain.Call) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}

	results := make([][]interface{}, len(calls))
	for i, call := range calls {
		switch call.Method {
		case chain.MethodCanCreate:
			results[i] = []interface{}{f.eligible[call.Args[0].(common.Address)]}
		case "name":
			results[i] = []interface{}{"Curve.fi Test Gauge Deposit"}
		case "symbol":
			results[i] = []interface{}{"test-gauge"}
		}
	}
	return results, nil
}

type fixture struct {
	driver    *Driver
	chain     *chainFake
	multicall *testutil.MockMulticall
	estimator *testutil.MockEstimator
	submitter *testutil.MockSubmitter
	catalog   atomic.Int32
}

func newFixture(t *testing.T, withSubmitter bool) *fixture {
	t.Helper()
	logger := zap.NewNop()

	f := &fixture{chain: &chainFake{eligible: make(map[common.Address]bool)}}
	f.multicall = testutil.NewMockMulticall(f.chain.respond)
	f.estimator = &testutil.MockEstimator{
		Estimate: func(context.Context, common.Address, common.Address) (uint64, error) {
			return 3_000_000, nil
		},
	}

	resolver, err := eligibility.New(&eligibility.Config{
		Caller: f.multicall, FactoryAddress: factoryAddr, NetworkID: 1, Logger: logger,
	})
	require.NoError(t, err)
	displayResolver, err := display.New(&display.Config{Caller: f.multicall, NetworkID: 1, Logger: logger})
	require.NoError(t, err)
	estimator, err := estimate.New(&estimate.Config{
		Simulator: f.estimator, FactoryAddress: factoryAddr, Logger: logger,
	})
	require.NoError(t, err)

	cfg := &Config{
		Eligibility: resolver,
		Display:     displayResolver,
		Estimator:   estimator,
		Logger:      logger,
	}
	if withSubmitter {
		f.submitter = &testutil.MockSubmitter{Caller: testutil.Caller}
		cfg.Submitter = f.submitter
		cfg.RefreshCatalog = func(context.Context) error {
			f.catalog.Add(1)
			return nil
		}
		cfg.RefreshDelay = time.Millisecond
	}

	f.driver, err = New(cfg)
	require.NoError(t, err)
	return f
}

func TestSetCandidates_Options(t *testing.T) {
	f := newFixture(t, false)

	a := testutil.CreateTestGauge(1, "A")
	b := testutil.CreateTestGauge(2, "B")
	c := testutil.CreateTestGauge(3, "C")
	c.Weight = big.NewInt(0)

	f.chain.set(a.GaugeAddress, false)
	f.chain.set(b.GaugeAddress, true)
	f.chain.set(c.GaugeAddress, true)

	err := f.driver.SetCandidates(context.Background(), []types.Gauge{a, b, c})
	require.NoError(t, err)

	options := f.driver.Options()
	require.Len(t, options, 1)
	assert.Equal(t, "B", options[0].Label)
	assert.Equal(t, b.GaugeAddress, options[0].GaugeAddress)
	assert.Equal(t, b.PoolAddress, options[0].PoolAddress)
	assert.Equal(t, b.TokenAddress, options[0].TokenAddress)
	assert.Equal(t, b.APY[0], options[0].APY)
}

func TestSetCandidates_FailureKeepsPreviousSet(t *testing.T) {
	f := newFixture(t, false)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)

	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))

	f.chain.fail = errors.New("rpc down")
	err := f.driver.SetCandidates(context.Background(), []types.Gauge{a, testutil.CreateTestGauge(2, "B")})
	require.Error(t, err)

	assert.Len(t, f.driver.Options(), 1)
	snap := f.driver.Snapshot()
	assert.NotEmpty(t, snap.EligibleError)
	assert.Equal(t, 2, snap.Candidates)
}

func TestSetCandidates_EmptyListSkipsRemoteCall(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.driver.SetCandidates(context.Background(), nil))
	assert.Equal(t, 0, f.multicall.CallCount())
	assert.Empty(t, f.driver.Options())
}

func TestSelect(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))

	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	snap := f.driver.Snapshot()
	assert.Equal(t, a.GaugeAddress, snap.Selected.GaugeAddress)
	assert.False(t, snap.Display.Loading)
	assert.Equal(t, "Test", snap.Display.Name)
	assert.Equal(t, "Curve Test Factory", snap.Display.VaultName)
	assert.Equal(t, "yvCurve-test-f", snap.Display.VaultSymbol)
	assert.Equal(t, uint64(3_000_000), snap.Estimate.Gas)
	assert.True(t, snap.CanSubmit)
}

func TestSelect_UnknownGauge(t *testing.T) {
	f := newFixture(t, false)

	err := f.driver.Select(context.Background(), common.HexToAddress("0x1234"))
	assert.ErrorIs(t, err, ErrUnknownGauge)
}

func TestSelect_ZeroClears(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	calls := f.multicall.CallCount()
	require.NoError(t, f.driver.Select(context.Background(), common.Address{}))

	snap := f.driver.Snapshot()
	assert.Equal(t, types.GaugeOption{}, snap.Selected)
	assert.Empty(t, snap.Display.Name)
	assert.Zero(t, snap.Estimate.Gas)
	assert.False(t, snap.CanSubmit)
	assert.Equal(t, types.ErrZeroGauge.Error(), snap.CanSubmitError)
	assert.Equal(t, calls, f.multicall.CallCount())
}

func TestSubmit_RefreshesEligibilityAndCatalog(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	b := testutil.CreateTestGauge(2, "B")
	f.chain.set(a.GaugeAddress, true)
	f.chain.set(b.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a, b}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	f.submitter.Submit = func(_ context.Context, gauge common.Address) (*chain.TxResult, error) {
		f.chain.set(gauge, false)
		return &chain.TxResult{Hash: common.HexToHash("0xabc")}, nil
	}

	status, err := f.driver.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
	assert.Equal(t, []common.Address{a.GaugeAddress}, f.submitter.Submitted())
	assert.Equal(t, int32(1), f.catalog.Load())

	options := f.driver.Options()
	require.Len(t, options, 1)
	assert.Equal(t, "B", options[0].Label)
}

func TestSubmit_ZeroSelectionRejected(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.driver.Submit(context.Background())
	assert.ErrorIs(t, err, types.ErrZeroGauge)
	assert.Empty(t, f.submitter.Submitted())
}

func TestSubmit_BlockedByUnpredictableEstimate(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))

	f.estimator.Estimate = func(context.Context, common.Address, common.Address) (uint64, error) {
		return 0, errors.New("dial tcp: i/o timeout")
	}
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	snap := f.driver.Snapshot()
	assert.True(t, snap.Estimate.Blocked)
	assert.False(t, snap.CanSubmit)

	_, err := f.driver.Submit(context.Background())
	assert.ErrorIs(t, err, types.ErrEstimateBlocked)
	assert.Empty(t, f.submitter.Submitted())
}

func TestSubmit_WithoutSigner(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.driver.Submit(context.Background())
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
}

func TestSetSession_ReestimatesAndGuards(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))
	before := f.estimator.CallCount()

	require.NoError(t, f.driver.SetSession(context.Background(), Session{Account: testutil.Caller, Active: false}))

	snap := f.driver.Snapshot()
	assert.Zero(t, snap.Estimate.Gas)
	assert.False(t, snap.CanSubmit)
	assert.Equal(t, types.ErrNotAuthenticated.Error(), snap.CanSubmitError)
	assert.Equal(t, before, f.estimator.CallCount())

	_, err := f.driver.Submit(context.Background())
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)

	require.NoError(t, f.driver.SetSession(context.Background(), Session{Account: testutil.Caller, Active: true}))
	assert.Equal(t, before+1, f.estimator.CallCount())
	assert.True(t, f.driver.Snapshot().CanSubmit)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	f := newFixture(t, false)
	events, cancel := f.driver.Subscribe(16)
	defer cancel()

	require.NoError(t, f.driver.SetCandidates(context.Background(), nil))

	first := <-events
	assert.Equal(t, EventCandidates, first.Kind)
	second := <-events
	assert.Equal(t, EventEligible, second.Kind)

	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestRun_ConsumesCandidateLists(t *testing.T) {
	f := newFixture(t, false)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)

	lists := make(chan []types.Gauge, 1)
	lists <- []types.Gauge{a}
	close(lists)

	err := f.driver.Run(context.Background(), lists)
	require.NoError(t, err)
	assert.Len(t, f.driver.Options(), 1)
}

type fakeFunds struct {
	enabled atomic.Bool
	mu      sync.Mutex
	gas     []uint64
}

func (f *fakeFunds) IsEnabled() bool { return f.enabled.Load() }

func (f *fakeFunds) RecordGas(gasUsed uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gas = append(f.gas, gasUsed)
}

func (f *fakeFunds) recorded() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.gas...)
}

func TestSubmit_FundsGuard(t *testing.T) {
	f := newFixture(t, true)
	funds := &fakeFunds{}
	f.driver.funds = funds

	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	snap := f.driver.Snapshot()
	assert.True(t, snap.FundsBlocked)
	assert.False(t, snap.CanSubmit)
	assert.Equal(t, types.ErrInsufficientFunds.Error(), snap.CanSubmitError)

	_, err := f.driver.Submit(context.Background())
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Empty(t, f.submitter.Submitted())

	funds.enabled.Store(true)
	f.submitter.Submit = func(context.Context, common.Address) (*chain.TxResult, error) {
		return &chain.TxResult{Hash: common.HexToHash("0xabc"), GasUsed: 3_900_000}, nil
	}

	status, err := f.driver.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
	assert.Equal(t, []uint64{3_900_000}, funds.recorded())
}

func TestSelect_ResetsFinishedSubmission(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	b := testutil.CreateTestGauge(2, "B")
	f.chain.set(a.GaugeAddress, true)
	f.chain.set(b.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a, b}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	f.submitter.Submit = func(context.Context, common.Address) (*chain.TxResult, error) {
		return nil, errors.New("nonce too low")
	}
	status, err := f.driver.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.SubmissionFailed, status.State)

	// Re-selecting the same gauge keeps the outcome visible.
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))
	assert.Equal(t, types.SubmissionFailed, f.driver.Snapshot().Submission.State)

	require.NoError(t, f.driver.Select(context.Background(), b.GaugeAddress))
	assert.Equal(t, types.SubmissionIdle, f.driver.Snapshot().Submission.State)
}

func TestSetSession_RejectsForeignAccount(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))
	before := f.estimator.CallCount()

	other := common.HexToAddress("0x00000000000000000000000000000000000000cb")
	err := f.driver.SetSession(context.Background(), Session{Account: other, Active: true})
	require.ErrorIs(t, err, ErrForeignAccount)

	snap := f.driver.Snapshot()
	assert.Equal(t, testutil.Caller, snap.Session.Account)
	assert.Equal(t, testutil.Caller, snap.Estimate.Caller)
	assert.Equal(t, before, f.estimator.CallCount())
	assert.True(t, snap.CanSubmit)
}

func TestSnapshot_WithoutSignerCannotSubmit(t *testing.T) {
	f := newFixture(t, false)
	a := testutil.CreateTestGauge(1, "A")
	f.chain.set(a.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a}))

	require.NoError(t, f.driver.SetSession(context.Background(), Session{Account: testutil.Caller, Active: true}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))

	snap := f.driver.Snapshot()
	assert.Equal(t, uint64(3_000_000), snap.Estimate.Gas, "read-only sessions still get an estimate")
	assert.False(t, snap.CanSubmit)
	assert.Equal(t, types.ErrNotAuthenticated.Error(), snap.CanSubmitError)

	_, err := f.driver.Submit(context.Background())
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
}

// gatedDisplay holds Resolve for one gauge until release is closed.
type gatedDisplay struct {
	*display.Resolver
	gauge   common.Address
	entered chan struct{}
	release chan struct{}
}

func (g *gatedDisplay) Resolve(ctx context.Context, gen uint64, selected types.Gauge) (*types.DisplayMetadata, error) {
	if selected.GaugeAddress == g.gauge {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Resolver.Resolve(ctx, gen, selected)
}

// gatedEstimator holds Estimate for one gauge until release is closed.
type gatedEstimator struct {
	*estimate.Estimator
	gauge   common.Address
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEstimator) Estimate(ctx context.Context, gen uint64, gauge, caller common.Address) (estimate.Result, error) {
	if gauge == g.gauge {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Estimator.Estimate(ctx, gen, gauge, caller)
}

func TestSelect_LaterSelectionWinsWhenResolutionsStartOutOfOrder(t *testing.T) {
	f := newFixture(t, true)
	x := testutil.CreateTestGauge(1, "X")
	y := testutil.CreateTestGauge(2, "Y")
	f.chain.set(x.GaugeAddress, true)
	f.chain.set(y.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{x, y}))

	f.estimator.Estimate = func(_ context.Context, _, gauge common.Address) (uint64, error) {
		if gauge == x.GaugeAddress {
			return 1_000_000, nil
		}
		return 2_000_000, nil
	}

	release := make(chan struct{})
	displayGate := &gatedDisplay{
		Resolver: f.driver.display.(*display.Resolver),
		gauge:    x.GaugeAddress,
		entered:  make(chan struct{}, 1),
		release:  release,
	}
	estimateGate := &gatedEstimator{
		Estimator: f.driver.estimator.(*estimate.Estimator),
		gauge:     x.GaugeAddress,
		entered:   make(chan struct{}, 1),
		release:   release,
	}
	f.driver.display = displayGate
	f.driver.estimator = estimateGate

	done := make(chan error, 1)
	go func() {
		done <- f.driver.Select(context.Background(), x.GaugeAddress)
	}()
	<-displayGate.entered
	<-estimateGate.entered

	// X is written but nothing has been resolved for it yet.
	snap := f.driver.Snapshot()
	assert.Equal(t, x.GaugeAddress, snap.Selected.GaugeAddress)
	assert.True(t, snap.Display.Loading)
	assert.Equal(t, x.GaugeAddress, snap.Display.GaugeAddress)
	assert.True(t, snap.Estimate.Loading)
	assert.Zero(t, snap.Estimate.Gas)

	require.NoError(t, f.driver.Select(context.Background(), y.GaugeAddress))

	close(release)
	require.NoError(t, <-done)

	snap = f.driver.Snapshot()
	assert.Equal(t, y.GaugeAddress, snap.Selected.GaugeAddress)
	assert.False(t, snap.Display.Loading)
	assert.Equal(t, y.GaugeAddress, snap.Display.GaugeAddress)
	assert.Equal(t, "Y", snap.Display.Name)
	assert.False(t, snap.Estimate.Loading)
	assert.Equal(t, y.GaugeAddress, snap.Estimate.Gauge)
	assert.Equal(t, uint64(2_000_000), snap.Estimate.Gas)
}

func TestSnapshot_EstimateLoadingAfterSelectionChange(t *testing.T) {
	f := newFixture(t, true)
	a := testutil.CreateTestGauge(1, "A")
	b := testutil.CreateTestGauge(2, "B")
	f.chain.set(a.GaugeAddress, true)
	f.chain.set(b.GaugeAddress, true)
	require.NoError(t, f.driver.SetCandidates(context.Background(), []types.Gauge{a, b}))
	require.NoError(t, f.driver.Select(context.Background(), a.GaugeAddress))
	require.Equal(t, uint64(3_000_000), f.driver.Snapshot().Estimate.Gas)

	gate := &gatedEstimator{
		Estimator: f.driver.estimator.(*estimate.Estimator),
		gauge:     b.GaugeAddress,
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	f.driver.estimator = gate

	done := make(chan error, 1)
	go func() {
		done <- f.driver.Select(context.Background(), b.GaugeAddress)
	}()
	<-gate.entered

	snap := f.driver.Snapshot()
	assert.True(t, snap.Estimate.Loading)
	assert.Equal(t, b.GaugeAddress, snap.Estimate.Gauge)
	assert.Zero(t, snap.Estimate.Gas, "previous gauge's estimate is not shown")

	close(gate.release)
	require.NoError(t, <-done)

	snap = f.driver.Snapshot()
	assert.False(t, snap.Estimate.Loading)
	assert.Equal(t, uint64(3_000_000), snap.Estimate.Gas)
}
