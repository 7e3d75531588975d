package submission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/testutil"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var gauge = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type counters struct {
	reresolve atomic.Int32
	catalog   atomic.Int32
}

func newController(t *testing.T, sub Submitter, rec Recorder, c *counters, catalogErr error) *Controller {
	t.Helper()
	ctrl, err := New(&Config{
		Submitter: sub,
		Recorder:  rec,
		Reresolve: func(context.Context) error {
			c.reresolve.Add(1)
			return nil
		},
		RefreshCatalog: func(context.Context) error {
			c.catalog.Add(1)
			return catalogErr
		},
		RefreshDelay: time.Millisecond,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return ctrl
}

func validRequest() Request {
	return Request{Gauge: gauge, Authenticated: true}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Logger: zap.NewNop(), Reresolve: func(context.Context) error { return nil }})
	assert.Error(t, err)

	_, err = New(&Config{Logger: zap.NewNop(), Submitter: &testutil.MockSubmitter{}})
	assert.Error(t, err)
}

func TestSubmit_SuccessFansOutOnce(t *testing.T) {
	sub := &testutil.MockSubmitter{Caller: testutil.Caller}
	store := testutil.NewMockStorage()
	var c counters
	ctrl := newController(t, sub, store, &c, nil)

	status, err := ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
	assert.False(t, status.Draining)
	assert.Equal(t, common.HexToHash("0x01"), status.TxHash)

	assert.Equal(t, int32(1), c.reresolve.Load())
	assert.Equal(t, int32(1), c.catalog.Load())
	assert.Equal(t, []common.Address{gauge}, sub.Submitted())

	records := store.GetSubmissions()
	require.Len(t, records, 1)
	assert.Equal(t, types.SubmissionSucceeded, records[0].State)
	assert.Equal(t, testutil.Caller, records[0].Caller)
	assert.NotEmpty(t, records[0].ID)
}

func TestSubmit_RefreshFailureKeepsSucceeded(t *testing.T) {
	var c counters
	ctrl := newController(t, &testutil.MockSubmitter{}, nil, &c, errors.New("catalog down"))

	status, err := ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
	assert.Equal(t, types.SubmissionSucceeded, ctrl.Status().State)
	assert.Equal(t, int32(1), c.reresolve.Load())
	assert.Equal(t, int32(1), c.catalog.Load())
}

func TestSubmit_Guards(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"not authenticated", Request{Gauge: gauge}, types.ErrNotAuthenticated},
		{"zero gauge", Request{Authenticated: true}, types.ErrZeroGauge},
		{"estimate blocked", Request{Gauge: gauge, Authenticated: true, EstimateBlocked: true}, types.ErrEstimateBlocked},
		{"insufficient funds", Request{Gauge: gauge, Authenticated: true, FundsBlocked: true}, types.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &testutil.MockSubmitter{}
			var c counters
			ctrl := newController(t, sub, nil, &c, nil)

			status, err := ctrl.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, types.SubmissionIdle, status.State)
			assert.Empty(t, sub.Submitted())
			assert.Zero(t, c.reresolve.Load())
		})
	}
}

func TestSubmit_FailureSurfacesReason(t *testing.T) {
	sub := &testutil.MockSubmitter{
		Submit: func(context.Context, common.Address) (*chain.TxResult, error) {
			return &chain.TxResult{Hash: common.HexToHash("0xdead"), GasUsed: 50_000}, &types.CallFailure{
				Kind:           types.KindSubmission,
				Classification: types.ClassPredictable,
				RawMessage:     "execution reverted: Vault already exists",
			}
		},
	}
	store := testutil.NewMockStorage()
	var c counters
	ctrl := newController(t, sub, store, &c, nil)

	status, err := ctrl.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, types.SubmissionFailed, status.State)
	assert.Equal(t, "Vault already exists", status.Reason)
	assert.Equal(t, common.HexToHash("0xdead"), status.TxHash)

	failure, ok := types.AsCallFailure(err)
	require.True(t, ok)
	assert.Equal(t, types.KindSubmission, failure.Kind)

	assert.Zero(t, c.reresolve.Load())
	assert.Zero(t, c.catalog.Load())

	records := store.GetSubmissions()
	require.Len(t, records, 1)
	assert.Equal(t, types.SubmissionFailed, records[0].State)
}

func TestSubmit_RejectsWhilePending(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sub := &testutil.MockSubmitter{
		Submit: func(context.Context, common.Address) (*chain.TxResult, error) {
			close(started)
			<-release
			return &chain.TxResult{Hash: common.HexToHash("0x02")}, nil
		},
	}
	var c counters
	ctrl := newController(t, sub, nil, &c, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = ctrl.Submit(context.Background(), validRequest())
	}()

	<-started
	assert.Equal(t, types.SubmissionPending, ctrl.Status().State)

	_, err := ctrl.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, types.ErrSubmissionInFlight)

	close(release)
	wg.Wait()

	assert.Len(t, sub.Submitted(), 1)
	assert.Equal(t, types.SubmissionSucceeded, ctrl.Status().State)
}

func TestSubmit_NewSubmissionAfterFailure(t *testing.T) {
	var calls atomic.Int32
	sub := &testutil.MockSubmitter{
		Submit: func(context.Context, common.Address) (*chain.TxResult, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("nonce too low")
			}
			return &chain.TxResult{Hash: common.HexToHash("0x03")}, nil
		},
	}
	var c counters
	ctrl := newController(t, sub, nil, &c, nil)

	status, err := ctrl.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, types.SubmissionFailed, status.State)
	assert.Equal(t, "nonce too low", status.Reason)

	status, err = ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
	assert.Empty(t, status.Reason)
}

func TestSubmit_RefreshWaitsForDelay(t *testing.T) {
	var refreshedAt time.Time
	var mu sync.Mutex

	ctrl, err := New(&Config{
		Submitter: &testutil.MockSubmitter{},
		Reresolve: func(context.Context) error {
			mu.Lock()
			refreshedAt = time.Now()
			mu.Unlock()
			return nil
		},
		RefreshDelay: 50 * time.Millisecond,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, refreshedAt.Sub(start), 50*time.Millisecond)
}

func TestSubmit_StatusChangesNotified(t *testing.T) {
	var mu sync.Mutex
	var states []types.SubmissionState

	ctrl, err := New(&Config{
		Submitter: &testutil.MockSubmitter{},
		Reresolve: func(context.Context) error { return nil },
		OnChange: func(s Status) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	_, err = ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	ctrl.Reset()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, types.SubmissionPending, states[0])
	assert.Contains(t, states, types.SubmissionSucceeded)
	assert.Equal(t, types.SubmissionIdle, states[len(states)-1])
	assert.Equal(t, types.SubmissionIdle, ctrl.Status().State)
}

func TestSubmit_LedgerFailureDoesNotChangeState(t *testing.T) {
	store := testutil.NewMockStorage()
	store.Err = errors.New("db down")
	var c counters
	ctrl := newController(t, &testutil.MockSubmitter{}, store, &c, nil)

	status, err := ctrl.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, types.SubmissionSucceeded, status.State)
}
