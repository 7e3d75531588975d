package display

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mselser95/vault-factory/internal/testutil"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/chain"
	"github.com/mselser95/vault-factory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nameSymbol(name, symbol string) [][]interface{} {
	return [][]interface{}{{name}, {symbol}}
}

func newResolver(t *testing.T, caller Caller, c cache.Cache) *Resolver {
	t.Helper()
	r, err := New(&Config{
		Caller:    caller,
		NetworkID: 1,
		Cache:     c,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return r
}

func TestResolve_CleansNameAndSymbol(t *testing.T) {
	gauge := testutil.CreateTestGauge(1, "frax")
	mc := testutil.NewMockMulticall(func(_ context.Context, calls []chain.Call) ([][]interface{}, error) {
		return nameSymbol("Curve.fi FRAX/USDC Gauge Deposit", "crvFRAX-gauge"), nil
	})
	r := newResolver(t, mc, nil)

	metadata, err := r.Resolve(context.Background(), 1, gauge)
	require.NoError(t, err)
	assert.Equal(t, "FRAX/USDC", metadata.Name)
	assert.Equal(t, "crvFRAX", metadata.Symbol)
	assert.Equal(t, gauge.PoolAddress, metadata.PoolAddress)
	assert.Equal(t, gauge.GaugeAddress, metadata.GaugeAddress)
	assert.Equal(t, "Curve FRAX/USDC Factory", metadata.VaultName())
	assert.Equal(t, "yvCurve-crvFRAX-f", metadata.VaultSymbol())

	batches := mc.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "name", batches[0][0].Method)
	assert.Equal(t, "symbol", batches[0][1].Method)
	assert.Equal(t, gauge.GaugeAddress, batches[0][0].Target)

	state := r.State()
	assert.False(t, state.Loading)
	assert.Equal(t, metadata, state.Metadata)
}

func TestResolve_FallsBackToCandidateName(t *testing.T) {
	mc := testutil.NewMockMulticall(func(_ context.Context, _ []chain.Call) ([][]interface{}, error) {
		return nameSymbol("Curve.fi Gauge Deposit", "-gauge-f"), nil
	})
	r := newResolver(t, mc, nil)

	metadata, err := r.Resolve(context.Background(), 1, testutil.CreateTestGauge(1, "frax"))
	require.NoError(t, err)
	assert.Equal(t, "frax", metadata.Name)
	assert.Equal(t, "frax", metadata.Symbol)
}

func TestResolve_ZeroSelectionClearsWithoutCall(t *testing.T) {
	mc := testutil.NewMockMulticall(func(_ context.Context, _ []chain.Call) ([][]interface{}, error) {
		return nameSymbol("Curve.fi A Gauge Deposit", "A-gauge"), nil
	})
	r := newResolver(t, mc, nil)

	_, err := r.Resolve(context.Background(), 1, testutil.CreateTestGauge(1, "A"))
	require.NoError(t, err)

	metadata, err := r.Resolve(context.Background(), 2, types.Gauge{})
	require.NoError(t, err)
	assert.Nil(t, metadata)
	assert.Equal(t, 1, mc.CallCount())
	assert.Equal(t, State{}, r.State())
}

func TestResolve_LastSelectionWins(t *testing.T) {
	x := testutil.CreateTestGauge(1, "X")
	y := testutil.CreateTestGauge(2, "Y")

	releaseX := make(chan struct{})
	startedX := make(chan struct{})

	mc := testutil.NewMockMulticall(func(_ context.Context, calls []chain.Call) ([][]interface{}, error) {
		if calls[0].Target == x.GaugeAddress {
			close(startedX)
			<-releaseX
			return nameSymbol("Curve.fi X Gauge Deposit", "X-gauge"), nil
		}
		return nameSymbol("Curve.fi Y Gauge Deposit", "Y-gauge"), nil
	})
	r := newResolver(t, mc, nil)

	var wg sync.WaitGroup
	var errX error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errX = r.Resolve(context.Background(), 1, x)
	}()

	<-startedX
	assert.True(t, r.State().Loading)

	metaY, errY := r.Resolve(context.Background(), 2, y)
	require.NoError(t, errY)
	assert.Equal(t, "Y", metaY.Name)

	close(releaseX)
	wg.Wait()

	assert.True(t, errors.Is(errX, types.ErrSuperseded))

	state := r.State()
	require.NotNil(t, state.Metadata)
	assert.Equal(t, "Y", state.Metadata.Name)
	assert.Equal(t, y.GaugeAddress, state.Gauge)
}

func TestResolve_OlderGenerationNeverApplied(t *testing.T) {
	x := testutil.CreateTestGauge(1, "X")
	y := testutil.CreateTestGauge(2, "Y")

	mc := testutil.NewMockMulticall(func(_ context.Context, calls []chain.Call) ([][]interface{}, error) {
		if calls[0].Target == x.GaugeAddress {
			return nameSymbol("Curve.fi X Gauge Deposit", "X-gauge"), nil
		}
		return nameSymbol("Curve.fi Y Gauge Deposit", "Y-gauge"), nil
	})
	r := newResolver(t, mc, nil)

	// Y was selected after X but its resolution started first.
	_, err := r.Resolve(context.Background(), 2, y)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), 1, x)
	require.ErrorIs(t, err, types.ErrSuperseded)
	assert.Equal(t, 1, mc.CallCount())

	state := r.State()
	require.NotNil(t, state.Metadata)
	assert.Equal(t, y.GaugeAddress, state.Gauge)
	assert.Equal(t, "Y", state.Metadata.Name)
}

func TestResolve_CachedNamesUseCurrentFallback(t *testing.T) {
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:    "display-fallback",
		MaxCost: 10,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	defer c.Close()

	mc := testutil.NewMockMulticall(func(_ context.Context, _ []chain.Call) ([][]interface{}, error) {
		return nameSymbol("Curve.fi Gauge Deposit", "-gauge"), nil
	})
	r := newResolver(t, mc, c)
	gauge := testutil.CreateTestGauge(1, "old")

	metadata, err := r.Resolve(context.Background(), 1, gauge)
	require.NoError(t, err)
	assert.Equal(t, "old", metadata.Name)
	c.Wait()

	gauge.Name = "renamed"
	metadata, err = r.Resolve(context.Background(), 2, gauge)
	require.NoError(t, err)
	assert.Equal(t, "renamed", metadata.Name)
	assert.Equal(t, "renamed", metadata.Symbol)
	assert.Equal(t, 1, mc.CallCount())
}

func TestResolve_RemoteFailure(t *testing.T) {
	failure := &types.CallFailure{Kind: types.KindRemoteCall, Classification: types.ClassUnpredictable, RawMessage: "timeout"}
	mc := testutil.NewMockMulticall(func(_ context.Context, _ []chain.Call) ([][]interface{}, error) {
		return nil, failure
	})
	r := newResolver(t, mc, nil)

	_, err := r.Resolve(context.Background(), 1, testutil.CreateTestGauge(1, "A"))
	require.Error(t, err)

	_, ok := types.AsCallFailure(err)
	assert.True(t, ok)

	state := r.State()
	assert.False(t, state.Loading)
	assert.Nil(t, state.Metadata)
	assert.Error(t, state.Err)
}

func TestResolve_UsesCache(t *testing.T) {
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "display",
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	defer c.Close()

	mc := testutil.NewMockMulticall(func(_ context.Context, _ []chain.Call) ([][]interface{}, error) {
		return nameSymbol("Curve.fi A Gauge Deposit", "A-gauge"), nil
	})
	r := newResolver(t, mc, c)
	gauge := testutil.CreateTestGauge(1, "A")

	_, err = r.Resolve(context.Background(), 1, gauge)
	require.NoError(t, err)
	c.Wait()

	metadata, err := r.Resolve(context.Background(), 2, gauge)
	require.NoError(t, err)
	assert.Equal(t, "A", metadata.Name)
	assert.Equal(t, 1, mc.CallCount())
}

func TestCleanSymbol(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"crvFRAX-gauge", "crvFRAX"},
		{"3Crv-f-gauge", "3Crv"},
		{"plain", "plain"},
		{"", "fallback"},
	}

	for _, tt := range tests {
		if got := CleanSymbol(tt.raw, "fallback"); got != tt.want {
			t.Errorf("CleanSymbol(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
