package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Call is one read-only query inside a batch.
type Call struct {
	Target common.Address
	ABI    *abi.ABI
	Method string
	Args   []interface{}
}

// call3 mirrors Multicall3.Call3.
type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// call3Result mirrors Multicall3.Result.
type call3Result struct {
	Success    bool
	ReturnData []byte
}

// Aggregate runs calls as a single aggregate3 call against one block.
// Results are returned in input order, each unpacked with its method's outputs.
// Any failing sub-call fails the whole batch.
func (c *Client) Aggregate(ctx context.Context, networkID uint64, calls []Call) (results [][]interface{}, err error) {
	if networkID != c.networkID {
		return nil, fmt.Errorf("%w: %d", types.ErrUnsupportedNetwork, networkID)
	}
	if len(calls) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		MulticallDurationSeconds.Observe(time.Since(start).Seconds())
		MulticallSubCallsTotal.Add(float64(len(calls)))
		if err != nil {
			CallFailuresTotal.WithLabelValues(string(types.KindRemoteCall)).Inc()
		}
	}()

	packed := make([]call3, len(calls))
	for i := range calls {
		data, packErr := calls[i].ABI.Pack(calls[i].Method, calls[i].Args...)
		if packErr != nil {
			return nil, fmt.Errorf("pack call %d (%s): %w", i, calls[i].Method, packErr)
		}
		packed[i] = call3{Target: calls[i].Target, AllowFailure: false, CallData: data}
	}

	input, err := Multicall3ABI.Pack("aggregate3", packed)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.multicall, Data: input}, nil)
	if err != nil {
		return nil, classify(types.KindRemoteCall, err)
	}

	out, err := Multicall3ABI.Unpack("aggregate3", raw)
	if err != nil {
		return nil, remoteFailure(fmt.Errorf("unpack aggregate3: %w", err))
	}
	if len(out) != 1 {
		return nil, remoteFailure(fmt.Errorf("unpack aggregate3: %d return values", len(out)))
	}

	converted, ok := abi.ConvertType(out[0], new([]call3Result)).(*[]call3Result)
	if !ok {
		return nil, remoteFailure(fmt.Errorf("unexpected aggregate3 result type %T", out[0]))
	}
	batch := *converted
	if len(batch) != len(calls) {
		return nil, remoteFailure(fmt.Errorf("aggregate3 returned %d results for %d calls", len(batch), len(calls)))
	}

	results = make([][]interface{}, len(batch))
	for i := range batch {
		if !batch[i].Success {
			return nil, remoteFailure(fmt.Errorf("sub-call %d (%s) failed", i, calls[i].Method))
		}
		values, unpackErr := calls[i].ABI.Unpack(calls[i].Method, batch[i].ReturnData)
		if unpackErr != nil {
			return nil, remoteFailure(fmt.Errorf("unpack sub-call %d (%s): %w", i, calls[i].Method, unpackErr))
		}
		results[i] = values
	}

	c.logger.Debug("multicall-complete",
		zap.Int("calls", len(calls)),
		zap.Duration("duration", time.Since(start)))

	return results, nil
}

func remoteFailure(err error) *types.CallFailure {
	return &types.CallFailure{
		Kind:           types.KindRemoteCall,
		Classification: types.ClassUnpredictable,
		RawMessage:     err.Error(),
		Err:            err,
	}
}
