package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mselser95/vault-factory/pkg/chain"
)

// MockMulticall fakes the batched read-only call facility.
// Respond is invoked for every batch; when nil, every sub-call returns true.
type MockMulticall struct {
	Respond func(ctx context.Context, calls []chain.Call) ([][]interface{}, error)

	mu      sync.Mutex
	batches [][]chain.Call
}

// NewMockMulticall creates a multicall fake with the given responder.
func NewMockMulticall(respond func(ctx context.Context, calls []chain.Call) ([][]interface{}, error)) *MockMulticall {
	return &MockMulticall{Respond: respond}
}

// Aggregate records the batch and delegates to Respond.
func (m *MockMulticall) Aggregate(ctx context.Context, networkID uint64, calls []chain.Call) ([][]interface{}, error) {
	m.mu.Lock()
	m.batches = append(m.batches, calls)
	respond := m.Respond
	m.mu.Unlock()

	if respond == nil {
		results := make([][]interface{}, len(calls))
		for i := range results {
			results[i] = []interface{}{true}
		}
		return results, nil
	}
	return respond(ctx, calls)
}

// CallCount returns the number of batches dispatched.
func (m *MockMulticall) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Batches returns every dispatched batch in order.
func (m *MockMulticall) Batches() [][]chain.Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]chain.Call, len(m.batches))
	copy(result, m.batches)
	return result
}

// Bools builds a batched result of single bool values.
func Bools(values ...bool) [][]interface{} {
	results := make([][]interface{}, len(values))
	for i, v := range values {
		results[i] = []interface{}{v}
	}
	return results
}

// MockEstimator fakes gas simulation of the create call.
type MockEstimator struct {
	Estimate func(ctx context.Context, caller common.Address, gauge common.Address) (uint64, error)

	mu    sync.Mutex
	calls int
}

// EstimateCreate records the call and delegates to Estimate.
func (m *MockEstimator) EstimateCreate(ctx context.Context, caller common.Address, gauge common.Address) (uint64, error) {
	m.mu.Lock()
	m.calls++
	estimate := m.Estimate
	m.mu.Unlock()

	if estimate == nil {
		return 0, nil
	}
	return estimate(ctx, caller, gauge)
}

// CallCount returns the number of simulations requested.
func (m *MockEstimator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSubmitter fakes the signing layer's create transaction.
type MockSubmitter struct {
	Caller common.Address
	Submit func(ctx context.Context, gauge common.Address) (*chain.TxResult, error)

	mu     sync.Mutex
	gauges []common.Address
}

// Address returns the configured caller.
func (m *MockSubmitter) Address() common.Address {
	return m.Caller
}

// SubmitCreate records the gauge and delegates to Submit.
func (m *MockSubmitter) SubmitCreate(ctx context.Context, gauge common.Address) (*chain.TxResult, error) {
	m.mu.Lock()
	m.gauges = append(m.gauges, gauge)
	submit := m.Submit
	m.mu.Unlock()

	if submit == nil {
		return &chain.TxResult{Hash: common.HexToHash("0x01"), GasUsed: 21000}, nil
	}
	return submit(ctx, gauge)
}

// Submitted returns the gauges that were submitted, in order.
func (m *MockSubmitter) Submitted() []common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]common.Address, len(m.gauges))
	copy(result, m.gauges)
	return result
}

// multicallCall and multicallResult mirror Multicall3's tuple layouts.
type multicallCall struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type multicallResult struct {
	Success    bool
	ReturnData []byte
}

// MockBackend fakes an Ethereum RPC node. It answers Multicall3 aggregate3
// calls by decoding each sub-call against the vault factory and ERC20 ABIs
// and packing whatever Respond returns.
type MockBackend struct {
	// Respond returns the outputs of one sub-call. When nil, DefaultResponse is used.
	Respond func(target common.Address, method string, args []interface{}) ([]interface{}, error)

	NetworkID     uint64
	GasEstimate   uint64
	EstimateErr   error
	CallErr       error
	ReceiptStatus uint64

	mu      sync.Mutex
	balance *big.Int
	sent []*gethtypes.Transaction
}

// NewMockBackend creates a backend on network 1 that mines every transaction successfully.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		NetworkID:     1,
		GasEstimate:   4_200_000,
		ReceiptStatus: gethtypes.ReceiptStatusSuccessful,
		balance:       new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
	}
}

// DefaultResponse answers canCreate with true, name and symbol with
// Curve-style gauge strings, decimals with 18 and balanceOf with zero.
func DefaultResponse(target common.Address, method string, _ []interface{}) ([]interface{}, error) {
	switch method {
	case chain.MethodCanCreate:
		return []interface{}{true}, nil
	case "name":
		return []interface{}{"Curve.fi Factory Pool " + target.Hex()[38:] + " Gauge Deposit"}, nil
	case "symbol":
		return []interface{}{"pool" + target.Hex()[38:] + "-gauge"}, nil
	case "decimals":
		return []interface{}{uint8(18)}, nil
	case "balanceOf":
		return []interface{}{big.NewInt(0)}, nil
	default:
		return nil, fmt.Errorf("unexpected method %q", method)
	}
}

// CallContract implements the aggregate3 entry point.
func (m *MockBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if m.CallErr != nil {
		return nil, m.CallErr
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("call data too short")
	}

	method, err := chain.Multicall3ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]multicallCall)).(*[]multicallCall)

	respond := m.Respond
	if respond == nil {
		respond = DefaultResponse
	}

	out := make([]multicallResult, len(calls))
	for i := range calls {
		data, callErr := answer(respond, calls[i].Target, calls[i].CallData)
		if callErr != nil {
			return nil, callErr
		}
		out[i] = multicallResult{Success: true, ReturnData: data}
	}
	return method.Outputs.Pack(out)
}

func answer(
	respond func(common.Address, string, []interface{}) ([]interface{}, error),
	target common.Address,
	data []byte,
) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("sub-call data too short")
	}

	method, err := chain.VaultFactoryABI.MethodById(data[:4])
	if err != nil {
		method, err = chain.ERC20ABI.MethodById(data[:4])
		if err != nil {
			return nil, fmt.Errorf("unknown selector %x", data[:4])
		}
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	values, err := respond(target, method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

// EstimateGas returns GasEstimate or EstimateErr.
func (m *MockBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return m.GasEstimate, m.EstimateErr
}

// SuggestGasPrice returns 1 gwei.
func (m *MockBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// PendingNonceAt returns the number of transactions sent so far.
func (m *MockBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.sent)), nil
}

// SendTransaction records tx.
func (m *MockBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, tx)
	return nil
}

// TransactionReceipt mines any sent transaction immediately.
func (m *MockBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range m.sent {
		if tx.Hash() == txHash {
			return &gethtypes.Receipt{
				Status:      m.ReceiptStatus,
				TxHash:      txHash,
				GasUsed:     m.GasEstimate,
				BlockNumber: big.NewInt(100),
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

// ChainID returns NetworkID.
func (m *MockBackend) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(m.NetworkID), nil
}

// BalanceAt returns the native balance set with SetBalance (10 ETH by default).
func (m *MockBackend) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance), nil
}

// SetBalance changes the native balance of every account.
func (m *MockBackend) SetBalance(wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = new(big.Int).Set(wei)
}

// Sent returns the transactions sent so far.
func (m *MockBackend) Sent() []*gethtypes.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*gethtypes.Transaction, len(m.sent))
	copy(result, m.sent)
	return result
}
