package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the subset of an Ethereum RPC client used by this package.
// *ethclient.Client implements it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client talks to a single network through a Backend.
type Client struct {
	backend   Backend
	networkID uint64
	multicall common.Address
	factory   common.Address
	logger    *zap.Logger
	closeFn   func()
}

// Config holds chain client configuration.
type Config struct {
	Backend          Backend
	NetworkID        uint64
	MulticallAddress common.Address
	FactoryAddress   common.Address
	Logger           *zap.Logger
}

// New creates a client over an existing backend.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MulticallAddress == (common.Address{}) {
		return nil, errors.New("multicall address cannot be zero")
	}

	return &Client{
		backend:   cfg.Backend,
		networkID: cfg.NetworkID,
		multicall: cfg.MulticallAddress,
		factory:   cfg.FactoryAddress,
		logger:    cfg.Logger,
	}, nil
}

// Dial connects to rpcURL and checks that the node serves the expected network.
func Dial(ctx context.Context, rpcURL string, cfg *Config) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ethClient, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	chainID, err := ethClient.ChainID(dialCtx)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	if chainID.Uint64() != cfg.NetworkID {
		ethClient.Close()
		return nil, fmt.Errorf("%w: node serves %d, want %d", ErrWrongNetwork, chainID.Uint64(), cfg.NetworkID)
	}

	withBackend := *cfg
	withBackend.Backend = ethClient
	client, err := New(&withBackend)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	client.closeFn = ethClient.Close

	cfg.Logger.Info("chain-client-connected",
		zap.Uint64("network-id", cfg.NetworkID),
		zap.String("factory", cfg.FactoryAddress.Hex()))

	return client, nil
}

// ErrWrongNetwork is returned by Dial when the RPC node serves another chain.
var ErrWrongNetwork = errors.New("rpc node serves a different network")

// NetworkID returns the network this client is scoped to.
func (c *Client) NetworkID() uint64 {
	return c.networkID
}

// FactoryAddress returns the vault factory address.
func (c *Client) FactoryAddress() common.Address {
	return c.factory
}

// Close releases the underlying RPC connection, if this client owns one.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}
