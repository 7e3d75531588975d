package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// gasLimitBufferPercent is added on top of the simulated gas.
const gasLimitBufferPercent = 20

// TxResult describes a mined transaction.
type TxResult struct {
	Hash        common.Hash
	GasUsed     uint64
	BlockNumber uint64
}

// Signer sends state-changing calls from a single key.
type Signer struct {
	client       *Client
	key          *ecdsa.PrivateKey
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewSigner parses a hex private key and binds it to client.
func NewSigner(client *Client, privateKeyHex string, pollInterval time.Duration) (*Signer, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if privateKeyHex == "" {
		return nil, errors.New("private key cannot be empty")
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	return &Signer{
		client:       client,
		key:          key,
		address:      crypto.PubkeyToAddress(*publicKeyECDSA),
		pollInterval: pollInterval,
		logger:       client.logger,
	}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address {
	return s.address
}

// SubmitCreate sends createNewVaultsAndStrategies(gauge) and waits until it is mined.
// A reverted receipt is returned as a submission CallFailure.
func (s *Signer) SubmitCreate(ctx context.Context, gauge common.Address) (*TxResult, error) {
	backend := s.client.backend

	msg, err := s.client.createMsg(s.address, gauge)
	if err != nil {
		return nil, err
	}

	nonce, err := backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, submissionFailure(fmt.Errorf("get nonce: %w", err))
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, submissionFailure(fmt.Errorf("get gas price: %w", err))
	}

	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		CallFailuresTotal.WithLabelValues(string(types.KindSubmission)).Inc()
		return nil, classify(types.KindSubmission, err)
	}
	gasLimit := gas + gas*gasLimitBufferPercent/100

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, submissionFailure(fmt.Errorf("get chain ID: %w", err))
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       msg.To,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     msg.Data,
	})

	signedTx, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(chainID), s.key)
	if err != nil {
		return nil, submissionFailure(fmt.Errorf("sign transaction: %w", err))
	}

	err = backend.SendTransaction(ctx, signedTx)
	if err != nil {
		CallFailuresTotal.WithLabelValues(string(types.KindSubmission)).Inc()
		return nil, classify(types.KindSubmission, err)
	}
	TransactionsSentTotal.Inc()

	s.logger.Info("create-transaction-sent",
		zap.String("tx-hash", signedTx.Hash().Hex()),
		zap.String("gauge", gauge.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas-limit", gasLimit))

	receipt, err := s.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, submissionFailure(fmt.Errorf("wait for receipt: %w", err))
	}

	result := &TxResult{
		Hash:        signedTx.Hash(),
		GasUsed:     receipt.GasUsed,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		CallFailuresTotal.WithLabelValues(string(types.KindSubmission)).Inc()
		return result, &types.CallFailure{
			Kind:           types.KindSubmission,
			Classification: types.ClassPredictable,
			RawMessage:     "transaction reverted in block " + receipt.BlockNumber.String(),
		}
	}

	return result, nil
}

func (s *Signer) waitForReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug("receipt-poll-error",
				zap.String("tx-hash", txHash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func submissionFailure(err error) *types.CallFailure {
	CallFailuresTotal.WithLabelValues(string(types.KindSubmission)).Inc()
	return &types.CallFailure{
		Kind:           types.KindSubmission,
		Classification: types.ClassUnpredictable,
		RawMessage:     err.Error(),
		Err:            err,
	}
}
