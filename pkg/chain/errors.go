package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mselser95/vault-factory/pkg/types"
)

const revertPrefix = "execution reverted"

// classify turns an RPC error into a CallFailure.
// Reverts are predictable: the contract validated the input and refused it.
// Anything else (transport, node, encoding) is unpredictable.
func classify(kind types.FailureKind, err error) *types.CallFailure {
	failure := &types.CallFailure{
		Kind:           kind,
		Classification: types.ClassUnpredictable,
		RawMessage:     err.Error(),
		Err:            err,
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		failure.Classification = types.ClassPredictable
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			failure.RawMessage = revertPrefix + ": " + reason
		}
		return failure
	}

	if strings.Contains(failure.RawMessage, revertPrefix) {
		failure.Classification = types.ClassPredictable
	}

	return failure
}

// revertReason decodes an Error(string) payload returned with a revert.
func revertReason(data interface{}) (string, bool) {
	hexData, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(hexData)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
