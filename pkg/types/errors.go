package types

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind identifies which external call failed.
type FailureKind string

// Classification tells whether a failure was expected by the contract.
type Classification string

const (
	KindRemoteCall FailureKind = "remote-call"
	KindSimulation FailureKind = "simulation"
	KindSubmission FailureKind = "submission"

	// ClassPredictable is a revert with a validated reason (e.g. gauge not eligible).
	ClassPredictable Classification = "predictable"
	// ClassUnpredictable covers everything else: transport, malformed responses, unknown reverts.
	ClassUnpredictable Classification = "unpredictable"
)

// CallFailure is the structured error produced by the chain layer.
type CallFailure struct {
	Kind           FailureKind
	Classification Classification
	RawMessage     string
	Err            error
}

func (f *CallFailure) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", f.Kind, f.Classification, f.RawMessage)
}

func (f *CallFailure) Unwrap() error {
	return f.Err
}

// Reason returns the message without the node's revert boilerplate.
func (f *CallFailure) Reason() string {
	return RevertReason(f.RawMessage)
}

// RevertReason strips the "execution reverted" prefix nodes put in front of revert strings.
func RevertReason(msg string) string {
	msg = strings.Replace(msg, "execution reverted: ", "", 1)
	if msg == "execution reverted" {
		return ""
	}
	return msg
}

// AsCallFailure extracts a CallFailure from err, if any.
func AsCallFailure(err error) (*CallFailure, bool) {
	var failure *CallFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Guard errors returned before any state-changing call is made.
var (
	ErrNotAuthenticated   = errors.New("caller not authenticated")
	ErrZeroGauge          = errors.New("no gauge selected")
	ErrEstimateBlocked    = errors.New("cost estimate failed with an unpredictable error")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrInsufficientFunds  = errors.New("signer balance too low to pay for gas")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// ErrSuperseded is returned when a newer request replaced this one before it completed.
// The result was discarded and no state was changed.
var ErrSuperseded = errors.New("superseded by a newer request")
