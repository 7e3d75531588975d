package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SubmissionState is the lifecycle state of a vault creation.
type SubmissionState string

const (
	SubmissionIdle      SubmissionState = "idle"
	SubmissionPending   SubmissionState = "pending"
	SubmissionSucceeded SubmissionState = "succeeded"
	SubmissionFailed    SubmissionState = "failed"
)

// SubmissionRecord is the ledger entry written for every terminal submission.
type SubmissionRecord struct {
	ID           string
	GaugeAddress common.Address
	Caller       common.Address
	TxHash       common.Hash
	State        SubmissionState
	Reason       string
	GasUsed      uint64
	SubmittedAt  time.Time
	CompletedAt  time.Time
}
