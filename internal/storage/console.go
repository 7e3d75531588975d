package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
	}
}

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// StoreSubmission pretty-prints a submission outcome to console.
func (c *ConsoleStorage) StoreSubmission(ctx context.Context, record *types.SubmissionRecord) error {
	headline := "✅ VAULT CREATED"
	if record.State != types.SubmissionSucceeded {
		headline = "❌ VAULT CREATION FAILED"
	}

	fmt.Fprintln(c.out, "\n"+rule)
	fmt.Fprintln(c.out, headline)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "ID:        %s\n", record.ID)
	fmt.Fprintf(c.out, "Gauge:     %s\n", record.GaugeAddress.Hex())
	fmt.Fprintf(c.out, "Caller:    %s\n", record.Caller.Hex())
	fmt.Fprintf(c.out, "Submitted: %s\n", record.SubmittedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(c.out, "Completed: %s\n", record.CompletedAt.Format("2006-01-02 15:04:05"))
	if record.TxHash != (types.SubmissionRecord{}).TxHash {
		fmt.Fprintf(c.out, "Tx:        %s\n", record.TxHash.Hex())
		fmt.Fprintf(c.out, "Gas used:  %d\n", record.GasUsed)
	}
	if record.Reason != "" {
		fmt.Fprintf(c.out, "Reason:    %s\n", record.Reason)
	}
	fmt.Fprintln(c.out, rule)

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
