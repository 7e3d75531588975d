package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/internal/app"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	createVaultGauge   string
	createVaultTimeout time.Duration
)

//nolint:gochecknoglobals // Cobra boilerplate
var createVaultCmd = &cobra.Command{
	Use:   "create-vault",
	Short: "Create a Yearn vault for a Curve gauge",
	Long: `Selects the given gauge, shows the vault that would be created and its gas
estimate, then submits createNewVaultsAndStrategies and waits for the receipt.

Requires WALLET_PRIVATE_KEY.`,
	Example: `  vault-factory create-vault --gauge 0x1234...`,
	RunE:    runCreateVault,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(createVaultCmd)
	createVaultCmd.Flags().StringVar(&createVaultGauge, "gauge", "", "Gauge address (required)")
	createVaultCmd.Flags().DurationVar(&createVaultTimeout, "timeout", 5*time.Minute, "Overall timeout")
	_ = createVaultCmd.MarkFlagRequired("gauge")
}

func runCreateVault(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(createVaultGauge) {
		return fmt.Errorf("invalid gauge address: %q", createVaultGauge)
	}
	gauge := common.HexToAddress(createVaultGauge)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), createVaultTimeout)
	defer cancel()

	snap, err := application.CreateVault(ctx, gauge)
	printSnapshot(snap)
	if errors.Is(err, factory.ErrUnknownGauge) {
		return fmt.Errorf("gauge %s is not eligible for a new vault: %w", gauge.Hex(), err)
	}
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	fmt.Println("\nVault created")
	return nil
}

func printSnapshot(snap factory.Snapshot) {
	fmt.Printf("Gauge:        %s\n", snap.Selected.GaugeAddress.Hex())
	if snap.Display.VaultName != "" {
		fmt.Printf("Vault name:   %s\n", snap.Display.VaultName)
		fmt.Printf("Vault symbol: %s\n", snap.Display.VaultSymbol)
	}
	if snap.Display.Error != "" {
		fmt.Printf("Display:      %s\n", snap.Display.Error)
	}
	if snap.Estimate.Gas > 0 {
		fmt.Printf("Gas estimate: %d\n", snap.Estimate.Gas)
	}
	if snap.Estimate.Message != "" {
		fmt.Printf("Estimate:     %s\n", snap.Estimate.Message)
	}
	if snap.Submission.State != "" {
		fmt.Printf("Submission:   %s\n", snap.Submission.State)
	}
	if snap.Submission.TxHash != (common.Hash{}) {
		fmt.Printf("Tx hash:      %s\n", snap.Submission.TxHash.Hex())
		fmt.Printf("Gas used:     %d\n", snap.Submission.GasUsed)
	}
	if snap.Submission.Reason != "" {
		fmt.Printf("Reason:       %s\n", snap.Submission.Reason)
	}
}
