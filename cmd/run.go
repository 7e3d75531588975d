package cmd

import (
	"fmt"

	"github.com/mselser95/vault-factory/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the vault factory service",
	Long: `Starts the vault factory service, which will:
1. Poll the Curve registry for gauges
2. Ask the vault factory which gauges can still get a vault
3. Serve gauge options, selection, cost estimate and vault creation over HTTP
4. Push every state change to /ws subscribers
5. Keep the Yearn vault catalog fresh for GET /api/vaults

Vault creation is enabled only when WALLET_PRIVATE_KEY is set.`,
	RunE: runService,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, args []string) error {
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

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
