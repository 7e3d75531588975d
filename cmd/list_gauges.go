package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mselser95/vault-factory/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	listGaugesTimeout time.Duration
)

//nolint:gochecknoglobals // Cobra boilerplate
var listGaugesCmd = &cobra.Command{
	Use:   "list-gauges",
	Short: "List Curve gauges that can still get a Yearn vault",
	Long: `Fetches the Curve gauge registry once, asks the vault factory which gauges
can still get a vault created permissionlessly and prints them.`,
	RunE: runListGauges,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listGaugesCmd)
	listGaugesCmd.Flags().DurationVar(&listGaugesTimeout, "timeout", 30*time.Second, "Overall timeout")
}

func runListGauges(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), listGaugesTimeout)
	defer cancel()

	options, err := application.LoadGauges(ctx)
	if err != nil {
		return fmt.Errorf("load gauges: %w", err)
	}

	if len(options) == 0 {
		fmt.Println("No gauges without a vault")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tGAUGE\tPOOL\tAPY\n")
	fmt.Fprintf(w, "----\t-----\t----\t---\n")

	for i := range options {
		opt := &options[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f%%\n",
			truncate(opt.Label, 48),
			opt.GaugeAddress.Hex(),
			opt.PoolAddress.Hex(),
			opt.APY*100)
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Printf("\nTotal: %d gauges\n", len(options))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
