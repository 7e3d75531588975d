package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mselser95/vault-factory/internal/app"
	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	listVaultsSearch     string
	listVaultsSort       string
	listVaultsDirection  string
	listVaultsNetworks   string
	listVaultsCategories string
	listVaultsLimit      int
	listVaultsTimeout    time.Duration
)

//nolint:gochecknoglobals // Cobra boilerplate
var listVaultsCmd = &cobra.Command{
	Use:   "list-vaults",
	Short: "List Yearn vaults from the catalog",
	Long: `Fetches the Yearn vault catalog once and prints it filtered by category,
network and search text, sorted by the chosen column.

Sort keys: name, estAPR, apr, available, deposited, tvl.
Networks and categories default to the configured catalog selection.`,
	Example: `  vault-factory list-vaults --search crvusd --sort estAPR
  vault-factory list-vaults --categories curve,balancer --networks 1,10`,
	RunE: runListVaults,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listVaultsCmd)
	listVaultsCmd.Flags().StringVar(&listVaultsSearch, "search", "", "Search text (name, symbol, token or address)")
	listVaultsCmd.Flags().StringVar(&listVaultsSort, "sort", catalog.SortTVL, "Sort key")
	listVaultsCmd.Flags().StringVar(&listVaultsDirection, "direction", string(catalog.Desc), "Sort direction (asc or desc)")
	listVaultsCmd.Flags().StringVar(&listVaultsNetworks, "networks", "", "Comma-separated network ids")
	listVaultsCmd.Flags().StringVar(&listVaultsCategories, "categories", "", "Comma-separated categories")
	listVaultsCmd.Flags().IntVar(&listVaultsLimit, "limit", 50, "Maximum rows to print (0 for all)")
	listVaultsCmd.Flags().DurationVar(&listVaultsTimeout, "timeout", 30*time.Second, "Overall timeout")
}

func runListVaults(cmd *cobra.Command, args []string) error {
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

	q, err := buildQuery(application.DefaultQuery(), cmd.Flags().Changed("networks"), cmd.Flags().Changed("categories"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), listVaultsTimeout)
	defer cancel()

	result, err := application.ListVaults(ctx, q)
	if err != nil {
		return fmt.Errorf("list vaults: %w", err)
	}

	if result.Outcome != catalog.OutcomeReady {
		fmt.Printf("No vaults (%s)\n", result.Outcome)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "VAULT\tNETWORK\tEST APR\tHIST APR\tAVAILABLE\tDEPOSITED\tTVL\tADDRESS\n")
	fmt.Fprintf(w, "-----\t-------\t-------\t--------\t---------\t---------\t---\t-------\n")

	entries := result.Entries
	if listVaultsLimit > 0 && len(entries) > listVaultsLimit {
		entries = entries[:listVaultsLimit]
	}

	for i := range entries {
		v := &entries[i]
		fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%.2f%%\t%.4f\t%.4f\t$%.0f\t%s\n",
			truncate(v.DisplayName(), 40),
			v.NetworkID,
			v.EstAPR*100,
			v.HistAPR*100,
			v.Available,
			v.Deposited,
			v.TVL,
			v.Address.Hex())
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Printf("\nShowing %d of %d vaults\n", len(entries), len(result.Entries))
	return nil
}

// buildQuery applies the command flags on top of the configured defaults.
func buildQuery(defaults catalog.Query, networksSet, categoriesSet bool) (catalog.Query, error) {
	q := defaults
	q.Search = listVaultsSearch
	q.SortBy = listVaultsSort

	switch d := catalog.Direction(strings.ToLower(listVaultsDirection)); d {
	case catalog.Asc, catalog.Desc:
		q.Direction = d
	default:
		return q, fmt.Errorf("invalid direction: %q", listVaultsDirection)
	}

	if networksSet {
		q.Networks = []uint64{}
		for _, part := range strings.Split(listVaultsNetworks, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return q, fmt.Errorf("invalid network id %q: %w", part, err)
			}
			q.Networks = append(q.Networks, id)
		}
	}

	if categoriesSet {
		q.Categories = []string{}
		for _, part := range strings.Split(listVaultsCategories, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				q.Categories = append(q.Categories, part)
			}
		}
	}

	return q, nil
}
