package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRatesCmd() *cobra.Command {
	rates := &cobra.Command{
		Use:   "rates",
		Short: "Inspect and refresh exchange rates",
	}

	var force bool
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch rates from the providers and store them",
		Long: `Fetch fiat and crypto rates for every known currency and persist the table.

Without --force the fetch is skipped while the cached table is still fresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			svc := app.Ledger.Rates()
			if !force {
				refreshed, err := svc.RefreshRatesIfNeeded(ctx)
				if err != nil {
					return fmt.Errorf("refresh rates: %w", err)
				}
				if !refreshed {
					fmt.Fprintf(cmd.OutOrStdout(), "Rates are fresh (fetched %s)\n", svc.FetchedAt().Format(time.RFC3339))
					return nil
				}
			} else if _, err := svc.RefreshRates(ctx); err != nil {
				return fmt.Errorf("refresh rates: %w", err)
			}

			table, _ := svc.Table()
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d rates against %s\n", table.Len(), table.Base)
			return nil
		},
	}
	refresh.Flags().BoolVar(&force, "force", false, "refresh even when the cached table is fresh")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the cached rate table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, ok := app.Ledger.Rates().Table()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No rates cached")
				return nil
			}
			codes := make([]string, 0, table.Len())
			for code := range table.Rates {
				codes = append(codes, code)
			}
			sort.Strings(codes)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Base: %s\tFetched: %s\n", table.Base, app.Ledger.Rates().FetchedAt().Format(time.RFC3339))
			for _, code := range codes {
				fmt.Fprintf(w, "%s\t%s\n", code, table.Rates[code].String())
			}
			return w.Flush()
		},
	}

	rates.AddCommand(refresh, show)
	return rates
}
