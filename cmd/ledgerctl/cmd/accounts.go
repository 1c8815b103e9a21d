package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	var currency string
	accounts := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with their balances",
		Long: `List every account with its native balance.

With --currency the balances are also converted and totalled in that currency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			summary, err := app.Ledger.Summary(ctx, currency)
			if err != nil {
				return fmt.Errorf("summary: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tNAME\tBALANCE\tCURRENCY\t%s\n", summary.Currency)
			for _, ab := range summary.Accounts {
				a := ab.Account
				name := a.Name
				if a.IsDefault {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, name, a.Balance.String(), a.CurrencyCode, ab.Converted.String())
			}
			fmt.Fprintf(w, "\t\t\tTOTAL\t%s\n", summary.Total.String())
			return w.Flush()
		},
	}
	accounts.Flags().StringVar(&currency, "currency", "", "display currency (default: base currency)")
	return accounts
}
