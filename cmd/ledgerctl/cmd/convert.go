package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <amount> <from> <to>",
		Short: "Convert an amount between currencies using the cached rates",
		Example: `  ledgerctl convert 100 USD EUR
  ledgerctl convert 0,5 BTC USD`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			from, ok := app.Catalog.Lookup(args[1])
			if !ok {
				return fmt.Errorf("unknown currency %q", args[1])
			}
			to, ok := app.Catalog.Lookup(args[2])
			if !ok {
				return fmt.Errorf("unknown currency %q", args[2])
			}

			converted := app.Ledger.Convert(amount, from.Code, to.Code)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s\n", amount.String(), from.Code, converted.String(), to.Code)
			if app.Ledger.Rates().FetchedAt().IsZero() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no rates cached, run 'ledgerctl rates refresh'")
			}
			return nil
		},
	}
}
