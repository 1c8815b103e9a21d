package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var repair bool
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored balances with the transaction history",
		Long: `Recompute each account balance from its opening balance and transactions
and report accounts whose stored balance differs.

With --repair the stored balances are overwritten with the recomputed ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			drifts, err := app.Ledger.Reconcile(ctx, repair)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			if len(drifts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All balances match")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tSTORED\tEXPECTED\tDIFFERENCE")
			for _, d := range drifts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.AccountID, d.Stored.String(), d.Expected.String(), d.Difference().String())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if repair {
				fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d account(s)\n", len(drifts))
			}
			return nil
		},
	}
	reconcile.Flags().BoolVar(&repair, "repair", false, "overwrite drifted balances")
	return reconcile
}
