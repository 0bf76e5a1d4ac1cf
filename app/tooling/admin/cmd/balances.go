package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBalancesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "balances [recipient]",
		Short: "Print reward totals per recipient.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(v, stateConfig())
			if err != nil {
				return err
			}
			defer st.Shutdown()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "LatestBlockHash: %s\n\n", st.RetrieveLatestBlock().Hash)

			if len(args) == 1 {
				fmt.Fprintf(out, "Recipient: %s  Total: %s\n", args[0], amount(st.QueryRewards(args[0])))
				return nil
			}

			balances := st.QueryBalances()
			recipients := make([]string, 0, len(balances))
			for recipient := range balances {
				recipients = append(recipients, recipient)
			}
			sort.Strings(recipients)

			for _, recipient := range recipients {
				fmt.Fprintf(out, "Recipient: %s  Total: %s\n", recipient, amount(balances[recipient]))
			}
			fmt.Fprintf(out, "\nTotal: %s\n", amount(st.QueryRewards("")))

			return nil
		},
	}
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
