package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Validate every block in the stored chain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(v, stateConfig())
			if err != nil {
				return fmt.Errorf("chain is invalid: %w", err)
			}
			defer st.Shutdown()

			if err := st.Verify(); err != nil {
				return fmt.Errorf("chain is invalid: %w", err)
			}

			latest := st.RetrieveLatestBlock()
			fmt.Fprintf(cmd.OutOrStdout(), "valid: blocks[%d] tip[%s]\n", latest.Index, latest.Hash)

			return nil
		},
	}
}
