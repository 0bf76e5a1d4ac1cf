package cmd

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTipCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tip",
		Short: "Print the latest block signed with the node key.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.LoadECDSA(v.GetString("key"))
			if err != nil {
				return err
			}

			cfg := stateConfig()
			cfg.NodeKey = key

			st, err := openState(v, cfg)
			if err != nil {
				return err
			}
			defer st.Shutdown()

			tip, err := st.SignedTip()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tip)
		},
	}

	cmd.Flags().String("key", "zblock/node.ecdsa", "Path to the node private key.")
	v.BindPFlag("key", cmd.Flags().Lookup("key"))

	return cmd
}

// stateConfig returns the configuration used to open the ledger from the
// admin tool. Events are not needed here.
func stateConfig() state.Config {
	return state.Config{}
}
