package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newExportCmd(v *viper.Viper) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chain as JSON in the ledger API format.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openState(v, stateConfig())
			if err != nil {
				return err
			}
			defer st.Shutdown()

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			doc := struct {
				Ledger []database.Block `json:"ledger"`
			}{
				Ledger: st.RetrieveChain(),
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "File to write to instead of stdout.")

	return cmd
}
