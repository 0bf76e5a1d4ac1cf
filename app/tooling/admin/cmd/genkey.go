package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leakwatch/blockchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

func newGenKeyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "genkey <path>",
		Short: "Generate a new node key used to sign the chain tip.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to replace it", path)
			}

			privateKey, err := crypto.GenerateKey()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return err
			}

			if err := crypto.SaveECDSA(path, privateKey); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\n", signature.Address(privateKey.PublicKey))

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key.")

	return cmd
}
