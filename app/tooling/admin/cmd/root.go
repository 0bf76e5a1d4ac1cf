// Package cmd contains the admin commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings are read from flags, then LEDGER_* environment variables, then
// an optional config file.
const envPrefix = "LEDGER"

// NewRoot constructs the admin command tree.
func NewRoot(build string) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administer the leak ledger",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file.")
	flags.String("storage", storage.Disk, "Storage backend: memory, disk, bolt or postgres.")
	flags.String("path", "zblock/ledger", "Directory (disk) or file (bolt) holding the chain.")
	flags.String("dsn", "", "Postgres connection string.")
	flags.Duration("timeout", 5*time.Second, "Time allowed to open the storage.")

	for _, name := range []string{"config", "storage", "path", "dsn", "timeout"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newVerifyCmd(v),
		newBalancesCmd(v),
		newExportCmd(v),
		newTipCmd(v),
		newGenKeyCmd(),
	)

	return root
}

func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	return nil
}

// ErrNoChain is returned when the configured storage holds no blocks. The
// admin commands only inspect an existing chain and never start a new one.
var ErrNoChain = errors.New("no chain found")

// openState opens the configured storage and loads the chain from it. The
// chain is fully validated on load.
func openState(v *viper.Viper, cfg state.Config) (*state.State, error) {
	kind := strings.ToLower(v.GetString("storage"))
	path := v.GetString("path")

	// Opening a disk or bolt backend creates its path, so check it first.
	switch kind {
	case storage.Disk, storage.Bolt, "":
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w at %s", ErrNoChain, path)
			}
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
	defer cancel()

	strg, err := storage.Open(ctx, storage.Config{
		Kind:    kind,
		Path:    path,
		DSN:     v.GetString("dsn"),
		Timeout: v.GetDuration("timeout"),
	})
	if err != nil {
		return nil, err
	}

	if _, err := strg.GetBlock(1); err != nil {
		strg.Close()
		return nil, fmt.Errorf("%w at %s: %s", ErrNoChain, location(kind, path), err)
	}

	cfg.Storage = strg
	st, err := state.New(cfg)
	if err != nil {
		strg.Close()
		return nil, err
	}

	return st, nil
}

// location names where the chain was looked for without exposing a DSN.
func location(kind string, path string) string {
	if kind == storage.Postgres {
		return "the configured database"
	}
	return path
}
