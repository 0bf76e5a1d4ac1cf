// Package storage selects and opens the backend used to persist the chain.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage/bolt"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage/disk"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage/memory"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage/postgres"
)

// Set of supported backends.
const (
	Memory   = "memory"
	Disk     = "disk"
	Bolt     = "bolt"
	Postgres = "postgres"
)

// Config represents the information required to open a backend. Path is
// used by disk (a directory) and bolt (a file). DSN is used by postgres.
type Config struct {
	Kind    string
	Path    string
	DSN     string
	Timeout time.Duration
}

// Open constructs the backend named by the configuration.
func Open(ctx context.Context, cfg Config) (database.Storage, error) {
	switch strings.ToLower(cfg.Kind) {
	case Memory:
		return memory.New()

	case Disk, "":
		return disk.New(cfg.Path)

	case Bolt:
		return bolt.New(cfg.Path)

	case Postgres:
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		return postgres.New(ctx, cfg.DSN, timeout)
	}

	return nil, fmt.Errorf("unknown storage %q, exp one of %s, %s, %s, %s", cfg.Kind, Memory, Disk, Bolt, Postgres)
}
