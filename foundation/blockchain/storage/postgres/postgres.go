// Package postgres implements the ability to read and write blocks to a
// PostgreSQL table using a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialize
// block writes across every node sharing the database.
const advisoryLockKey = int64(7_231_004_519)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_blocks (
	idx           BIGINT PRIMARY KEY,
	timestamp     TEXT   NOT NULL,
	payload       JSONB  NOT NULL,
	previous_hash TEXT   NOT NULL,
	hash          TEXT   NOT NULL
)`

// ErrNotFound is returned when the requested block is not stored.
var ErrNotFound = errors.New("block not found")

// Postgres represents the serialization implementation for reading and
// storing blocks in PostgreSQL. This implements the database.Storage
// interface.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New connects to the database, makes sure the schema exists and returns a
// Postgres value for use. Every storage call is bounded by timeout.
func New(ctx context.Context, dsn string, timeout time.Duration) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Postgres{pool: pool, timeout: timeout}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Write stores the block inside a transaction holding the advisory lock.
// Blocks must be written in index order.
func (p *Postgres) Write(blockData database.BlockData) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var last uint64
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(idx), 0) FROM ledger_blocks").Scan(&last); err != nil {
		return fmt.Errorf("read ledger tail: %w", err)
	}

	if blockData.Index != last+1 {
		return fmt.Errorf("block is out of order, got %d, exp %d", blockData.Index, last+1)
	}

	const q = `
	INSERT INTO ledger_blocks (idx, timestamp, payload, previous_hash, hash)
	VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, q, blockData.Index, blockData.Timestamp, string(blockData.Payload), blockData.PreviousHash, blockData.Hash); err != nil {
		return fmt.Errorf("insert block %d: %w", blockData.Index, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit block %d: %w", blockData.Index, err)
	}

	return nil
}

// GetBlock returns the block stored under the specified number.
func (p *Postgres) GetBlock(num uint64) (database.BlockData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	const q = `
	SELECT idx, timestamp, payload, previous_hash, hash
	FROM ledger_blocks WHERE idx = $1`

	var blockData database.BlockData
	var payload []byte
	err := p.pool.QueryRow(ctx, q, num).Scan(
		&blockData.Index, &blockData.Timestamp, &payload,
		&blockData.PreviousHash, &blockData.Hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.BlockData{}, ErrNotFound
		}
		return database.BlockData{}, fmt.Errorf("get block %d: %w", num, err)
	}
	blockData.Payload = payload

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (p *Postgres) ForEach() database.Iterator {
	return &postgresIterator{storage: p}
}

// Reset removes every stored block.
func (p *Postgres) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, "TRUNCATE ledger_blocks"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	return nil
}

// =============================================================================

// postgresIterator walks the stored blocks in index order. This implements
// the database Iterator interface.
type postgresIterator struct {
	storage *Postgres
	current uint64
	eoc     bool
}

// Next retrieves the next block from the table.
func (pi *postgresIterator) Next() (database.BlockData, error) {
	if pi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	pi.current++
	blockData, err := pi.storage.GetBlock(pi.current)
	if errors.Is(err, ErrNotFound) {
		pi.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (pi *postgresIterator) Done() bool {
	return pi.eoc
}
