// Package database handles the append only, hash linked chain of blocks that
// makes up the ledger. It owns the chain, computes and verifies block hashes
// and is the only writer of blocks.
package database

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/signature"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// Clock returns the current wall clock time. Tests provide their own to
// force identical timestamps.
type Clock func() time.Time

// =============================================================================

// Config represents the configuration required to construct the database.
type Config struct {
	Storage   Storage
	Clock     Clock
	EvHandler func(v string, args ...any)
}

// Database manages the chain of blocks. Appends are serialized by a mutex
// while reads work from the last published snapshot and never wait on an
// append that is in progress.
type Database struct {
	mu        sync.Mutex
	halted    atomic.Bool
	blocks    atomic.Pointer[[]Block]
	clock     Clock
	storage   Storage
	evHandler func(v string, args ...any)
}

// New constructs a new database. When the storage already holds blocks they
// are rehydrated and fully validated before being trusted. Otherwise a new
// chain is started with a genesis block.
func New(cfg Config) (*Database, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	db := Database{
		clock:     clock,
		storage:   cfg.Storage,
		evHandler: ev,
	}

	var blocks []Block
	if db.storage != nil {
		var err error
		if blocks, err = readAll(db.storage); err != nil {
			return nil, err
		}
	}

	switch {
	case len(blocks) > 0:
		ev("database: New: validate: blks[%d]", len(blocks))

		if err := ValidateChain(blocks); err != nil {
			return nil, err
		}

	default:
		ev("database: New: create genesis block")

		genesis, err := newBlock(1, db.timestamp(""), GenesisMarker(GenesisText), signature.ZeroHash)
		if err != nil {
			return nil, err
		}

		if err := db.write(genesis); err != nil {
			return nil, err
		}

		blocks = []Block{genesis}
	}

	db.blocks.Store(&blocks)

	return &db, nil
}

// Close closes the storage backing the database.
func (db *Database) Close() error {
	if db.storage == nil {
		return nil
	}
	return db.storage.Close()
}

// Append constructs the next block for the payload and adds it to the
// chain. The read of the latest block and the write of the new one happen
// in a single critical section. If the block can't be built or stored the
// chain is left exactly as it was.
func (db *Database) Append(payload Payload) (Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.halted.Load() {
		return Block{}, ErrHalted
	}

	blocks := *db.blocks.Load()
	prevBlock := blocks[len(blocks)-1]

	block, err := newBlock(uint64(len(blocks))+1, db.timestamp(prevBlock.Timestamp), payload, prevBlock.Hash)
	if err != nil {
		return Block{}, err
	}

	if err := db.write(block); err != nil {
		return Block{}, err
	}

	// Readers holding the previous snapshot never look past their own
	// length, so the shared backing array is safe to extend.
	blocks = append(blocks, block)
	db.blocks.Store(&blocks)

	db.evHandler("database: Append: blk[%d]: hash[%s]", block.Index, block.Hash)

	return block, nil
}

// Halt stops all further appends. It waits for an append in progress, so
// no block is committed once Halt returns. It reports whether this call
// halted the database.
func (db *Database) Halt() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.halted.CompareAndSwap(false, true)
}

// Halted reports whether the database refuses appends.
func (db *Database) Halted() bool {
	return db.halted.Load()
}

// Chain returns a copy of the full chain in append order.
func (db *Database) Chain() []Block {
	blocks := *db.blocks.Load()

	cpy := make([]Block, len(blocks))
	copy(cpy, blocks)

	return cpy
}

// LatestBlock returns the last block in the chain.
func (db *Database) LatestBlock() Block {
	blocks := *db.blocks.Load()
	return blocks[len(blocks)-1]
}

// Len returns the number of blocks in the chain.
func (db *Database) Len() int {
	return len(*db.blocks.Load())
}

// GetBlock returns the block with the specified 1-based index.
func (db *Database) GetBlock(index uint64) (Block, error) {
	blocks := *db.blocks.Load()

	if index == 0 || index > uint64(len(blocks)) {
		return Block{}, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}

	return blocks[index-1], nil
}

// Validate checks every block in the chain for hash integrity, linkage and
// index monotonicity. It does not mutate the chain.
func (db *Database) Validate() error {
	return ValidateChain(*db.blocks.Load())
}

// Verify reports whether the chain passes validation.
func (db *Database) Verify() bool {
	return db.Validate() == nil
}

// ValidateStorage reads the persisted chain back from storage, validates it
// and checks it matches the chain held in memory. It detects changes made
// to the storage while the ledger is running.
func (db *Database) ValidateStorage() error {
	if db.storage == nil {
		return nil
	}

	// Blocks reach the storage before the snapshot, so taking the snapshot
	// first means the storage can only be ahead of it.
	blocks := *db.blocks.Load()

	stored, err := readAll(db.storage)
	if err != nil {
		return err
	}

	if err := ValidateChain(stored); err != nil {
		return err
	}

	if len(stored) < len(blocks) {
		return fmt.Errorf("%w: storage holds %d blocks, exp %d", ErrIntegrityViolation, len(stored), len(blocks))
	}

	for i, block := range blocks {
		if stored[i].Hash != block.Hash {
			return fmt.Errorf("%w: block %d: stored hash %s, exp %s", ErrIntegrityViolation, block.Index, stored[i].Hash, block.Hash)
		}
	}

	return nil
}

// =============================================================================

// timestamp returns the formatted current time, never earlier than the
// previous block's timestamp.
func (db *Database) timestamp(prev string) string {
	now := db.clock().UTC()

	if prev != "" {
		if prevTime, err := time.Parse(TimestampFormat, prev); err == nil && now.Before(prevTime) {
			now = prevTime
		}
	}

	return now.Format(TimestampFormat)
}

// write stores the block if the database is backed by storage.
func (db *Database) write(block Block) error {
	if db.storage == nil {
		return nil
	}

	blockData, err := NewBlockData(block)
	if err != nil {
		return err
	}

	if err := db.storage.Write(blockData); err != nil {
		return fmt.Errorf("writing block %d: %w", block.Index, err)
	}

	return nil
}

// readAll walks the storage and rehydrates every block.
func readAll(storage Storage) ([]Block, error) {
	var blocks []Block

	iter := storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIntegrityViolation, err)
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}

// =============================================================================

// ValidateChain checks the specified blocks form a valid chain starting with
// a genesis block.
func ValidateChain(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: chain is empty", ErrIntegrityViolation)
	}

	if err := blocks[0].validateGenesis(); err != nil {
		return err
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1]); err != nil {
			return err
		}
	}

	return nil
}

// VerifyChain reports whether the specified blocks form a valid chain.
func VerifyChain(blocks []Block) bool {
	return ValidateChain(blocks) == nil
}
