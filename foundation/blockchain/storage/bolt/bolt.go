// Package bolt implements the ability to read and write blocks to a single
// bbolt database file. Blocks are cbor encoded and keyed by their index.
package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	bolt "go.etcd.io/bbolt"
)

// blocksBucket is the bucket holding all blocks.
var blocksBucket = []byte("blocks")

// ErrNotFound is returned when the requested block is not stored.
var ErrNotFound = errors.New("block not found")

// Bolt represents the serialization implementation for reading and storing
// blocks in a bbolt file. This implements the database.Storage interface.
type Bolt struct {
	db *bolt.DB
}

// New opens or creates the bbolt file at the specified path.
func New(dbFile string) (*Bolt, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blocksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Path returns the file backing the storage.
func (b *Bolt) Path() string {
	return b.db.Path()
}

// Close releases the bbolt file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Write stores the block. Blocks must be written in index order and an
// existing block is never overwritten.
func (b *Bolt) Write(blockData database.BlockData) error {
	data, err := cbor.Marshal(blockData)
	if err != nil {
		return fmt.Errorf("encoding block %d: %w", blockData.Index, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(blocksBucket)

		var last uint64
		if k, _ := bucket.Cursor().Last(); k != nil {
			last = binary.BigEndian.Uint64(k)
		}

		if blockData.Index != last+1 {
			return fmt.Errorf("block is out of order, got %d, exp %d", blockData.Index, last+1)
		}

		return bucket.Put(key(blockData.Index), data)
	})
}

// GetBlock returns the block stored under the specified number.
func (b *Bolt) GetBlock(num uint64) (database.BlockData, error) {
	var blockData database.BlockData

	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(blocksBucket).Get(key(num))
		if data == nil {
			return ErrNotFound
		}
		return cbor.Unmarshal(data, &blockData)
	})
	if err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (b *Bolt) ForEach() database.Iterator {
	return &boltIterator{storage: b}
}

// Reset removes every stored block.
func (b *Bolt) Reset() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(blocksBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(blocksBucket)
		return err
	})
}

// key encodes the block number so keys sort in chain order.
func key(num uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, num)
	return k
}

// =============================================================================

// boltIterator walks the stored blocks in index order. This implements the
// database Iterator interface.
type boltIterator struct {
	storage *Bolt
	current uint64
	eoc     bool
}

// Next retrieves the next block from the file.
func (bi *boltIterator) Next() (database.BlockData, error) {
	if bi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	bi.current++
	blockData, err := bi.storage.GetBlock(bi.current)
	if errors.Is(err, ErrNotFound) {
		bi.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (bi *boltIterator) Done() bool {
	return bi.eoc
}
