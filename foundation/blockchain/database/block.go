package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/signature"
)

// TimestampFormat is the canonical textual form of a block timestamp. All
// timestamps are recorded in UTC with microsecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// =============================================================================

// Block represents one immutable, hash-linked record in the ledger.
type Block struct {
	Index        uint64  `json:"index"`
	Timestamp    string  `json:"timestamp"`
	Payload      Payload `json:"payload"`
	PreviousHash string  `json:"previous_hash"`
	Hash         string  `json:"hash"`
}

// blockHeader is the candidate record whose canonical form is hashed. It
// holds every declared field of a block except the hash itself.
type blockHeader struct {
	Index        uint64  `json:"index"`
	Timestamp    string  `json:"timestamp"`
	Payload      Payload `json:"payload"`
	PreviousHash string  `json:"previous_hash"`
}

// newBlock builds the candidate header, computes its digest and finalizes
// the block.
func newBlock(index uint64, timestamp string, payload Payload, prevHash string) (Block, error) {
	if payload == nil {
		return Block{}, fmt.Errorf("%w: block %d: missing payload", ErrSerialization, index)
	}

	hdr := blockHeader{
		Index:        index,
		Timestamp:    timestamp,
		Payload:      payload,
		PreviousHash: prevHash,
	}

	hash, err := signature.Hash(hdr)
	if err != nil {
		return Block{}, fmt.Errorf("%w: block %d: %s", ErrSerialization, index, err)
	}

	b := Block{
		Index:        hdr.Index,
		Timestamp:    hdr.Timestamp,
		Payload:      hdr.Payload,
		PreviousHash: hdr.PreviousHash,
		Hash:         hash,
	}

	return b, nil
}

// ComputeHash recomputes the digest over the block's declared fields,
// ignoring the stored hash.
func (b Block) ComputeHash() (string, error) {
	hdr := blockHeader{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Payload:      b.Payload,
		PreviousHash: b.PreviousHash,
	}

	return signature.Hash(hdr)
}

// Time returns the block timestamp as a time value.
func (b Block) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, b.Timestamp)
}

// ValidateBlock takes a block and validates it against the block that
// precedes it in the chain.
func (b Block) ValidateBlock(previousBlock Block) error {
	nextIndex := previousBlock.Index + 1
	if b.Index != nextIndex {
		return fmt.Errorf("%w: block %d: this block is not the next index, exp %d", ErrIntegrityViolation, b.Index, nextIndex)
	}

	if b.PreviousHash != previousBlock.Hash {
		return fmt.Errorf("%w: block %d: previous hash doesn't match the parent block, got %s, exp %s", ErrIntegrityViolation, b.Index, b.PreviousHash, previousBlock.Hash)
	}

	parentTime, err := previousBlock.Time()
	if err != nil {
		return fmt.Errorf("%w: block %d: invalid timestamp %q", ErrIntegrityViolation, previousBlock.Index, previousBlock.Timestamp)
	}

	blockTime, err := b.Time()
	if err != nil {
		return fmt.Errorf("%w: block %d: invalid timestamp %q", ErrIntegrityViolation, b.Index, b.Timestamp)
	}

	if blockTime.Before(parentTime) {
		return fmt.Errorf("%w: block %d: timestamp is before parent block, parent %s, block %s", ErrIntegrityViolation, b.Index, previousBlock.Timestamp, b.Timestamp)
	}

	return b.validateHash()
}

// validateGenesis checks the block is a well formed first block.
func (b Block) validateGenesis() error {
	if b.Index != 1 {
		return fmt.Errorf("%w: genesis block has index %d", ErrIntegrityViolation, b.Index)
	}

	if b.PreviousHash != signature.ZeroHash {
		return fmt.Errorf("%w: genesis block has previous hash %q", ErrIntegrityViolation, b.PreviousHash)
	}

	if _, err := b.Time(); err != nil {
		return fmt.Errorf("%w: genesis block has invalid timestamp %q", ErrIntegrityViolation, b.Timestamp)
	}

	return b.validateHash()
}

// validateHash recomputes the block digest and compares it to the stored one.
func (b Block) validateHash() error {
	hash, err := b.ComputeHash()
	if err != nil {
		return fmt.Errorf("%w: block %d: %s", ErrIntegrityViolation, b.Index, err)
	}

	if hash != b.Hash {
		return fmt.Errorf("%w: block %d: invalid block hash, got %s, exp %s", ErrIntegrityViolation, b.Index, b.Hash, hash)
	}

	return nil
}

// UnmarshalJSON rehydrates a block from its wire form.
func (b *Block) UnmarshalJSON(data []byte) error {
	var blockData BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return err
	}

	block, err := ToBlock(blockData)
	if err != nil {
		return err
	}

	*b = block
	return nil
}

// =============================================================================

// BlockData represents what is written to storage. The payload is kept in
// its JSON form so every backend can store it without knowing the variants.
type BlockData struct {
	_            struct{}        `cbor:",toarray"`
	Index        uint64          `json:"index"`
	Timestamp    string          `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block Block) (BlockData, error) {
	payload, err := json.Marshal(block.Payload)
	if err != nil {
		return BlockData{}, fmt.Errorf("%w: block %d: %s", ErrSerialization, block.Index, err)
	}

	blockData := BlockData{
		Index:        block.Index,
		Timestamp:    block.Timestamp,
		Payload:      payload,
		PreviousHash: block.PreviousHash,
		Hash:         block.Hash,
	}

	return blockData, nil
}

// ToBlock converts a BlockData into a Block. The stored hash is kept as is,
// it is not recomputed. Use ValidateChain before trusting the result.
func ToBlock(blockData BlockData) (Block, error) {
	payload, err := DecodePayload(blockData.Payload)
	if err != nil {
		return Block{}, fmt.Errorf("block %d: decoding payload: %w", blockData.Index, err)
	}

	block := Block{
		Index:        blockData.Index,
		Timestamp:    blockData.Timestamp,
		Payload:      payload,
		PreviousHash: blockData.PreviousHash,
		Hash:         blockData.Hash,
	}

	return block, nil
}
