package database

import "errors"

// Set of error variables for ledger operations.
var (
	// ErrIntegrityViolation is returned when a block's recomputed hash,
	// linkage or index does not match. A chain reporting this error must not
	// be trusted for further appends.
	ErrIntegrityViolation = errors.New("ledger integrity violation")

	// ErrSerialization is returned when a payload can't be canonically
	// serialized for hashing. The append is aborted and the chain is left
	// unchanged.
	ErrSerialization = errors.New("payload serialization failure")

	// ErrNotFound is returned when a block index is outside the chain.
	ErrNotFound = errors.New("block not found")

	// ErrHalted is returned by appends once the database has been halted.
	ErrHalted = errors.New("ledger halted after an integrity violation")
)
