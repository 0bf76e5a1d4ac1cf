package v1

import (
	"errors"
	"net/http"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
)

// LedgerError maps errors returned by the ledger to request errors. Errors
// it doesn't know are returned as is.
func LedgerError(err error) error {
	switch {
	case errors.Is(err, state.ErrHalted), errors.Is(err, database.ErrIntegrityViolation):
		return NewRequestError(err, http.StatusInternalServerError)

	case errors.Is(err, database.ErrSerialization), errors.Is(err, state.ErrInvalidReward):
		return NewRequestError(err, http.StatusBadRequest)

	case errors.Is(err, database.ErrNotFound):
		return NewRequestError(err, http.StatusNotFound)

	case errors.Is(err, state.ErrNoSigner):
		return NewRequestError(err, http.StatusServiceUnavailable)
	}

	return err
}
