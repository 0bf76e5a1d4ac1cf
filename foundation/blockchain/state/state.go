// Package state is the core API for the ledger and implements the business
// rules for recording reports and rewards.
//
// A State is constructed once in main and injected into the handlers that
// need it. Shutdown must be called to release the storage.
package state

import (
	"crypto/ecdsa"
	"errors"

	"github.com/leakwatch/blockchain/foundation/blockchain/balance"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// DefaultReportReward is the amount credited for every citizen report when
// the configuration doesn't say otherwise.
const DefaultReportReward = 5

// Set of errors returned by the state.
var (
	ErrHalted        = database.ErrHalted
	ErrInvalidReward = errors.New("reward amount must be greater than zero")
	ErrNoSigner      = errors.New("node has no signing key")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the ledger.
type Config struct {
	Storage      database.Storage
	Clock        database.Clock
	ReportReward float64
	NodeKey      *ecdsa.PrivateKey
	EvHandler    EventHandler
}

// State manages the ledger database.
type State struct {
	evHandler    EventHandler
	reportReward float64
	nodeKey      *ecdsa.PrivateKey

	db      *database.Database
	rewards *balance.Aggregator
}

// New constructs a new ledger for data management. An existing chain in the
// storage is validated before the ledger is usable.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(database.Config{
		Storage:   cfg.Storage,
		Clock:     cfg.Clock,
		EvHandler: ev,
	})
	if err != nil {
		return nil, err
	}

	reportReward := cfg.ReportReward
	if reportReward <= 0 {
		reportReward = DefaultReportReward
	}

	s := State{
		evHandler:    ev,
		reportReward: reportReward,
		nodeKey:      cfg.NodeKey,
		db:           db,
		rewards:      balance.New(db),
	}

	chainLength.Set(float64(db.Len()))

	return &s, nil
}

// Shutdown cleanly brings the ledger down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	return s.db.Close()
}

// Halted reports whether the ledger refuses appends.
func (s *State) Halted() bool {
	return s.db.Halted()
}

// halt stops all further appends. No append commits once it returns.
func (s *State) halt(err error) {
	if s.db.Halt() {
		s.evHandler("state: HALT: %s", err)
		haltedGauge.Set(1)
	}
}
