package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// SubmitReport records a citizen leak report and credits the reporter with
// the configured report reward.
func (s *State) SubmitReport(report database.CitizenReport) (database.Block, error) {
	report.RewardAmount = s.reportReward
	return s.append(report)
}

// SubmitTransaction records a reward transaction issued by an operator.
func (s *State) SubmitTransaction(tx database.RewardTransaction) (database.Block, error) {
	if !(tx.RewardAmount > 0) {
		return database.Block{}, ErrInvalidReward
	}
	return s.append(tx)
}

// ReportReward returns the amount credited for every citizen report.
func (s *State) ReportReward() float64 {
	return s.reportReward
}

// =============================================================================

// append adds the payload to the chain. The database refuses it once the
// ledger is halted.
func (s *State) append(payload database.Payload) (database.Block, error) {
	block, err := s.db.Append(payload)
	if err != nil {
		if errors.Is(err, database.ErrHalted) {
			return database.Block{}, err
		}

		appendFailures.WithLabelValues(payload.PayloadType()).Inc()

		if errors.Is(err, database.ErrIntegrityViolation) {
			s.halt(err)
		}
		return database.Block{}, err
	}

	blocksAppended.WithLabelValues(payload.PayloadType()).Inc()
	chainLength.Set(float64(block.Index))

	s.blockEvent(block)

	return block, nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
