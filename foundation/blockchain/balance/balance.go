// Package balance computes reward balances from the blocks in the chain.
// Nothing is cached; every query scans the chain as it is at call time.
package balance

import (
	"sync"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// ChainReader represents the behavior required to read a snapshot of the
// chain.
type ChainReader interface {
	Chain() []database.Block
}

// Aggregator is a read side view over the chain summing reward amounts
// per recipient.
type Aggregator struct {
	chain ChainReader
}

// New constructs an aggregator reading from the specified chain.
func New(chain ChainReader) *Aggregator {
	return &Aggregator{chain: chain}
}

// TotalReward returns the sum of every reward recorded in the chain.
func (a *Aggregator) TotalReward() float64 {
	return Total(a.chain.Chain())
}

// TotalRewardFor returns the sum of the rewards recorded for the recipient.
// An unknown recipient has a total of zero.
func (a *Aggregator) TotalRewardFor(recipient string) float64 {
	return TotalFor(a.chain.Chain(), recipient)
}

// Sheet returns the reward totals of every recipient in the chain.
func (a *Aggregator) Sheet() *Sheet {
	return Calculate(a.chain.Chain())
}

// =============================================================================

// Total sums every reward in the specified blocks.
func Total(blocks []database.Block) float64 {
	var total float64
	for _, block := range blocks {
		if _, amount, ok := Reward(block.Payload); ok {
			total += amount
		}
	}
	return total
}

// TotalFor sums the rewards for the recipient in the specified blocks.
func TotalFor(blocks []database.Block, recipient string) float64 {
	var total float64
	for _, block := range blocks {
		if to, amount, ok := Reward(block.Payload); ok && to == recipient {
			total += amount
		}
	}
	return total
}

// Calculate builds a sheet with the totals of every recipient in the
// specified blocks.
func Calculate(blocks []database.Block) *Sheet {
	sheet := NewSheet(nil)
	for _, block := range blocks {
		if to, amount, ok := Reward(block.Payload); ok {
			sheet.ApplyValue(to, amount)
		}
	}
	return sheet
}

// Reward extracts the recipient and amount from payloads that carry a
// reward. Any other payload, like the genesis marker, is not a match.
func Reward(payload database.Payload) (recipient string, amount float64, ok bool) {
	switch p := payload.(type) {
	case database.RewardTransaction:
		return p.Recipient, p.RewardAmount, true
	case database.CitizenReport:
		return p.Recipient, p.RewardAmount, true
	}
	return "", 0, false
}

// =============================================================================

// Sheet represents the data representation to maintain recipient balances.
type Sheet struct {
	sheet map[string]float64
	mu    sync.RWMutex
}

// NewSheet constructs a new balance sheet for use with optional starting
// balances.
func NewSheet(sheet map[string]float64) *Sheet {
	bs := Sheet{
		sheet: make(map[string]float64),
	}

	for recipient, value := range sheet {
		bs.sheet[recipient] = value
	}

	return &bs
}

// ApplyValue gives the specified recipient the specified value.
func (bs *Sheet) ApplyValue(recipient string, value float64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.sheet[recipient] += value
}

// Balance returns the balance of the recipient.
func (bs *Sheet) Balance(recipient string) float64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return bs.sheet[recipient]
}

// Copy makes a copy of the current balance sheet but returns the raw data.
func (bs *Sheet) Copy() map[string]float64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	sheet := make(map[string]float64, len(bs.sheet))
	for recipient, value := range bs.sheet {
		sheet[recipient] = value
	}
	return sheet
}
