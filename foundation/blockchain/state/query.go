package state

import (
	"github.com/leakwatch/blockchain/foundation/blockchain/balance"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// Profile summarizes the activity of a single recipient.
type Profile struct {
	Recipient   string  `json:"recipient"`
	Reports     int     `json:"reports"`
	TotalReward float64 `json:"total_reward"`
}

// QueryBlock returns the block with the specified 1-based index.
func (s *State) QueryBlock(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// QueryRewards returns the reward total for the recipient. An empty
// recipient returns the total across all recipients.
func (s *State) QueryRewards(recipient string) float64 {
	if recipient == "" {
		return s.rewards.TotalReward()
	}
	return s.rewards.TotalRewardFor(recipient)
}

// QueryBalances returns the reward totals of every recipient.
func (s *State) QueryBalances() map[string]float64 {
	return s.rewards.Sheet().Copy()
}

// QueryReportsByRecipient returns the blocks holding citizen reports filed
// by the recipient.
func (s *State) QueryReportsByRecipient(recipient string) []database.Block {
	out := []database.Block{}
	for _, block := range s.db.Chain() {
		if report, ok := block.Payload.(database.CitizenReport); ok && report.Recipient == recipient {
			out = append(out, block)
		}
	}
	return out
}

// QueryProfile returns the number of reports and the reward total for the
// recipient, computed from a single snapshot of the chain.
func (s *State) QueryProfile(recipient string) Profile {
	chain := s.db.Chain()

	p := Profile{
		Recipient:   recipient,
		TotalReward: balance.TotalFor(chain, recipient),
	}

	for _, block := range chain {
		if report, ok := block.Payload.(database.CitizenReport); ok && report.Recipient == recipient {
			p.Reports++
		}
	}

	return p
}
