package state

import (
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

// RetrieveChain returns a copy of every block in append order.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Chain()
}

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}
