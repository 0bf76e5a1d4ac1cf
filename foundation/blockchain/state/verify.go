package state

import (
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/signature"
)

// Tip is a signed statement by the node about the latest block in the chain.
// Anyone holding the node's address can check it without trusting storage.
type Tip struct {
	Index     uint64 `json:"index"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// Verify walks the full chain in memory and the chain held by the storage.
// A failure halts the ledger so no block is ever appended to a chain that
// can't be trusted.
func (s *State) Verify() error {
	start := time.Now()
	defer func() {
		verifyDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.db.Validate(); err != nil {
		s.halt(err)
		return err
	}

	if err := s.db.ValidateStorage(); err != nil {
		s.halt(err)
		return err
	}

	return nil
}

// tipStatement is the content of a tip covered by the signature.
type tipStatement struct {
	Index     uint64 `json:"index"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// digest returns the hash of the signed content of the tip.
func (t Tip) digest() (string, error) {
	return signature.Hash(tipStatement{
		Index:     t.Index,
		Hash:      t.Hash,
		Timestamp: t.Timestamp,
	})
}

// SignedTip returns the latest block's index, hash and timestamp signed
// with the node key.
func (s *State) SignedTip() (Tip, error) {
	if s.nodeKey == nil {
		return Tip{}, ErrNoSigner
	}

	block := s.db.LatestBlock()

	tip := Tip{
		Index:     block.Index,
		Hash:      block.Hash,
		Timestamp: block.Timestamp,
		Signer:    signature.Address(s.nodeKey.PublicKey),
	}

	digest, err := tip.digest()
	if err != nil {
		return Tip{}, err
	}

	if tip.Signature, err = signature.Sign(digest, s.nodeKey); err != nil {
		return Tip{}, err
	}

	return tip, nil
}

// VerifyTip checks the tip's index, hash and timestamp were signed by its
// declared signer.
func VerifyTip(tip Tip) (bool, error) {
	digest, err := tip.digest()
	if err != nil {
		return false, err
	}

	from, err := signature.FromAddress(digest, tip.Signature)
	if err != nil {
		return false, err
	}
	return from == tip.Signer, nil
}
