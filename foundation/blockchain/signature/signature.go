// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents the previous hash recorded by the genesis block.
const ZeroHash string = "0"

// =============================================================================

// Canonical returns the deterministic JSON encoding of the value. Object keys
// are sorted lexicographically, HTML characters are not escaped and numbers
// keep the textual form produced by the first encoding. The same logical
// value always produces the same bytes regardless of map insertion order.
func Canonical(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Decode into generic values so every object becomes a map and is
	// written back with sorted keys.
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(generic); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Hash returns the hex encoded SHA-256 digest of the canonical encoding
// of the value.
func Hash(value any) (string, error) {
	data, err := Canonical(value)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// =============================================================================

// Sign uses the specified private key to sign the hash. The signature is
// returned hex encoded in the [R|S|V] format.
func Sign(hash string, privateKey *ecdsa.PrivateKey) (string, error) {
	data := stamp(hash)

	// Sign the stamped hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", errors.New("invalid signature")
	}

	return hexutil.Encode(sig), nil
}

// FromAddress extracts the address for the account that signed the hash.
func FromAddress(hash string, sigStr string) (string, error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}

	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length, got %d, exp %d", len(sig), crypto.SignatureLength)
	}

	// NOTE: If the same exact hash for the given signature is not provided
	// we will get the wrong from address. The public key is being extracted
	// from the data and signature.
	publicKey, err := crypto.SigToPub(stamp(hash), sig)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// Address returns the account address for the specified public key.
func Address(publicKey ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(publicKey).String()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents the ledger hash with
// the ledger stamp embedded into the final hash.
func stamp(hash string) []byte {

	// Hash the value into a 32 byte array. This will provide
	// a data length consistency with all data.
	h := crypto.Keccak256([]byte(hash))

	// This stamp is used so signatures we produce when signing
	// are always unique to the leak ledger.
	stamp := []byte("\x19Leak Ledger Signed Message:\n32")

	return crypto.Keccak256(stamp, h)
}
