package anchor

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashIdentifier maps a counterparty identifier (patient or doctor ID) to
// the 0x-prefixed Keccak-256 digest stored on the ledger. Raw identifiers
// never leave the service; only these digests are anchored.
func HashIdentifier(id string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(id))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
