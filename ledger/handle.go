package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"

	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/crypto/hash/poseidon"
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/util"
)

// HandleSize is the size in bytes of a ciphertext handle identifier.
const HandleSize = 32

// Handle is an opaque reference to an encrypted value held by the ledger.
// It carries no plaintext information: it is a hash of the ciphertext points
// plus a fresh salt, so two encryptions of the same value get unrelated
// handles. Handles compare by identity only.
type Handle types.HexBytes

// String returns the hexadecimal representation of the handle.
func (h Handle) String() string {
	return types.HexBytes(h).String()
}

// Bytes returns the raw handle identifier.
func (h Handle) Bytes() []byte {
	return []byte(h)
}

// Equal reports whether two handles reference the same ciphertext.
func (h Handle) Equal(other Handle) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// newHandle derives a fresh handle identifier for the given ciphertext.
func newHandle(ct *elgamal.Ciphertext) (Handle, error) {
	c1x, c1y := ct.C1.Point()
	c2x, c2y := ct.C2.Point()
	salt := new(big.Int).SetBytes(util.RandomBytes(8))
	sum, err := poseidon.MultiPoseidon(c1x, c1y, c2x, c2y, salt)
	if err != nil {
		return nil, err
	}
	return Handle(arbo.BigIntToBytes(HandleSize, sum)), nil
}

// Grant records one capability over a handle.
type Grant struct {
	Principal common.Address
	Scope     GrantScope
}

// Sealed couples a freshly produced handle with the capability grants that
// were applied to it. Every balance-mutating ledger operation returns its new
// handles through this type, so a handle can never leave the ledger without
// its grants: forgetting to re-grant after an operation is impossible by
// construction.
type Sealed struct {
	Handle Handle
	Grants []Grant
}
