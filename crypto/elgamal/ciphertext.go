package elgamal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"

	"github.com/cipherfund/cipherfund/crypto/ecc"
)

// sizes in bytes needed to serialize a Ciphertext
const (
	sizeCoord      = 32
	sizePoint      = 2 * sizeCoord
	SizeCiphertext = 2 * sizePoint
)

// Ciphertext represents an ElGamal encrypted value with homomorphic
// properties. Adding two ciphertexts yields an encryption of the sum of their
// plaintexts, subtracting yields an encryption of the difference. The
// plaintext is never recoverable from the ciphertext alone.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a new zero Ciphertext on the same curve as the given
// point. The zero ciphertext is the identity of homomorphic addition and is
// the seed of every accumulator in the ledger.
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// Encrypt encrypts a message using the public key provided as elliptic curve
// point. The randomness k can be provided or nil to generate a new one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		k, err = RandK()
		if err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	c1, c2, err := EncryptWithK(publicKey, message, k)
	if err != nil {
		return nil, fmt.Errorf("elgamal encryption failed: %w", err)
	}
	z.C1 = c1
	z.C2 = c2
	return z, nil
}

// Add adds two Ciphertext and stores the result in z, which is also returned.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.SafeAdd(x.C1, y.C1)
	z.C2.SafeAdd(x.C2, y.C2)
	return z
}

// Sub subtracts y from x homomorphically and stores the result in z, which is
// also returned. The result decrypts to the difference of the plaintexts.
func (z *Ciphertext) Sub(x, y *Ciphertext) *Ciphertext {
	negC1 := y.C1.New()
	negC1.Neg(y.C1)
	negC2 := y.C2.New()
	negC2.Neg(y.C2)
	z.C1.SafeAdd(x.C1, negC1)
	z.C2.SafeAdd(x.C2, negC2)
	return z
}

// Neg negates x homomorphically and stores the result in z, which is also
// returned.
func (z *Ciphertext) Neg(x *Ciphertext) *Ciphertext {
	z.C1.Neg(x.C1)
	z.C2.Neg(x.C2)
	return z
}

// Clone returns a deep copy of z on the same curve.
func (z *Ciphertext) Clone() *Ciphertext {
	c := NewCiphertext(z.C1)
	c.C1.Set(z.C1)
	c.C2.Set(z.C2)
	return c
}

// Serialize returns a slice of 4*32 bytes, representing the C1.X, C1.Y, C2.X,
// C2.Y affine coordinates.
func (z *Ciphertext) Serialize() []byte {
	var buf bytes.Buffer
	c1x, c1y := z.C1.Point()
	c2x, c2y := z.C2.Point()
	for _, bi := range []*big.Int{c1x, c1y, c2x, c2y} {
		buf.Write(arbo.BigIntToBytes(sizeCoord, bi))
	}
	return buf.Bytes()
}

// Deserialize reconstructs a Ciphertext from a slice of bytes. The input must
// be of len 4*32 bytes (otherwise it returns an error), representing the
// C1.X, C1.Y, C2.X, C2.Y affine coordinates.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	readBigInt := func(offset int) *big.Int {
		return arbo.BytesToBigInt(data[offset : offset+sizeCoord])
	}
	z.C1 = z.C1.SetPoint(readBigInt(0*sizeCoord), readBigInt(1*sizeCoord))
	z.C2 = z.C2.SetPoint(readBigInt(2*sizeCoord), readBigInt(3*sizeCoord))
	return nil
}

// Marshal converts Ciphertext to a byte slice.
func (z *Ciphertext) Marshal() ([]byte, error) {
	return json.Marshal(z)
}

// Unmarshal populates Ciphertext from a byte slice.
func (z *Ciphertext) Unmarshal(data []byte) error {
	return json.Unmarshal(data, z)
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
