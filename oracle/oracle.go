// Package oracle implements the threshold decryption committee. The
// committee's aggregated public key encrypts every ledger value; decrypting
// one takes partial decryptions from at least threshold members, combined
// with Lagrange interpolation. Each revealed value is attested by member
// signatures so the vault can verify a result without trusting the transport.
package oracle

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherfund/cipherfund/crypto/ecc"
	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/crypto/ethereum"
	"github.com/cipherfund/cipherfund/types"
)

// Committee is a fully keyed oracle committee. All members run the key
// generation ceremony before the committee is usable; the aggregated public
// key is what the ledger encrypts under.
type Committee struct {
	Threshold int
	Members   []*Member

	publicKey ecc.Point
}

// NewCommittee creates size members, runs the distributed key generation
// ceremony among them and returns the keyed committee.
func NewCommittee(size, threshold int, curve ecc.Point) (*Committee, error) {
	if threshold < 1 || threshold > size {
		return nil, fmt.Errorf("invalid threshold %d for committee of %d", threshold, size)
	}
	ids := make([]int, size)
	for i := range ids {
		ids[i] = i + 1
	}
	members := make([]*Member, size)
	for i, id := range ids {
		m, err := NewMember(id, threshold, ids, curve)
		if err != nil {
			return nil, err
		}
		if err := m.generatePolynomial(); err != nil {
			return nil, err
		}
		m.computeShares()
		members[i] = m
	}

	// share exchange with commitment verification
	for _, m := range members {
		for _, other := range members {
			if m.ID == other.ID {
				continue
			}
			if err := m.receiveShare(other.ID, other.outgoing[m.ID], other.publicCoeffs); err != nil {
				return nil, fmt.Errorf("key ceremony: %w", err)
			}
		}
	}

	allPublicCoeffs := make(map[int][]ecc.Point, size)
	for _, m := range members {
		allPublicCoeffs[m.ID] = m.publicCoeffs
	}
	for _, m := range members {
		m.aggregateShares()
		m.aggregatePublicKey(allPublicCoeffs)
	}
	for _, m := range members[1:] {
		if !m.publicKey.Equal(members[0].publicKey) {
			return nil, fmt.Errorf("key ceremony: public key mismatch at member %d", m.ID)
		}
	}
	return &Committee{
		Threshold: threshold,
		Members:   members,
		publicKey: members[0].publicKey,
	}, nil
}

// PublicKey returns the committee's aggregated encryption key.
func (c *Committee) PublicKey() ecc.Point { return c.publicKey }

// Addresses returns the result-signing addresses of all members, in member
// order.
func (c *Committee) Addresses() []common.Address {
	addrs := make([]common.Address, len(c.Members))
	for i, m := range c.Members {
		addrs[i] = m.Address()
	}
	return addrs
}

// Decrypt recovers the plaintext of a ciphertext using partial decryptions
// from the first threshold members.
func (c *Committee) Decrypt(ct *elgamal.Ciphertext, maxMessage uint64) (uint64, error) {
	subset := c.Members[:c.Threshold]
	ids := make([]int, len(subset))
	partials := make(map[int]ecc.Point, len(subset))
	for i, m := range subset {
		ids[i] = m.ID
		partials[m.ID] = m.PartialDecrypt(ct.C1)
	}
	value, err := Combine(ct.C2, partials, ids, maxMessage)
	if err != nil {
		return 0, err
	}
	return value.Uint64(), nil
}

// Combine reconstructs the plaintext from partial decryptions of at least
// threshold distinct members, using Lagrange interpolation at zero, and
// solves the bounded discrete log of the resulting point.
func Combine(c2 ecc.Point, partials map[int]ecc.Point, memberIDs []int, maxMessage uint64) (*big.Int, error) {
	coeffs, err := lagrangeCoefficients(memberIDs, c2.Order())
	if err != nil {
		return nil, fmt.Errorf("lagrange coefficients: %w", err)
	}
	s := c2.New()
	for _, id := range memberIDs {
		term := s.New()
		term.ScalarMult(partials[id], coeffs[id])
		s.Add(s, term)
	}
	s.Neg(s)
	m := c2.New()
	m.Add(c2, s)

	g := c2.New()
	g.SetGenerator()
	value, err := elgamal.BabyStepGiantStepECC(m, g, maxMessage)
	if err != nil {
		return nil, fmt.Errorf("recover plaintext: %w", err)
	}
	return value, nil
}

// lagrangeCoefficients computes the interpolation-at-zero coefficients for
// the given member ids, modulo the curve order.
func lagrangeCoefficients(memberIDs []int, mod *big.Int) (map[int]*big.Int, error) {
	coeffs := make(map[int]*big.Int)
	for _, i := range memberIDs {
		numerator := big.NewInt(1)
		denominator := big.NewInt(1)
		for _, j := range memberIDs {
			if i == j {
				continue
			}
			num := big.NewInt(int64(-j))
			num.Mod(num, mod)
			numerator.Mul(numerator, num)
			numerator.Mod(numerator, mod)

			den := big.NewInt(int64(i - j))
			den.Mod(den, mod)
			denominator.Mul(denominator, den)
			denominator.Mod(denominator, mod)
		}
		denominatorInv := new(big.Int).ModInverse(denominator, mod)
		if denominatorInv == nil {
			return nil, fmt.Errorf("no modular inverse for denominator of member %d", i)
		}
		coeff := new(big.Int).Mul(numerator, denominatorInv)
		coeff.Mod(coeff, mod)
		coeffs[i] = coeff
	}
	return coeffs, nil
}

// Result is a decryption result attested by committee member signatures. The
// signatures bind the request id to the revealed value, so a result cannot be
// replayed against a different request.
type Result struct {
	RequestID  types.HexBytes `json:"requestId"`
	Value      uint64         `json:"value"`
	Signatures [][]byte       `json:"signatures"`
}

// resultDigest is the signed payload of a decryption result.
func resultDigest(requestID []byte, value uint64) []byte {
	buf := make([]byte, 0, len(requestID)+8)
	buf = append(buf, requestID...)
	buf = binary.BigEndian.AppendUint64(buf, value)
	return buf
}

// Attest decrypts the ciphertext and collects result signatures from every
// member, producing a verifiable Result for the given request id.
func (c *Committee) Attest(requestID []byte, ct *elgamal.Ciphertext, maxMessage uint64) (*Result, error) {
	value, err := c.Decrypt(ct, maxMessage)
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, 0, len(c.Members))
	for _, m := range c.Members {
		sig, err := m.SignResult(requestID, value)
		if err != nil {
			return nil, fmt.Errorf("member %d result signature: %w", m.ID, err)
		}
		sigs = append(sigs, sig)
	}
	return &Result{RequestID: requestID, Value: value, Signatures: sigs}, nil
}

// VerifyResult checks that a result carries valid signatures from at least
// threshold distinct committee members. Unknown signers and duplicate signers
// do not count. It returns an error describing the first reason the result
// cannot be accepted.
func VerifyResult(r *Result, members []common.Address, threshold int) error {
	known := make(map[common.Address]bool, len(members))
	for _, addr := range members {
		known[addr] = true
	}
	digest := resultDigest(r.RequestID, r.Value)
	seen := make(map[common.Address]bool)
	for _, sig := range r.Signatures {
		addr, err := ethereum.AddrFromSignature(digest, sig)
		if err != nil {
			continue
		}
		if known[addr] {
			seen[addr] = true
		}
	}
	if len(seen) < threshold {
		return fmt.Errorf("result has %d valid member signatures, need %d", len(seen), threshold)
	}
	return nil
}
