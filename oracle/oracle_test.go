package oracle

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cipherfund/cipherfund/crypto/ecc"
	"github.com/cipherfund/cipherfund/crypto/ecc/curves"
	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/crypto/ethereum"
)

const testMaxValue = 1 << 16

func TestCommitteeDecrypt(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := NewCommittee(5, 3, curve)
	c.Assert(err, qt.IsNil)

	ct, err := elgamal.NewCiphertext(curve).Encrypt(big.NewInt(1234), committee.PublicKey(), nil)
	c.Assert(err, qt.IsNil)

	value, err := committee.Decrypt(ct, testMaxValue)
	c.Assert(err, qt.IsNil)
	c.Assert(value, qt.Equals, uint64(1234))
}

func TestCombineAnySubset(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := NewCommittee(5, 3, curve)
	c.Assert(err, qt.IsNil)

	ct, err := elgamal.NewCiphertext(curve).Encrypt(big.NewInt(99), committee.PublicKey(), nil)
	c.Assert(err, qt.IsNil)

	// any threshold-sized subset reconstructs, not just the first members
	ids := []int{2, 4, 5}
	partials := make(map[int]ecc.Point, len(ids))
	for _, id := range ids {
		partials[id] = committee.Members[id-1].PartialDecrypt(ct.C1)
	}
	value, err := Combine(ct.C2, partials, ids, testMaxValue)
	c.Assert(err, qt.IsNil)
	c.Assert(value.Uint64(), qt.Equals, uint64(99))
}

func TestHomomorphicAggregateDecrypt(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := NewCommittee(3, 2, curve)
	c.Assert(err, qt.IsNil)

	sum := elgamal.NewCiphertext(curve)
	for _, v := range []int64{10, 20, 12} {
		ct, err := elgamal.NewCiphertext(curve).Encrypt(big.NewInt(v), committee.PublicKey(), nil)
		c.Assert(err, qt.IsNil)
		sum.Add(sum, ct)
	}
	value, err := committee.Decrypt(sum, testMaxValue)
	c.Assert(err, qt.IsNil)
	c.Assert(value, qt.Equals, uint64(42))
}

func TestAttestAndVerify(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := NewCommittee(4, 3, curve)
	c.Assert(err, qt.IsNil)

	ct, err := elgamal.NewCiphertext(curve).Encrypt(big.NewInt(777), committee.PublicKey(), nil)
	c.Assert(err, qt.IsNil)

	requestID := []byte("request-0001")
	result, err := committee.Attest(requestID, ct, testMaxValue)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Value, qt.Equals, uint64(777))

	members := committee.Addresses()
	c.Assert(VerifyResult(result, members, committee.Threshold), qt.IsNil)

	// tampering with the value invalidates every signature
	forged := *result
	forged.Value = 778
	c.Assert(VerifyResult(&forged, members, committee.Threshold), qt.IsNotNil)

	// signatures bound to another request id do not verify
	replayed := *result
	replayed.RequestID = []byte("request-0002")
	c.Assert(VerifyResult(&replayed, members, committee.Threshold), qt.IsNotNil)
}

func TestVerifyResultRejectsOutsiders(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := NewCommittee(3, 2, curve)
	c.Assert(err, qt.IsNil)

	requestID := []byte("request-0003")
	value := uint64(5)
	digest := resultDigest(requestID, value)

	// signatures from keys outside the committee never reach threshold
	var sigs [][]byte
	for i := 0; i < 3; i++ {
		outsider := ethereum.NewSignKeys()
		c.Assert(outsider.Generate(), qt.IsNil)
		sig, err := outsider.SignEthereum(digest)
		c.Assert(err, qt.IsNil)
		sigs = append(sigs, sig)
	}
	result := &Result{RequestID: requestID, Value: value, Signatures: sigs}
	err = VerifyResult(result, committee.Addresses(), committee.Threshold)
	c.Assert(err, qt.IsNotNil)

	// one honest signature repeated does not count twice
	sig, err := committee.Members[0].SignResult(requestID, value)
	c.Assert(err, qt.IsNil)
	result = &Result{RequestID: requestID, Value: value, Signatures: [][]byte{sig, sig, sig}}
	err = VerifyResult(result, committee.Addresses(), committee.Threshold)
	c.Assert(err, qt.IsNotNil)
}

func TestCommitteeInvalidThreshold(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)
	_, err := NewCommittee(3, 0, curve)
	c.Assert(err, qt.IsNotNil)
	_, err = NewCommittee(3, 4, curve)
	c.Assert(err, qt.IsNotNil)
}
