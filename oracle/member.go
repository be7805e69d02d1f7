package oracle

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherfund/cipherfund/crypto/ecc"
	"github.com/cipherfund/cipherfund/crypto/ethereum"
)

// Member is one oracle committee member. It holds a Shamir share of the
// committee decryption key, produced by the distributed key generation
// ceremony, and an Ethereum key for signing decryption results. No member
// ever holds the full decryption key.
type Member struct {
	ID     int
	Signer *ethereum.SignKeys

	curve     ecc.Point
	threshold int
	memberIDs []int

	secretCoeffs []*big.Int
	publicCoeffs []ecc.Point
	outgoing     map[int]*big.Int
	received     map[int]*big.Int
	share        *big.Int
	publicKey    ecc.Point
}

// NewMember initializes a committee member before the key ceremony.
func NewMember(id, threshold int, memberIDs []int, curve ecc.Point) (*Member, error) {
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, fmt.Errorf("generate member signing key: %w", err)
	}
	return &Member{
		ID:        id,
		Signer:    signer,
		curve:     curve,
		threshold: threshold,
		memberIDs: memberIDs,
		outgoing:  make(map[int]*big.Int),
		received:  make(map[int]*big.Int),
		share:     new(big.Int),
	}, nil
}

// Address returns the member's result-signing address.
func (m *Member) Address() common.Address {
	return m.Signer.Address()
}

// generatePolynomial samples the member's secret polynomial of degree
// threshold-1 and the public commitments to its coefficients.
func (m *Member) generatePolynomial() error {
	degree := m.threshold - 1
	for i := 0; i <= degree; i++ {
		coeff, err := rand.Int(rand.Reader, m.curve.Order())
		if err != nil {
			return fmt.Errorf("sample polynomial coefficient: %w", err)
		}
		m.secretCoeffs = append(m.secretCoeffs, coeff)

		commitment := m.curve.New()
		commitment.ScalarBaseMult(coeff)
		m.publicCoeffs = append(m.publicCoeffs, commitment)
	}
	return nil
}

// computeShares evaluates the secret polynomial at each member id, producing
// the share to deliver to that member.
func (m *Member) computeShares() {
	for _, id := range m.memberIDs {
		m.outgoing[id] = m.evaluatePolynomial(big.NewInt(int64(id)))
	}
}

func (m *Member) evaluatePolynomial(x *big.Int) *big.Int {
	result := big.NewInt(0)
	xPower := big.NewInt(1)
	order := m.curve.Order()
	for _, coeff := range m.secretCoeffs {
		term := new(big.Int).Mul(coeff, xPower)
		term.Mod(term, order)
		result.Add(result, term)
		result.Mod(result, order)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return result
}

// receiveShare verifies a share from another member against that member's
// public commitments and stores it.
func (m *Member) receiveShare(fromID int, share *big.Int, publicCoeffs []ecc.Point) error {
	if !m.verifyShare(share, publicCoeffs) {
		return fmt.Errorf("invalid share from member %d", fromID)
	}
	m.received[fromID] = share
	return nil
}

// verifyShare checks G*share == sum_i publicCoeffs[i] * id^i.
func (m *Member) verifyShare(share *big.Int, publicCoeffs []ecc.Point) bool {
	lhs := m.curve.New()
	lhs.ScalarBaseMult(share)

	rhs := m.curve.New()
	x := big.NewInt(int64(m.ID))
	xPower := big.NewInt(1)
	order := m.curve.Order()
	for _, commitment := range publicCoeffs {
		term := m.curve.New()
		term.ScalarMult(commitment, xPower)
		rhs.Add(rhs, term)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return lhs.Equal(rhs)
}

// aggregateShares combines the member's own share with every received share
// into its final private share of the committee key.
func (m *Member) aggregateShares() {
	order := m.curve.Order()
	m.share.Set(m.outgoing[m.ID])
	for _, share := range m.received {
		m.share.Add(m.share, share)
		m.share.Mod(m.share, order)
	}
}

// aggregatePublicKey sums the constant-term commitments of every member into
// the committee public key.
func (m *Member) aggregatePublicKey(allPublicCoeffs map[int][]ecc.Point) {
	pk := m.curve.New()
	for _, coeffs := range allPublicCoeffs {
		pk.Add(pk, coeffs[0])
	}
	m.publicKey = pk
}

// PartialDecrypt computes the member's partial decryption share_i * C1 for a
// ciphertext's C1 point.
func (m *Member) PartialDecrypt(c1 ecc.Point) ecc.Point {
	si := c1.New()
	si.ScalarMult(c1, m.share)
	return si
}

// SignResult signs the binding of a decryption request id to its revealed
// plaintext value.
func (m *Member) SignResult(requestID []byte, value uint64) ([]byte, error) {
	return m.Signer.SignEthereum(resultDigest(requestID, value))
}
