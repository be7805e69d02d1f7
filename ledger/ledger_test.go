package ledger

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/cipherfund/cipherfund/crypto/ecc/curves"
	"github.com/cipherfund/cipherfund/crypto/elgamal"
)

const testMaxValue = 1 << 16

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newTestLedger(t *testing.T) (*Ledger, *big.Int) {
	t.Helper()
	curve := curves.New(curves.CurveTypeBabyJubJub)
	pubKey, privKey, err := elgamal.GenerateKey(curve)
	qt.Assert(t, err, qt.IsNil)
	l, err := New(metadb.NewTest(t), curve, pubKey)
	qt.Assert(t, err, qt.IsNil)
	return l, privKey
}

// decryptHandle opens a handle with the committee private key. Only tests can
// do this; the ledger itself holds no decryption key.
func decryptHandle(t *testing.T, l *Ledger, privKey *big.Int, h Handle) uint64 {
	t.Helper()
	ct, err := l.Ciphertext(Self, h)
	qt.Assert(t, err, qt.IsNil)
	_, msg, err := elgamal.Decrypt(l.PublicKey(), privKey, ct.C1, ct.C2, testMaxValue)
	qt.Assert(t, err, qt.IsNil)
	return msg.Uint64()
}

func TestMint(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	balance, minted, err := l.Mint(alice, 100)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, balance.Handle), qt.Equals, uint64(100))
	c.Assert(decryptHandle(t, l, privKey, minted.Handle), qt.Equals, uint64(100))

	// a second mint supersedes the balance handle
	balance2, _, err := l.Mint(alice, 50)
	c.Assert(err, qt.IsNil)
	c.Assert(balance2.Handle.Equal(balance.Handle), qt.IsFalse)
	c.Assert(decryptHandle(t, l, privKey, balance2.Handle), qt.Equals, uint64(150))

	current, err := l.BalanceOf(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(current.Equal(balance2.Handle), qt.IsTrue)

	c.Assert(l.MintedTotal(), qt.Equals, uint64(150))
}

func TestMintInvalidAmount(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	_, _, err := l.Mint(alice, 0)
	c.Assert(err, qt.ErrorIs, ErrInvalidAmount)
}

func TestTransferConservation(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	_, minted, err := l.Mint(alice, 300)
	c.Assert(err, qt.IsNil)

	fromBal, toBal, err := l.Transfer(alice, alice, bob, minted.Handle)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, fromBal.Handle), qt.Equals, uint64(0))
	c.Assert(decryptHandle(t, l, privKey, toBal.Handle), qt.Equals, uint64(300))

	// both superseded handles are re-granted to their owners
	c.Assert(l.Allowed(fromBal.Handle, alice), qt.IsTrue)
	c.Assert(l.Allowed(toBal.Handle, bob), qt.IsTrue)
	c.Assert(l.Allowed(toBal.Handle, alice), qt.IsFalse)
}

func TestTransferToSelfKeepsBalance(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	_, minted, err := l.Mint(alice, 100)
	c.Assert(err, qt.IsNil)

	// debit and credit hit the same account and must cancel out
	_, toBal, err := l.Transfer(alice, alice, alice, minted.Handle)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, toBal.Handle), qt.Equals, uint64(100))

	current, err := l.BalanceOf(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, current), qt.Equals, uint64(100))
	c.Assert(l.MintedTotal(), qt.Equals, uint64(100))
}

func TestTransferRequiresCapability(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	_, minted, err := l.Mint(alice, 10)
	c.Assert(err, qt.IsNil)

	// bob holds no capability over alice's minted amount
	_, _, err = l.Transfer(bob, alice, bob, minted.Handle)
	c.Assert(err, qt.ErrorIs, ErrNotAllowed)
}

func TestBurn(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	_, minted, err := l.Mint(alice, 120)
	c.Assert(err, qt.IsNil)
	_, _, err = l.Mint(alice, 30)
	c.Assert(err, qt.IsNil)

	balance, amount, err := l.Burn(alice, alice, minted.Handle)
	c.Assert(err, qt.IsNil)
	c.Assert(amount.Equal(minted.Handle), qt.IsTrue)
	c.Assert(decryptHandle(t, l, privKey, balance.Handle), qt.Equals, uint64(30))

	c.Assert(l.ReportBurned(120), qt.IsNil)
	c.Assert(l.BurnedTotal(), qt.Equals, uint64(120))
}

func TestTransientGrantDiesAtCallBoundary(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	_, minted, err := l.Mint(alice, 5)
	c.Assert(err, qt.IsNil)

	err = l.Grant(alice, minted.Handle, carol, GrantTransient)
	c.Assert(err, qt.IsNil)
	c.Assert(l.Allowed(minted.Handle, carol), qt.IsTrue)

	l.EndCall()
	c.Assert(l.Allowed(minted.Handle, carol), qt.IsFalse)
	// persistent grants survive the boundary
	c.Assert(l.Allowed(minted.Handle, alice), qt.IsTrue)
}

func TestGrantRequiresGranterCapability(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	_, minted, err := l.Mint(alice, 5)
	c.Assert(err, qt.IsNil)

	// bob cannot extend a capability he does not hold
	err = l.Grant(bob, minted.Handle, carol, GrantPersistent)
	c.Assert(err, qt.ErrorIs, ErrNotAllowed)
	c.Assert(l.Allowed(minted.Handle, carol), qt.IsFalse)
}

func TestUngrantedHandleIsUnusable(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	// a sealed zero granted to nobody but the ledger
	sealed, err := l.SealZero()
	c.Assert(err, qt.IsNil)

	_, err = l.Ciphertext(alice, sealed.Handle)
	c.Assert(err, qt.ErrorIs, ErrNotAllowed)
	_, _, err = l.Transfer(alice, alice, bob, sealed.Handle)
	c.Assert(err, qt.ErrorIs, ErrNotAllowed)
}

func TestHomomorphicAdd(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	a, err := l.EncryptValue(40, alice)
	c.Assert(err, qt.IsNil)
	b, err := l.EncryptValue(2, alice)
	c.Assert(err, qt.IsNil)

	sum, err := l.Add(alice, a.Handle, b.Handle, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, sum.Handle), qt.Equals, uint64(42))
	c.Assert(l.Allowed(sum.Handle, alice), qt.IsTrue)
}

func TestImportCiphertext(t *testing.T) {
	c := qt.New(t)
	l, privKey := newTestLedger(t)

	ext, err := elgamal.NewCiphertext(l.Curve()).Encrypt(big.NewInt(77), l.PublicKey(), nil)
	c.Assert(err, qt.IsNil)

	sealed, err := l.ImportCiphertext(alice, ext.Serialize())
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(t, l, privKey, sealed.Handle), qt.Equals, uint64(77))
	c.Assert(l.Allowed(sealed.Handle, alice), qt.IsTrue)

	_, err = l.ImportCiphertext(alice, []byte("short"))
	c.Assert(err, qt.IsNotNil)
}

func TestConverter(t *testing.T) {
	c := qt.New(t)
	rate := big.NewInt(1_000_000_000) // 1 gwei per unit
	conv, err := NewConverter(rate)
	c.Assert(err, qt.IsNil)

	units, rem, err := conv.ToUnits(big.NewInt(2_500_000_001))
	c.Assert(err, qt.IsNil)
	c.Assert(units, qt.Equals, uint64(2))
	c.Assert(rem.Int64(), qt.Equals, int64(500_000_001))

	// dust deposit, below one unit
	_, _, err = conv.ToUnits(big.NewInt(999_999_999))
	c.Assert(err, qt.ErrorIs, ErrDustDeposit)
	_, _, err = conv.ToUnits(big.NewInt(0))
	c.Assert(err, qt.ErrorIs, ErrDustDeposit)

	// value width overflow
	huge := new(big.Int).Mul(rate, new(big.Int).SetUint64(1<<33))
	_, _, err = conv.ToUnits(huge)
	c.Assert(err, qt.ErrorIs, ErrAmountTooLarge)

	c.Assert(conv.ToBase(3).String(), qt.Equals, "3000000000")
}

func TestConverterInvalidRate(t *testing.T) {
	c := qt.New(t)
	_, err := NewConverter(big.NewInt(0))
	c.Assert(err, qt.IsNotNil)
	_, err = NewConverter(nil)
	c.Assert(err, qt.IsNotNil)
}
