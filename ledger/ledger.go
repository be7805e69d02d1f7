// Package ledger implements the encrypted balance ledger: account balances
// are opaque ElGamal ciphertext handles, all arithmetic on them is
// homomorphic, and access to every handle is gated by an additive capability
// list. The ledger never compares balances in plaintext and never logs
// plaintext values.
//
// Every operation that produces a handle returns it as a Sealed bundle, with
// the capability grants already applied: superseding a balance silently drops
// the old handle's relevance, so each operation must (and here, structurally
// does) re-grant access on the handles it produces.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/cipherfund/cipherfund/crypto/ecc"
	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/types"
)

// Self is the ledger's own principal. Handles produced by ledger operations
// are always granted to Self so the ledger can keep operating on them.
var Self = common.BytesToAddress([]byte("cipherfund.ledger"))

var (
	ErrNotAllowed     = errors.New("principal has no capability over this handle")
	ErrUnknownHandle  = errors.New("unknown ciphertext handle")
	ErrUnknownAccount = errors.New("account has no balance")
	ErrInvalidAmount  = errors.New("invalid amount")
)

var (
	handlePrefix  = []byte("h/")
	balancePrefix = []byte("b/")
	supplyPrefix  = []byte("s/")
	treePrefix    = []byte("t/")
)

var (
	keyMinted = []byte("minted")
	keyBurned = []byte("burned")
)

// hashFunc is the hash function used in the account tree.
var hashFunc = arbo.HashPoseidon{}

// Ledger maps accounts to their encrypted balance handles. Exactly one live
// handle exists per account at any time; operations supersede it with a fresh
// one and re-grant capabilities on the replacement.
type Ledger struct {
	db     db.Database
	tree   *arbo.Tree
	curve  ecc.Point
	pubKey ecc.Point
	acl    *acl
	mu     sync.Mutex
}

// New creates or opens a Ledger stored in the passed database. The public key
// is the oracle committee's aggregated encryption key: the ledger can encrypt
// under it but can never decrypt.
func New(database db.Database, curve ecc.Point, publicKey ecc.Point) (*Ledger, error) {
	pdb := prefixeddb.NewPrefixedDatabase(database, treePrefix)
	tree, err := arbo.NewTree(arbo.Config{
		Database:     pdb,
		MaxLevels:    types.AccountTreeMaxLevels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("open account tree: %w", err)
	}
	return &Ledger{
		db:     database,
		tree:   tree,
		curve:  curve,
		pubKey: publicKey,
		acl:    newACL(database),
	}, nil
}

// Curve returns a point on the ledger's curve.
func (l *Ledger) Curve() ecc.Point { return l.curve.New() }

// PublicKey returns the encryption public key of the ledger.
func (l *Ledger) PublicKey() ecc.Point { return l.pubKey }

// Root returns the account tree root, binding every account to its current
// balance handle.
func (l *Ledger) Root() (*big.Int, error) {
	root, err := l.tree.Root()
	if err != nil {
		return nil, err
	}
	return arbo.BytesToBigInt(root), nil
}

// seal registers a ciphertext under a fresh handle and applies the given
// grants. It is the only way a handle comes into existence: a ciphertext
// cannot be registered without deciding who may use it.
func (l *Ledger) seal(ct *elgamal.Ciphertext, grants ...Grant) (Sealed, error) {
	h, err := newHandle(ct)
	if err != nil {
		return Sealed{}, fmt.Errorf("derive handle: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(l.db.WriteTx(), handlePrefix)
	if err := wTx.Set(h.Bytes(), ct.Serialize()); err != nil {
		wTx.Discard()
		return Sealed{}, fmt.Errorf("store ciphertext: %w", err)
	}
	if err := wTx.Commit(); err != nil {
		return Sealed{}, err
	}
	for _, g := range grants {
		if err := l.acl.grant(h, g.Principal, g.Scope); err != nil {
			return Sealed{}, err
		}
	}
	return Sealed{Handle: h, Grants: grants}, nil
}

// ciphertext loads the ciphertext referenced by a handle, without any
// capability check. Callers inside the package gate access themselves.
func (l *Ledger) ciphertext(h Handle) (*elgamal.Ciphertext, error) {
	rd := prefixeddb.NewPrefixedReader(l.db, handlePrefix)
	data, err := rd.Get(h.Bytes())
	if err != nil {
		return nil, ErrUnknownHandle
	}
	ct := elgamal.NewCiphertext(l.curve)
	if err := ct.Deserialize(data); err != nil {
		return nil, fmt.Errorf("corrupt ciphertext for handle %s: %w", h, err)
	}
	return ct, nil
}

// Ciphertext returns the ciphertext referenced by handle, provided the caller
// holds a capability over it. This is the read path the decryption protocol
// uses; there is no uncapability-checked plaintext path anywhere.
func (l *Ledger) Ciphertext(caller common.Address, h Handle) (*elgamal.Ciphertext, error) {
	if !l.acl.allowed(h, caller) {
		return nil, ErrNotAllowed
	}
	return l.ciphertext(h)
}

// Grant extends a capability over handle to grantee. The granter must itself
// hold a capability; grants are additive and never revoke existing ones.
func (l *Ledger) Grant(granter common.Address, h Handle, grantee common.Address, scope GrantScope) error {
	if granter != Self && !l.acl.allowed(h, granter) {
		return ErrNotAllowed
	}
	if _, err := l.ciphertext(h); err != nil {
		return err
	}
	return l.acl.grant(h, grantee, scope)
}

// Allowed reports whether principal holds a live capability over handle.
func (l *Ledger) Allowed(h Handle, principal common.Address) bool {
	return l.acl.allowed(h, principal)
}

// EndCall wipes all transient grants. The outer layers invoke it at every
// external call boundary.
func (l *Ledger) EndCall() {
	l.acl.endCall()
}

// BalanceOf returns the account's current balance handle.
func (l *Ledger) BalanceOf(account common.Address) (Handle, error) {
	rd := prefixeddb.NewPrefixedReader(l.db, balancePrefix)
	data, err := rd.Get(account.Bytes())
	if err != nil {
		return nil, ErrUnknownAccount
	}
	h := make(Handle, len(data))
	copy(h, data)
	return h, nil
}

// balanceCiphertext loads the account's balance ciphertext, or the zero
// ciphertext if the account has none yet.
func (l *Ledger) balanceCiphertext(account common.Address) (*elgamal.Ciphertext, error) {
	h, err := l.BalanceOf(account)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return elgamal.NewCiphertext(l.curve), nil
		}
		return nil, err
	}
	return l.ciphertext(h)
}

// setBalance records the new balance handle of account, superseding the
// previous one, and updates the account tree.
func (l *Ledger) setBalance(account common.Address, h Handle) error {
	_, _, err := l.tree.Get(account.Bytes())
	switch {
	case err == nil:
		if err := l.tree.Update(account.Bytes(), h.Bytes()); err != nil {
			return fmt.Errorf("update account tree: %w", err)
		}
	default:
		if err := l.tree.Add(account.Bytes(), h.Bytes()); err != nil {
			return fmt.Errorf("add to account tree: %w", err)
		}
	}
	wTx := prefixeddb.NewPrefixedWriteTx(l.db.WriteTx(), balancePrefix)
	if err := wTx.Set(account.Bytes(), h.Bytes()); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// Mint creates amount fresh encrypted units for account. It returns the
// superseding balance handle and the handle of the minted amount itself; the
// latter is what a caller passes to Transfer or Burn within the same flow.
// Both handles are granted to the ledger and to account.
func (l *Ledger) Mint(account common.Address, amount uint64) (balance, minted Sealed, err error) {
	if amount == 0 || amount > types.MaxLedgerValue {
		return Sealed{}, Sealed{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	amtCt, err := elgamal.NewCiphertext(l.curve).Encrypt(new(big.Int).SetUint64(amount), l.pubKey, nil)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	minted, err = l.seal(amtCt,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: account, Scope: GrantPersistent},
	)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}

	bal, err := l.balanceCiphertext(account)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	newBal := elgamal.NewCiphertext(l.curve).Add(bal, amtCt)
	balance, err = l.seal(newBal,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: account, Scope: GrantPersistent},
	)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	if err := l.setBalance(account, balance.Handle); err != nil {
		return Sealed{}, Sealed{}, err
	}
	if err := l.addSupply(keyMinted, amount); err != nil {
		return Sealed{}, Sealed{}, err
	}
	return balance, minted, nil
}

// Transfer moves the encrypted amount referenced by amountHandle from one
// account to the other. The caller must hold a capability over amountHandle.
// Both superseding balance handles are re-granted to the ledger and to their
// respective owners.
func (l *Ledger) Transfer(caller, from, to common.Address, amountHandle Handle) (fromBalance, toBalance Sealed, err error) {
	if !l.acl.allowed(amountHandle, caller) {
		return Sealed{}, Sealed{}, ErrNotAllowed
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	amt, err := l.ciphertext(amountHandle)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	fromBal, err := l.balanceCiphertext(from)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	newFrom := elgamal.NewCiphertext(l.curve).Sub(fromBal, amt)

	// A self-transfer must net to the original balance: the destination side
	// starts from the already debited ciphertext, not from a stale read.
	toBal := newFrom
	if from != to {
		toBal, err = l.balanceCiphertext(to)
		if err != nil {
			return Sealed{}, Sealed{}, err
		}
	}
	newTo := elgamal.NewCiphertext(l.curve).Add(toBal, amt)

	fromBalance, err = l.seal(newFrom,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: from, Scope: GrantPersistent},
	)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	toBalance, err = l.seal(newTo,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: to, Scope: GrantPersistent},
	)
	if err != nil {
		return Sealed{}, Sealed{}, err
	}
	if err := l.setBalance(from, fromBalance.Handle); err != nil {
		return Sealed{}, Sealed{}, err
	}
	if err := l.setBalance(to, toBalance.Handle); err != nil {
		return Sealed{}, Sealed{}, err
	}
	return fromBalance, toBalance, nil
}

// Burn removes the encrypted amount referenced by amountHandle from the
// account's balance and returns the amount handle unchanged, so the caller
// can feed it to a decryption request. The superseding balance handle is
// re-granted to the ledger and to the account.
//
// Note the burned plaintext is not known here: the supply counter is adjusted
// by the vault once the oracle reveals the value.
func (l *Ledger) Burn(caller, account common.Address, amountHandle Handle) (balance Sealed, amount Handle, err error) {
	if !l.acl.allowed(amountHandle, caller) {
		return Sealed{}, nil, ErrNotAllowed
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	amt, err := l.ciphertext(amountHandle)
	if err != nil {
		return Sealed{}, nil, err
	}
	bal, err := l.balanceCiphertext(account)
	if err != nil {
		return Sealed{}, nil, err
	}
	newBal := elgamal.NewCiphertext(l.curve).Sub(bal, amt)
	balance, err = l.seal(newBal,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: account, Scope: GrantPersistent},
	)
	if err != nil {
		return Sealed{}, nil, err
	}
	if err := l.setBalance(account, balance.Handle); err != nil {
		return Sealed{}, nil, err
	}
	return balance, amountHandle, nil
}

// Add homomorphically adds the ciphertexts referenced by a and b into a fresh
// handle. The caller must hold capabilities over both inputs. The result is
// granted to the ledger and to the listed grantees, persistently.
func (l *Ledger) Add(caller common.Address, a, b Handle, grantees ...common.Address) (Sealed, error) {
	if !l.acl.allowed(a, caller) || !l.acl.allowed(b, caller) {
		return Sealed{}, ErrNotAllowed
	}
	ctA, err := l.ciphertext(a)
	if err != nil {
		return Sealed{}, err
	}
	ctB, err := l.ciphertext(b)
	if err != nil {
		return Sealed{}, err
	}
	grants := []Grant{{Principal: Self, Scope: GrantPersistent}}
	for _, g := range grantees {
		grants = append(grants, Grant{Principal: g, Scope: GrantPersistent})
	}
	return l.seal(elgamal.NewCiphertext(l.curve).Add(ctA, ctB), grants...)
}

// EncryptValue encrypts a fresh plaintext value into a new handle granted to
// the ledger and to the listed grantees. The campaign layer uses it to build
// encrypted constants such as the donation-count increment.
func (l *Ledger) EncryptValue(value uint64, grantees ...common.Address) (Sealed, error) {
	if value > types.MaxLedgerValue {
		return Sealed{}, fmt.Errorf("%w: %d", ErrInvalidAmount, value)
	}
	ct, err := elgamal.NewCiphertext(l.curve).Encrypt(new(big.Int).SetUint64(value), l.pubKey, nil)
	if err != nil {
		return Sealed{}, err
	}
	grants := []Grant{{Principal: Self, Scope: GrantPersistent}}
	for _, g := range grantees {
		grants = append(grants, Grant{Principal: g, Scope: GrantPersistent})
	}
	return l.seal(ct, grants...)
}

// SealZero registers the zero ciphertext under a fresh handle. Encrypted
// accumulators are seeded with it.
func (l *Ledger) SealZero(grantees ...common.Address) (Sealed, error) {
	grants := []Grant{{Principal: Self, Scope: GrantPersistent}}
	for _, g := range grantees {
		grants = append(grants, Grant{Principal: g, Scope: GrantPersistent})
	}
	return l.seal(elgamal.NewCiphertext(l.curve), grants...)
}

// ImportCiphertext registers an externally produced ciphertext under a fresh
// handle granted to the importing account. The ciphertext must deserialize to
// valid curve points; proof of plaintext knowledge is the oracle's concern.
func (l *Ledger) ImportCiphertext(account common.Address, data []byte) (Sealed, error) {
	ct := elgamal.NewCiphertext(l.curve)
	if err := ct.Deserialize(data); err != nil {
		return Sealed{}, fmt.Errorf("invalid ciphertext: %w", err)
	}
	return l.seal(ct,
		Grant{Principal: Self, Scope: GrantPersistent},
		Grant{Principal: account, Scope: GrantPersistent},
	)
}

// MintedTotal returns the total plaintext value ever minted. Mint inputs are
// public (deposits carry plaintext base value), so this leaks nothing about
// individual balances.
func (l *Ledger) MintedTotal() uint64 { return l.supply(keyMinted) }

// BurnedTotal returns the total plaintext value confirmed burned (reported by
// the vault after the oracle reveals a withdrawal's value).
func (l *Ledger) BurnedTotal() uint64 { return l.supply(keyBurned) }

// ReportBurned adds the plaintext value of a finalized withdrawal to the
// burned-supply counter.
func (l *Ledger) ReportBurned(amount uint64) error {
	return l.addSupply(keyBurned, amount)
}

func (l *Ledger) supply(key []byte) uint64 {
	rd := prefixeddb.NewPrefixedReader(l.db, supplyPrefix)
	data, err := rd.Get(key)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (l *Ledger) addSupply(key []byte, amount uint64) error {
	total := l.supply(key) + amount
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, total)
	wTx := prefixeddb.NewPrefixedWriteTx(l.db.WriteTx(), supplyPrefix)
	if err := wTx.Set(key, buf); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
