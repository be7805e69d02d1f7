// Package vault is the custody layer of the ledger: it holds the base
// currency backing every minted unit, converts between the two at a fixed
// rate, and drives the asynchronous withdrawal protocol. A withdrawal burns
// encrypted units and parks a pending request; value only moves again when
// the oracle committee reveals the burned amount through a signed finalize
// callback.
package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/oracle"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/util"
)

var (
	ErrPaused            = errors.New("vault is paused")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrZeroRecipient     = errors.New("recipient is the zero address")
	ErrInvalidRequest    = errors.New("unknown or already finalized request")
	ErrInvalidSignatures = errors.New("result signatures did not verify")
)

var (
	baseBalancePrefix = []byte("vb/")
	statePrefix       = []byte("vs/")
)

var (
	keyLocked = []byte("locked")
	keyPaused = []byte("paused")
)

// requestIDSize is the size of a withdrawal request id.
const requestIDSize = 16

// Vault holds base currency and mediates every conversion between base value
// and encrypted ledger units.
type Vault struct {
	db        db.Database
	ledger    *ledger.Ledger
	store     *storage.Storage
	converter *ledger.Converter

	owner     common.Address
	signers   []common.Address
	threshold int

	// mu serializes every mutating entrypoint; finalize payouts cannot
	// reenter.
	mu sync.Mutex
}

// New creates a Vault over the given ledger and storage. The signers and
// threshold identify the oracle committee whose finalize results are
// accepted.
func New(database db.Database, l *ledger.Ledger, store *storage.Storage, conv *ledger.Converter,
	owner common.Address, signers []common.Address, threshold int,
) (*Vault, error) {
	if conv == nil {
		return nil, fmt.Errorf("nil converter")
	}
	if threshold < 1 || threshold > len(signers) {
		return nil, fmt.Errorf("invalid signer threshold %d of %d", threshold, len(signers))
	}
	return &Vault{
		db:        database,
		ledger:    l,
		store:     store,
		converter: conv,
		owner:     owner,
		signers:   signers,
		threshold: threshold,
	}, nil
}

// Converter returns the vault's fixed-rate conversion policy.
func (v *Vault) Converter() *ledger.Converter { return v.converter }

// Paused reports whether mutating entrypoints are currently blocked. Reads
// are never blocked.
func (v *Vault) Paused() bool {
	rd := prefixeddb.NewPrefixedReader(v.db, statePrefix)
	data, err := rd.Get(keyPaused)
	return err == nil && len(data) == 1 && data[0] == 1
}

// Pause blocks every mutating entrypoint. Owner only.
func (v *Vault) Pause(caller common.Address) error {
	return v.setPaused(caller, true)
}

// Unpause lifts the pause. Owner only.
func (v *Vault) Unpause(caller common.Address) error {
	return v.setPaused(caller, false)
}

func (v *Vault) setPaused(caller common.Address, paused bool) error {
	if caller != v.owner {
		return ErrNotOwner
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	val := byte(0)
	if paused {
		val = 1
	}
	wTx := prefixeddb.NewPrefixedWriteTx(v.db.WriteTx(), statePrefix)
	if err := wTx.Set(keyPaused, []byte{val}); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Infow("vault pause state changed", "paused", paused)
	return nil
}

// LockedBase returns the base currency currently backing circulating units.
func (v *Vault) LockedBase() *big.Int {
	rd := prefixeddb.NewPrefixedReader(v.db, statePrefix)
	data, err := rd.Get(keyLocked)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(data)
}

func (v *Vault) setLockedBase(n *big.Int) error {
	wTx := prefixeddb.NewPrefixedWriteTx(v.db.WriteTx(), statePrefix)
	if err := wTx.Set(keyLocked, n.Bytes()); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// BaseBalance returns the claimable base currency credit of an address:
// deposit remainders and finalized withdrawal payouts accumulate here.
func (v *Vault) BaseBalance(addr common.Address) *big.Int {
	rd := prefixeddb.NewPrefixedReader(v.db, baseBalancePrefix)
	data, err := rd.Get(addr.Bytes())
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(data)
}

func (v *Vault) creditBase(addr common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	total := new(big.Int).Add(v.BaseBalance(addr), amount)
	wTx := prefixeddb.NewPrefixedWriteTx(v.db.WriteTx(), baseBalancePrefix)
	if err := wTx.Set(addr.Bytes(), total.Bytes()); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// Deposit converts baseValue into encrypted units minted to the receiving
// account. The non-convertible remainder is credited back to the depositor's
// base balance; only the converted part joins the locked backing.
func (v *Vault) Deposit(depositor, to common.Address, baseValue *big.Int) (balance, minted ledger.Sealed, err error) {
	if v.Paused() {
		return ledger.Sealed{}, ledger.Sealed{}, ErrPaused
	}
	units, remainder, err := v.converter.ToUnits(baseValue)
	if err != nil {
		return ledger.Sealed{}, ledger.Sealed{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	balance, minted, err = v.ledger.Mint(to, units)
	if err != nil {
		return ledger.Sealed{}, ledger.Sealed{}, err
	}
	if err := v.creditBase(depositor, remainder); err != nil {
		return ledger.Sealed{}, ledger.Sealed{}, err
	}
	locked := new(big.Int).Sub(baseValue, remainder)
	if err := v.setLockedBase(new(big.Int).Add(v.LockedBase(), locked)); err != nil {
		return ledger.Sealed{}, ledger.Sealed{}, err
	}
	log.Infow("deposit", "to", to.Hex(), "balanceHandle", balance.Handle.String())
	return balance, minted, nil
}

// ConfidentialTransfer moves the encrypted amount referenced by amountHandle
// from the caller to another account.
func (v *Vault) ConfidentialTransfer(caller, to common.Address, amountHandle ledger.Handle) (fromBalance, toBalance ledger.Sealed, err error) {
	if v.Paused() {
		return ledger.Sealed{}, ledger.Sealed{}, ErrPaused
	}
	if to == (common.Address{}) {
		return ledger.Sealed{}, ledger.Sealed{}, ErrZeroRecipient
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Transfer(caller, caller, to, amountHandle)
}

// AllowDecryption extends a persistent read capability over the account's
// current balance handle to spender.
func (v *Vault) AllowDecryption(account, spender common.Address) error {
	h, err := v.ledger.BalanceOf(account)
	if err != nil {
		return err
	}
	return v.ledger.Grant(account, h, spender, ledger.GrantPersistent)
}

// Withdraw burns the encrypted amount referenced by amountHandle from the
// caller's balance and parks a pending request for the oracle. The recipient
// is validated here, not at finalize: a request with a bad recipient must
// never enter the pipeline. Returns the request id.
func (v *Vault) Withdraw(caller, recipient common.Address, amountHandle ledger.Handle) (types.HexBytes, error) {
	if v.Paused() {
		return nil, ErrPaused
	}
	if recipient == (common.Address{}) {
		return nil, ErrZeroRecipient
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	ct, err := v.ledger.Ciphertext(caller, amountHandle)
	if err != nil {
		return nil, err
	}
	if _, _, err := v.ledger.Burn(caller, caller, amountHandle); err != nil {
		return nil, err
	}

	requestID := types.HexBytes(util.RandomBytes(requestIDSize))
	if err := v.store.SetPendingRequest(&storage.PendingRequest{
		ID:        requestID,
		Recipient: recipient,
		Handle:    types.HexBytes(amountHandle),
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("store pending request: %w", err)
	}
	if err := v.store.PushDecryptionJob(&storage.DecryptionJob{
		RequestID:  requestID,
		Ciphertext: ct.Serialize(),
	}); err != nil {
		return nil, fmt.Errorf("queue decryption job: %w", err)
	}
	log.Infow("withdrawal requested", "requestId", requestID.String(), "recipient", recipient.Hex())
	return requestID, nil
}

// Finalize consumes a pending request with the value revealed by the oracle.
// The order of checks is load-bearing:
//
//  1. A paused vault rejects the result, leaving the pending entry intact;
//     the oracle worker re-queues the job and retries after unpause.
//  2. Signature verification fails closed, leaving the pending entry intact
//     so a correct result can still arrive.
//  3. An unknown request id is a benign no-op: duplicate or stale callbacks
//     terminate here and can never double-pay.
//  4. The pending entry is deleted before any value moves.
//  5. The payout is clamped to the base currency actually held.
func (v *Vault) Finalize(requestID types.HexBytes, value uint64, signatures [][]byte) error {
	if v.Paused() {
		return ErrPaused
	}
	result := &oracle.Result{RequestID: requestID, Value: value, Signatures: signatures}
	if err := oracle.VerifyResult(result, v.signers, v.threshold); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignatures, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	req, err := v.store.PendingRequest(requestID)
	if err != nil {
		return ErrInvalidRequest
	}
	if err := v.store.DeletePendingRequest(requestID); err != nil {
		return fmt.Errorf("consume pending request: %w", err)
	}

	payout := v.converter.ToBase(value)
	held := v.LockedBase()
	if payout.Cmp(held) > 0 {
		payout = held
	}
	if err := v.creditBase(req.Recipient, payout); err != nil {
		return fmt.Errorf("credit recipient: %w", err)
	}
	remaining := new(big.Int).Sub(held, payout)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	if err := v.setLockedBase(remaining); err != nil {
		return err
	}
	if err := v.ledger.ReportBurned(value); err != nil {
		return err
	}
	log.Infow("withdrawal finalized", "requestId", requestID.String(), "recipient", req.Recipient.Hex())
	return nil
}

// PendingCiphertext loads the ciphertext of an outstanding request, for
// re-running a decryption round.
func (v *Vault) PendingCiphertext(requestID types.HexBytes) (*elgamal.Ciphertext, error) {
	req, err := v.store.PendingRequest(requestID)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	return v.ledger.Ciphertext(ledger.Self, ledger.Handle(req.Handle))
}
