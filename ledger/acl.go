package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// GrantScope qualifies how long a capability over a handle remains valid.
type GrantScope uint8

const (
	// GrantPersistent capabilities survive across calls until the handle is
	// superseded. They are never implicitly revoked.
	GrantPersistent GrantScope = iota + 1
	// GrantTransient capabilities are valid only for the duration of the
	// external call that created them and are wiped at the call boundary.
	GrantTransient
)

func (s GrantScope) String() string {
	switch s {
	case GrantPersistent:
		return "persistent"
	case GrantTransient:
		return "transient"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// acl tracks which principals may use each ciphertext handle. Grants are
// additive only; a handle with no grants is unusable by everyone, so the
// failure mode of a missed grant is an inaccessible ciphertext, never an
// accidentally public one. Persistent grants live in the database, transient
// grants in memory until the end of the originating call.
type acl struct {
	db db.Database

	mu        sync.Mutex
	transient map[string]map[common.Address]bool
}

var grantPrefix = []byte("a/")

func newACL(database db.Database) *acl {
	return &acl{
		db:        database,
		transient: make(map[string]map[common.Address]bool),
	}
}

func grantKey(h Handle, principal common.Address) []byte {
	return append(h.Bytes(), principal.Bytes()...)
}

// grant adds a capability for principal over handle. Adding a grant never
// removes existing grants for other principals.
func (a *acl) grant(h Handle, principal common.Address, scope GrantScope) error {
	switch scope {
	case GrantTransient:
		a.mu.Lock()
		defer a.mu.Unlock()
		key := h.String()
		if a.transient[key] == nil {
			a.transient[key] = make(map[common.Address]bool)
		}
		a.transient[key][principal] = true
		return nil
	case GrantPersistent:
		wTx := prefixeddb.NewPrefixedWriteTx(a.db.WriteTx(), grantPrefix)
		if err := wTx.Set(grantKey(h, principal), []byte{byte(scope)}); err != nil {
			wTx.Discard()
			return fmt.Errorf("store grant: %w", err)
		}
		return wTx.Commit()
	default:
		return fmt.Errorf("invalid grant scope %d", scope)
	}
}

// allowed reports whether principal holds a live capability over handle.
func (a *acl) allowed(h Handle, principal common.Address) bool {
	a.mu.Lock()
	if principals, ok := a.transient[h.String()]; ok && principals[principal] {
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	rd := prefixeddb.NewPrefixedReader(a.db, grantPrefix)
	_, err := rd.Get(grantKey(h, principal))
	return err == nil
}

// endCall wipes every transient grant. It must run at each external call
// boundary.
func (a *acl) endCall() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transient = make(map[string]map[common.Address]bool)
}
