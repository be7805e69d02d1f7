package tests

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/cipherfund/cipherfund/campaigns"
	"github.com/cipherfund/cipherfund/crypto/ecc/curves"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/oracle"
	"github.com/cipherfund/cipherfund/service"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/util"
	"github.com/cipherfund/cipherfund/vault"
)

const (
	testRate      = 100 // base currency per ledger unit
	testChainID   = 1337
	testMaxValue  = 1 << 16
	oracleTick    = 25 * time.Millisecond
	finalizeAfter = 5 * time.Second
)

var testOwner = common.HexToAddress("0x00000000000000000000000000000000000000ff")

// testNode is a complete in-process node: ledger, vault, campaign manager,
// the HTTP API server and the oracle worker, all over a single database.
type testNode struct {
	ledger    *ledger.Ledger
	vault     *vault.Vault
	campaigns *campaigns.Manager
	storage   *storage.Storage
	committee *oracle.Committee
	port      int
}

// setupNode wires and starts a full node on a random port. The services are
// stopped when the test finishes.
func setupNode(t *testing.T) *testNode {
	t.Helper()
	c := qt.New(t)

	curve := curves.New(curves.CurveTypeBabyJubJub)
	committee, err := oracle.NewCommittee(5, 3, curve)
	c.Assert(err, qt.IsNil)

	database := metadb.NewTest(t)
	l, err := ledger.New(database, curve, committee.PublicKey())
	c.Assert(err, qt.IsNil)
	store := storage.New(database)
	conv, err := ledger.NewConverter(big.NewInt(testRate))
	c.Assert(err, qt.IsNil)
	v, err := vault.New(database, l, store, conv, testOwner, committee.Addresses(), committee.Threshold)
	c.Assert(err, qt.IsNil)
	manager := campaigns.New(l, v, store, testChainID)

	ctx := context.Background()
	port := util.RandomInt(40000, 60000)
	apiSrv := service.NewAPI(l, v, manager, "127.0.0.1", port)
	c.Assert(apiSrv.Start(ctx), qt.IsNil)
	oracleSrv := service.NewOracle(committee, store, v, l, oracleTick)
	c.Assert(oracleSrv.Start(ctx), qt.IsNil)
	t.Cleanup(func() {
		oracleSrv.Stop()
		apiSrv.Stop()
	})

	// Wait for the HTTP server to start
	time.Sleep(500 * time.Millisecond)
	return &testNode{
		ledger:    l,
		vault:     v,
		campaigns: manager,
		storage:   store,
		committee: committee,
		port:      port,
	}
}

// decryptAs opens a handle as the given principal, which must hold a
// capability over it.
func (n *testNode) decryptAs(t *testing.T, principal common.Address, h types.HexBytes) uint64 {
	t.Helper()
	ct, err := n.ledger.Ciphertext(principal, ledger.Handle(h))
	qt.Assert(t, err, qt.IsNil)
	value, err := n.committee.Decrypt(ct, testMaxValue)
	qt.Assert(t, err, qt.IsNil)
	return value
}
