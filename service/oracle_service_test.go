package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/cipherfund/cipherfund/crypto/ecc/curves"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/oracle"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/vault"
)

func TestOracleServiceFinalizesWithdrawals(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := oracle.NewCommittee(3, 2, curve)
	c.Assert(err, qt.IsNil)

	database := metadb.NewTest(t)
	l, err := ledger.New(database, curve, committee.PublicKey())
	c.Assert(err, qt.IsNil)
	store := storage.New(database)
	conv, err := ledger.NewConverter(big.NewInt(100))
	c.Assert(err, qt.IsNil)

	owner := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")

	v, err := vault.New(database, l, store, conv, owner, committee.Addresses(), committee.Threshold)
	c.Assert(err, qt.IsNil)

	_, minted, err := v.Deposit(alice, alice, big.NewInt(500))
	c.Assert(err, qt.IsNil)
	requestID, err := v.Withdraw(alice, recipient, minted.Handle)
	c.Assert(err, qt.IsNil)

	svc := NewOracle(committee, store, v, l, 10*time.Millisecond)
	ctx := context.Background()
	c.Assert(svc.Start(ctx), qt.IsNil)
	defer svc.Stop()

	// starting twice is an error
	c.Assert(svc.Start(ctx), qt.ErrorMatches, "service already running")

	// wait for the worker to pick up and finalize the request
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v.BaseBalance(recipient).Sign() > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.Assert(v.BaseBalance(recipient).Int64(), qt.Equals, int64(500))

	// the pending request is consumed and the queue is drained
	_, err = store.PendingRequest(requestID)
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)
	_, _, err = store.NextDecryptionJob()
	c.Assert(err, qt.ErrorIs, storage.ErrNoMoreElements)
}
