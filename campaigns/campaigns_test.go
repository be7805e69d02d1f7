package campaigns

import (
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
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/vault"
)

const (
	testMaxValue = 1 << 16
	testChainID  = 1337
	testRate     = 1_000_000 // base per unit
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	organizer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	donorA    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	donorB    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type testEnv struct {
	manager   *Manager
	ledger    *ledger.Ledger
	vault     *vault.Vault
	store     *storage.Storage
	committee *oracle.Committee
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c := qt.New(t)
	curve := curves.New(curves.CurveTypeBabyJubJub)

	committee, err := oracle.NewCommittee(3, 2, curve)
	c.Assert(err, qt.IsNil)

	database := metadb.NewTest(t)
	l, err := ledger.New(database, curve, committee.PublicKey())
	c.Assert(err, qt.IsNil)
	store := storage.New(database)
	conv, err := ledger.NewConverter(big.NewInt(testRate))
	c.Assert(err, qt.IsNil)
	v, err := vault.New(database, l, store, conv, owner, committee.Addresses(), committee.Threshold)
	c.Assert(err, qt.IsNil)

	return &testEnv{
		manager:   New(l, v, store, testChainID),
		ledger:    l,
		vault:     v,
		store:     store,
		committee: committee,
	}
}

func (e *testEnv) create(t *testing.T) *types.Campaign {
	t.Helper()
	campaign, err := e.manager.Create(organizer, "save the bees", "pollinators need help", "environment",
		big.NewInt(100), time.Hour)
	qt.Assert(t, err, qt.IsNil)
	return campaign
}

// decryptAs opens a handle as the given principal, which must hold a
// capability over it.
func (e *testEnv) decryptAs(t *testing.T, principal common.Address, h types.HexBytes) uint64 {
	t.Helper()
	ct, err := e.ledger.Ciphertext(principal, ledger.Handle(h))
	qt.Assert(t, err, qt.IsNil)
	value, err := e.committee.Decrypt(ct, testMaxValue)
	qt.Assert(t, err, qt.IsNil)
	return value
}

func TestCreate(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)

	campaign := e.create(t)
	c.Assert(campaign.Active, qt.IsTrue)
	c.Assert(campaign.Completed, qt.IsFalse)
	c.Assert(campaign.DonorCount, qt.Equals, uint64(0))
	c.Assert(len(campaign.TotalHandle), qt.Equals, ledger.HandleSize)
	c.Assert(len(campaign.CountHandle), qt.Equals, ledger.HandleSize)

	active, err := e.manager.ActiveCampaigns()
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.HasLen, 1)

	mine, err := e.manager.OrganizerCampaigns(organizer)
	c.Assert(err, qt.IsNil)
	c.Assert(mine, qt.HasLen, 1)

	// ids are unique per organizer
	second, err := e.manager.Create(organizer, "second", "", "", big.NewInt(1), time.Hour)
	c.Assert(err, qt.IsNil)
	c.Assert(second.ID.String(), qt.Not(qt.Equals), campaign.ID.String())
}

func TestCreateValidation(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)

	_, err := e.manager.Create(organizer, "", "", "", big.NewInt(1), time.Hour)
	c.Assert(err, qt.ErrorIs, ErrInvalidCampaign)
	_, err = e.manager.Create(organizer, "x", "", "", big.NewInt(0), time.Hour)
	c.Assert(err, qt.ErrorIs, ErrInvalidCampaign)
	_, err = e.manager.Create(organizer, "x", "", "", big.NewInt(1), 0)
	c.Assert(err, qt.ErrorIs, ErrInvalidCampaign)
}

func TestDonateAggregatesAndPrivacy(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)
	campaign := e.create(t)

	// one public donation of 1 unit, one anonymous donation of 2 units
	_, err := e.manager.Donate(campaign.ID, donorA, big.NewInt(1*testRate), false)
	c.Assert(err, qt.IsNil)
	updated, err := e.manager.Donate(campaign.ID, donorB, big.NewInt(2*testRate), true)
	c.Assert(err, qt.IsNil)

	// both donations count, anonymous or not
	c.Assert(updated.DonorCount, qt.Equals, uint64(2))

	// the organizer holds the donated units
	orgBalance, err := e.ledger.BalanceOf(organizer)
	c.Assert(err, qt.IsNil)
	c.Assert(e.decryptAs(t, organizer, types.HexBytes(orgBalance)), qt.Equals, uint64(3))

	// aggregates are closed until the organizer is granted access
	_, err = e.ledger.Ciphertext(organizer, ledger.Handle(updated.TotalHandle))
	c.Assert(err, qt.ErrorIs, ledger.ErrNotAllowed)

	c.Assert(e.manager.AllowOrganizerDecrypt(campaign.ID, organizer), qt.IsNil)
	c.Assert(e.decryptAs(t, organizer, updated.TotalHandle), qt.Equals, uint64(3))
	c.Assert(e.decryptAs(t, organizer, updated.CountHandle), qt.Equals, uint64(2))

	// records expose who donated publicly, never how much, and the anonymous
	// donor is zeroed out
	records, err := e.manager.Donations(campaign.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 2)
	c.Assert(records[0].Donor, qt.Equals, donorA)
	c.Assert(records[1].Donor, qt.Equals, common.Address{})
	c.Assert(records[1].Anonymous, qt.IsTrue)

	// donor index only lists the public donor
	fromA, err := e.manager.DonorCampaigns(donorA)
	c.Assert(err, qt.IsNil)
	c.Assert(fromA, qt.HasLen, 1)
	fromB, err := e.manager.DonorCampaigns(donorB)
	c.Assert(err, qt.IsNil)
	c.Assert(fromB, qt.HasLen, 0)
}

func TestDonateRefundsRemainder(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)
	campaign := e.create(t)

	_, err := e.manager.Donate(campaign.ID, donorA, big.NewInt(1*testRate+42), false)
	c.Assert(err, qt.IsNil)
	c.Assert(e.vault.BaseBalance(donorA).Int64(), qt.Equals, int64(42))
	c.Assert(e.vault.LockedBase().Int64(), qt.Equals, int64(testRate))
}

func TestDonateRejections(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)
	campaign := e.create(t)

	// dust donation
	_, err := e.manager.Donate(campaign.ID, donorA, big.NewInt(5), false)
	c.Assert(err, qt.ErrorIs, ledger.ErrDustDeposit)

	// unknown campaign
	_, err = e.manager.Donate(types.HexBytes{0xde, 0xad}, donorA, big.NewInt(testRate), false)
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)

	// paused vault blocks donations
	c.Assert(e.vault.Pause(owner), qt.IsNil)
	_, err = e.manager.Donate(campaign.ID, donorA, big.NewInt(testRate), false)
	c.Assert(err, qt.ErrorIs, vault.ErrPaused)
	c.Assert(e.vault.Unpause(owner), qt.IsNil)

	// completed campaign rejects donations
	_, err = e.manager.Complete(campaign.ID, organizer)
	c.Assert(err, qt.IsNil)
	_, err = e.manager.Donate(campaign.ID, donorA, big.NewInt(testRate), false)
	c.Assert(err, qt.ErrorIs, ErrCampaignInactive)
}

func TestDonatePastDeadline(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)

	campaign, err := e.manager.Create(organizer, "short lived", "", "", big.NewInt(1), time.Millisecond)
	c.Assert(err, qt.IsNil)
	time.Sleep(5 * time.Millisecond)

	_, err = e.manager.Donate(campaign.ID, donorA, big.NewInt(testRate), false)
	c.Assert(err, qt.ErrorIs, ErrDeadlinePassed)
}

func TestComplete(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)

	first := e.create(t)
	second, err := e.manager.Create(organizer, "second", "", "", big.NewInt(1), time.Hour)
	c.Assert(err, qt.IsNil)
	third, err := e.manager.Create(organizer, "third", "", "", big.NewInt(1), time.Hour)
	c.Assert(err, qt.IsNil)

	// not the organizer
	_, err = e.manager.Complete(first.ID, donorA)
	c.Assert(err, qt.ErrorIs, ErrNotOrganizer)

	done, err := e.manager.Complete(first.ID, organizer)
	c.Assert(err, qt.IsNil)
	c.Assert(done.Active, qt.IsFalse)
	c.Assert(done.Completed, qt.IsTrue)

	// the active set stays consistent after the swap-and-pop
	active, err := e.manager.ActiveCampaigns()
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.HasLen, 2)
	c.Assert(active[0].ID.String(), qt.Equals, third.ID.String())
	c.Assert(active[1].ID.String(), qt.Equals, second.ID.String())

	// completing twice fails with no state change
	_, err = e.manager.Complete(first.ID, organizer)
	c.Assert(err, qt.ErrorIs, ErrCampaignInactive)
	active, err = e.manager.ActiveCampaigns()
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.HasLen, 2)
}

func TestAllowOrganizerDecryptIsOrganizerOnly(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)
	campaign := e.create(t)

	err := e.manager.AllowOrganizerDecrypt(campaign.ID, donorA)
	c.Assert(err, qt.ErrorIs, ErrNotOrganizer)
}

func TestWithdrawFunds(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(t)
	campaign := e.create(t)

	_, err := e.manager.Donate(campaign.ID, donorA, big.NewInt(3*testRate), false)
	c.Assert(err, qt.IsNil)

	recipient := common.HexToAddress("0x4444444444444444444444444444444444444444")
	_, err = e.manager.WithdrawFunds(campaign.ID, donorA, recipient)
	c.Assert(err, qt.ErrorIs, ErrNotOrganizer)

	requestID, err := e.manager.WithdrawFunds(campaign.ID, organizer, recipient)
	c.Assert(err, qt.IsNil)

	// run the oracle round and finalize
	job, key, err := e.store.NextDecryptionJob()
	c.Assert(err, qt.IsNil)
	ct, err := e.vault.PendingCiphertext(requestID)
	c.Assert(err, qt.IsNil)
	result, err := e.committee.Attest(job.RequestID, ct, testMaxValue)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Value, qt.Equals, uint64(3))
	c.Assert(e.vault.Finalize(requestID, result.Value, result.Signatures), qt.IsNil)
	c.Assert(e.store.MarkDecryptionJobDone(key), qt.IsNil)

	c.Assert(e.vault.BaseBalance(recipient).Int64(), qt.Equals, int64(3*testRate))
}
