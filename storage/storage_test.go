package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/cipherfund/cipherfund/types"
)

func testCampaign(id byte, organizer common.Address) *types.Campaign {
	return &types.Campaign{
		ID:        types.HexBytes{id},
		Organizer: organizer,
		Title:     "campaign",
		Target:    new(types.BigInt).SetUint64(1000),
		Deadline:  time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
		Active:    true,
	}
}

func TestCampaignStore(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))
	org := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	camp := testCampaign(1, org)
	c.Assert(s.SetCampaign(camp), qt.IsNil)

	got, err := s.Campaign(camp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, camp.Title)
	c.Assert(got.Organizer, qt.Equals, org)
	c.Assert(got.Target.String(), qt.Equals, "1000")

	_, err = s.Campaign(types.HexBytes{0xff})
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	ids, err := s.ListCampaignIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)
}

func TestActiveSetSwapAndPop(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))

	a := types.HexBytes{0x0a}
	b := types.HexBytes{0x0b}
	d := types.HexBytes{0x0d}
	for _, id := range []types.HexBytes{a, b, d} {
		c.Assert(s.ActiveAppend(id), qt.IsNil)
	}

	ids, err := s.ActiveIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 3)

	// removing the first element swaps the last one into its slot
	c.Assert(s.ActiveRemove(a), qt.IsNil)
	ids, err = s.ActiveIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)
	c.Assert(ids[0].String(), qt.Equals, d.String())
	c.Assert(ids[1].String(), qt.Equals, b.String())

	// the moved element keeps a consistent index entry for its own removal
	c.Assert(s.ActiveRemove(d), qt.IsNil)
	ids, err = s.ActiveIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)
	c.Assert(ids[0].String(), qt.Equals, b.String())

	// double removal fails with no state change
	c.Assert(s.ActiveRemove(a), qt.ErrorIs, ErrNotFound)
	ids, err = s.ActiveIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)

	c.Assert(s.ActiveRemove(b), qt.IsNil)
	ids, err = s.ActiveIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 0)
}

func TestOrganizerAndDonorIndexes(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))
	org := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	donor := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	c.Assert(s.AppendOrganizerCampaign(org, types.HexBytes{1}), qt.IsNil)
	c.Assert(s.AppendOrganizerCampaign(org, types.HexBytes{2}), qt.IsNil)
	ids, err := s.OrganizerCampaigns(org)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)

	// repeated donations to the same campaign are reported once
	c.Assert(s.AppendDonorCampaign(donor, types.HexBytes{1}), qt.IsNil)
	c.Assert(s.AppendDonorCampaign(donor, types.HexBytes{1}), qt.IsNil)
	c.Assert(s.AppendDonorCampaign(donor, types.HexBytes{2}), qt.IsNil)
	ids, err = s.DonorCampaigns(donor)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)

	empty, err := s.DonorCampaigns(org)
	c.Assert(err, qt.IsNil)
	c.Assert(empty, qt.HasLen, 0)
}

func TestDonationRecords(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))
	campaignID := types.HexBytes{0x05}
	donor := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	c.Assert(s.AppendDonation(&types.DonationRecord{
		CampaignID: campaignID,
		Donor:      donor,
		Timestamp:  time.Now().Truncate(time.Second).UTC(),
	}), qt.IsNil)
	c.Assert(s.AppendDonation(&types.DonationRecord{
		CampaignID: campaignID,
		Anonymous:  true,
		Timestamp:  time.Now().Truncate(time.Second).UTC(),
	}), qt.IsNil)

	recs, err := s.Donations(campaignID)
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 2)
	c.Assert(recs[0].Donor, qt.Equals, donor)
	c.Assert(recs[1].Anonymous, qt.IsTrue)
	c.Assert(recs[1].Donor, qt.Equals, common.Address{})
}

func TestPendingRequestLifecycle(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))

	req := &PendingRequest{
		ID:        types.HexBytes("req-1"),
		Recipient: common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Handle:    types.HexBytes{0x42},
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
	c.Assert(s.SetPendingRequest(req), qt.IsNil)

	got, err := s.PendingRequest(req.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Recipient, qt.Equals, req.Recipient)

	c.Assert(s.DeletePendingRequest(req.ID), qt.IsNil)
	_, err = s.PendingRequest(req.ID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestDecryptionJobQueue(t *testing.T) {
	c := qt.New(t)
	s := New(metadb.NewTest(t))

	_, _, err := s.NextDecryptionJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	c.Assert(s.PushDecryptionJob(&DecryptionJob{
		RequestID:  types.HexBytes("req-1"),
		Ciphertext: []byte{1, 2, 3},
	}), qt.IsNil)

	job, key, err := s.NextDecryptionJob()
	c.Assert(err, qt.IsNil)
	c.Assert(string(job.RequestID), qt.Equals, "req-1")

	// the reservation hides the job from other workers
	_, _, err = s.NextDecryptionJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	// releasing makes it available again
	c.Assert(s.ReleaseDecryptionJob(key), qt.IsNil)
	job2, key2, err := s.NextDecryptionJob()
	c.Assert(err, qt.IsNil)
	c.Assert(string(job2.RequestID), qt.Equals, "req-1")

	// done removes it for good
	c.Assert(s.MarkDecryptionJobDone(key2), qt.IsNil)
	_, _, err = s.NextDecryptionJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)
}
