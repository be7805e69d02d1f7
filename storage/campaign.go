package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/cipherfund/cipherfund/types"
)

var activeLenKey = []byte("ca-len")

// NextCampaignNonce returns the next campaign nonce for an organizer. Nonces
// start at 0 and never repeat, so campaign ids are unique per organizer.
func (s *Storage) NextCampaignNonce(organizer common.Address) (uint64, error) {
	return s.nextSequence(append([]byte("camp-nonce-"), organizer.Bytes()...))
}

// SetCampaign stores a campaign artifact, keyed by its id.
func (s *Storage) SetCampaign(c *types.Campaign) error {
	if c == nil || len(c.ID) == 0 {
		return fmt.Errorf("nil or unkeyed campaign")
	}
	return s.setArtifact(campaignPrefix, c.ID, c)
}

// Campaign retrieves a campaign by id. Returns ErrNotFound if it does not
// exist.
func (s *Storage) Campaign(id types.HexBytes) (*types.Campaign, error) {
	c := &types.Campaign{}
	if err := s.getArtifact(campaignPrefix, id, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaignIDs returns the ids of every campaign ever created.
func (s *Storage) ListCampaignIDs() ([][]byte, error) {
	return s.listArtifacts(campaignPrefix)
}

func (s *Storage) activeLen() uint64 {
	rd := prefixeddb.NewPrefixedReader(s.db, countersPrefix)
	data, err := rd.Get(activeLenKey)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (s *Storage) setActiveLen(n uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), countersPrefix)
	if err := wTx.Set(activeLenKey, buf); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

func posKey(pos uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, pos)
	return buf
}

// ActiveAppend adds a campaign id at the end of the active set and records
// its position in the index map.
func (s *Storage) ActiveAppend(id types.HexBytes) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	n := s.activeLen()
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeSetPrefix)
	if err := wTx.Set(posKey(n), id); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	iTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeIndexPrefix)
	if err := iTx.Set(id, posKey(n)); err != nil {
		iTx.Discard()
		return err
	}
	if err := iTx.Commit(); err != nil {
		return err
	}
	return s.setActiveLen(n + 1)
}

// ActiveRemove removes a campaign id from the active set in constant time:
// the last element is swapped into the removed slot and the index map entry
// of the moved element is fixed up. Returns ErrNotFound if the id is not in
// the set.
func (s *Storage) ActiveRemove(id types.HexBytes) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	idxRd := prefixeddb.NewPrefixedReader(s.db, activeIndexPrefix)
	posData, err := idxRd.Get(id)
	if err != nil || len(posData) != 8 {
		return ErrNotFound
	}
	pos := binary.BigEndian.Uint64(posData)
	n := s.activeLen()
	if n == 0 || pos >= n {
		return ErrNotFound
	}
	last := n - 1

	setRd := prefixeddb.NewPrefixedReader(s.db, activeSetPrefix)
	if pos != last {
		movedID, err := setRd.Get(posKey(last))
		if err != nil {
			return fmt.Errorf("read last active slot: %w", err)
		}
		wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeSetPrefix)
		if err := wTx.Set(posKey(pos), movedID); err != nil {
			wTx.Discard()
			return err
		}
		if err := wTx.Commit(); err != nil {
			return err
		}
		iTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeIndexPrefix)
		if err := iTx.Set(movedID, posKey(pos)); err != nil {
			iTx.Discard()
			return err
		}
		if err := iTx.Commit(); err != nil {
			return err
		}
	}

	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeSetPrefix)
	if err := wTx.Delete(posKey(last)); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	iTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), activeIndexPrefix)
	if err := iTx.Delete(id); err != nil {
		iTx.Discard()
		return err
	}
	if err := iTx.Commit(); err != nil {
		return err
	}
	return s.setActiveLen(last)
}

// ActiveIDs returns the active campaign ids in set order.
func (s *Storage) ActiveIDs() ([]types.HexBytes, error) {
	s.globalLock.Lock()
	n := s.activeLen()
	s.globalLock.Unlock()

	rd := prefixeddb.NewPrefixedReader(s.db, activeSetPrefix)
	ids := make([]types.HexBytes, 0, n)
	for pos := uint64(0); pos < n; pos++ {
		id, err := rd.Get(posKey(pos))
		if err != nil {
			return nil, fmt.Errorf("active slot %d: %w", pos, err)
		}
		cp := make(types.HexBytes, len(id))
		copy(cp, id)
		ids = append(ids, cp)
	}
	return ids, nil
}

// AppendOrganizerCampaign records a campaign id in the organizer's index.
func (s *Storage) AppendOrganizerCampaign(organizer common.Address, id types.HexBytes) error {
	seq, err := s.nextSequence(append([]byte("org-"), organizer.Bytes()...))
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), organizerIndexPrefix)
	if err := wTx.Set(seqKey(organizer.Bytes(), seq), id); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// OrganizerCampaigns returns the ids of every campaign created by organizer,
// in creation order.
func (s *Storage) OrganizerCampaigns(organizer common.Address) ([]types.HexBytes, error) {
	return s.indexedIDs(organizerIndexPrefix, organizer.Bytes())
}

// AppendDonorCampaign records a campaign id in the donor's index. Anonymous
// donations must never reach this index; the campaign layer enforces it.
func (s *Storage) AppendDonorCampaign(donor common.Address, id types.HexBytes) error {
	seq, err := s.nextSequence(append([]byte("donor-"), donor.Bytes()...))
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), donorIndexPrefix)
	if err := wTx.Set(seqKey(donor.Bytes(), seq), id); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// DonorCampaigns returns the distinct campaign ids the donor has publicly
// donated to, in first-donation order.
func (s *Storage) DonorCampaigns(donor common.Address) ([]types.HexBytes, error) {
	ids, err := s.indexedIDs(donorIndexPrefix, donor.Bytes())
	if err != nil {
		return nil, err
	}
	var out []types.HexBytes
	for _, id := range ids {
		dup := false
		for _, seen := range out {
			if bytes.Equal(seen, id) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Storage) indexedIDs(prefix, owner []byte) ([]types.HexBytes, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	var ids []types.HexBytes
	if err := rd.Iterate(owner, func(_, v []byte) bool {
		id := make(types.HexBytes, len(v))
		copy(id, v)
		ids = append(ids, id)
		return true
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendDonation stores a donation record under the campaign it belongs to.
// Records carry no amounts, ever.
func (s *Storage) AppendDonation(rec *types.DonationRecord) error {
	seq, err := s.nextSequence(append([]byte("don-"), rec.CampaignID...))
	if err != nil {
		return err
	}
	return s.setArtifact(donationPrefix, seqKey(rec.CampaignID, seq), rec)
}

// Donations returns the donation records of a campaign in append order.
func (s *Storage) Donations(campaignID types.HexBytes) ([]*types.DonationRecord, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, donationPrefix)
	var recs []*types.DonationRecord
	var iterErr error
	if err := rd.Iterate(campaignID, func(_, v []byte) bool {
		rec := &types.DonationRecord{}
		if err := decodeArtifact(v, rec); err != nil {
			iterErr = fmt.Errorf("decode donation record: %w", err)
			return false
		}
		recs = append(recs, rec)
		return true
	}); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return recs, nil
}
