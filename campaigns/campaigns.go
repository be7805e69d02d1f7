// Package campaigns implements donation campaigns on top of the encrypted
// ledger: each campaign accumulates an encrypted donation total and an
// encrypted donation count that only the organizer can be allowed to decrypt.
// What is public: campaign metadata, the number of distinct donation events,
// and who donated (unless the donation was anonymous). What is not: any
// amount.
package campaigns

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/vault"
)

var (
	ErrNotOrganizer     = errors.New("caller is not the campaign organizer")
	ErrCampaignInactive = errors.New("campaign is not active")
	ErrDeadlinePassed   = errors.New("campaign deadline has passed")
	ErrInvalidCampaign  = errors.New("invalid campaign parameters")
)

// Manager coordinates campaign state across storage, the ledger and the
// vault.
type Manager struct {
	ledger  *ledger.Ledger
	vault   *vault.Vault
	store   *storage.Storage
	chainID uint32

	mu sync.Mutex
}

// New creates a campaign Manager. The chain id namespaces campaign ids.
func New(l *ledger.Ledger, v *vault.Vault, store *storage.Storage, chainID uint32) *Manager {
	return &Manager{ledger: l, vault: v, store: store, chainID: chainID}
}

// Create registers a new campaign for organizer and seeds its encrypted
// aggregates at zero. The campaign starts active and joins the active set.
func (m *Manager) Create(organizer common.Address, title, description, category string,
	target *big.Int, duration time.Duration,
) (*types.Campaign, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidCampaign)
	}
	if target == nil || target.Sign() <= 0 {
		return nil, fmt.Errorf("%w: target must be positive", ErrInvalidCampaign)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidCampaign)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce, err := m.store.NextCampaignNonce(organizer)
	if err != nil {
		return nil, err
	}
	cid := types.CampaignID{Organizer: organizer, Nonce: nonce, ChainID: m.chainID}
	id := types.HexBytes(cid.Marshal())

	total, err := m.ledger.SealZero()
	if err != nil {
		return nil, fmt.Errorf("seed encrypted total: %w", err)
	}
	count, err := m.ledger.SealZero()
	if err != nil {
		return nil, fmt.Errorf("seed encrypted count: %w", err)
	}

	now := time.Now()
	campaign := &types.Campaign{
		ID:          id,
		Organizer:   organizer,
		Title:       title,
		Description: description,
		Category:    category,
		Target:      (*types.BigInt)(new(big.Int).Set(target)),
		Deadline:    now.Add(duration),
		CreatedAt:   now,
		TotalHandle: types.HexBytes(total.Handle),
		CountHandle: types.HexBytes(count.Handle),
		Active:      true,
	}
	if err := m.store.SetCampaign(campaign); err != nil {
		return nil, err
	}
	if err := m.store.ActiveAppend(id); err != nil {
		return nil, err
	}
	if err := m.store.AppendOrganizerCampaign(organizer, id); err != nil {
		return nil, err
	}
	log.Infow("campaign created", "id", id.String(), "organizer", organizer.Hex(), "title", title)
	return campaign, nil
}

// Donate converts the donor's base value into encrypted units, moves them to
// the organizer and folds the encrypted amount into the campaign aggregates.
// The non-convertible remainder is refunded through the vault. Anonymous
// donations zero out the donor in the public record and skip donor-indexed
// bookkeeping entirely.
func (m *Manager) Donate(campaignID types.HexBytes, donor common.Address, baseValue *big.Int, anonymous bool) (*types.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.ledger.EndCall()

	campaign, err := m.store.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Active || campaign.Completed {
		return nil, ErrCampaignInactive
	}
	if time.Now().After(campaign.Deadline) {
		return nil, ErrDeadlinePassed
	}

	_, minted, err := m.vault.Deposit(donor, donor, baseValue)
	if err != nil {
		return nil, err
	}
	if _, _, err := m.vault.ConfidentialTransfer(donor, campaign.Organizer, minted.Handle); err != nil {
		return nil, err
	}

	// fold the encrypted amount into the total: the donor gets a transient
	// capability over the aggregate for exactly this call
	totalHandle := ledger.Handle(campaign.TotalHandle)
	if err := m.ledger.Grant(ledger.Self, totalHandle, donor, ledger.GrantTransient); err != nil {
		return nil, err
	}
	newTotal, err := m.ledger.Add(donor, totalHandle, minted.Handle)
	if err != nil {
		return nil, fmt.Errorf("update encrypted total: %w", err)
	}

	// same dance for the encrypted donation count, with an encrypted one
	one, err := m.ledger.EncryptValue(1)
	if err != nil {
		return nil, err
	}
	countHandle := ledger.Handle(campaign.CountHandle)
	if err := m.ledger.Grant(ledger.Self, countHandle, donor, ledger.GrantTransient); err != nil {
		return nil, err
	}
	if err := m.ledger.Grant(ledger.Self, one.Handle, donor, ledger.GrantTransient); err != nil {
		return nil, err
	}
	newCount, err := m.ledger.Add(donor, countHandle, one.Handle)
	if err != nil {
		return nil, fmt.Errorf("update encrypted count: %w", err)
	}

	campaign.TotalHandle = types.HexBytes(newTotal.Handle)
	campaign.CountHandle = types.HexBytes(newCount.Handle)
	campaign.DonorCount++
	if err := m.store.SetCampaign(campaign); err != nil {
		return nil, err
	}

	record := &types.DonationRecord{
		CampaignID: campaignID,
		Timestamp:  time.Now(),
		Anonymous:  anonymous,
	}
	if !anonymous {
		record.Donor = donor
		if err := m.store.AppendDonorCampaign(donor, campaignID); err != nil {
			return nil, err
		}
	}
	if err := m.store.AppendDonation(record); err != nil {
		return nil, err
	}
	log.Infow("donation recorded", "campaign", campaignID.String(), "anonymous", anonymous)
	return campaign, nil
}

// Complete marks a campaign as completed, removing it from the active set in
// constant time. Organizer only; completing twice fails with no state change.
func (m *Manager) Complete(campaignID types.HexBytes, caller common.Address) (*types.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	campaign, err := m.store.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	if caller != campaign.Organizer {
		return nil, ErrNotOrganizer
	}
	if !campaign.Active || campaign.Completed {
		return nil, ErrCampaignInactive
	}

	campaign.Active = false
	campaign.Completed = true
	if err := m.store.SetCampaign(campaign); err != nil {
		return nil, err
	}
	if err := m.store.ActiveRemove(campaignID); err != nil {
		return nil, err
	}
	log.Infow("campaign completed", "id", campaignID.String())
	return campaign, nil
}

// AllowOrganizerDecrypt extends persistent read capabilities over both
// encrypted aggregates to the organizer, so it can have them decrypted.
// Organizer only.
func (m *Manager) AllowOrganizerDecrypt(campaignID types.HexBytes, caller common.Address) error {
	campaign, err := m.store.Campaign(campaignID)
	if err != nil {
		return err
	}
	if caller != campaign.Organizer {
		return ErrNotOrganizer
	}
	if err := m.ledger.Grant(ledger.Self, ledger.Handle(campaign.TotalHandle), caller, ledger.GrantPersistent); err != nil {
		return err
	}
	return m.ledger.Grant(ledger.Self, ledger.Handle(campaign.CountHandle), caller, ledger.GrantPersistent)
}

// WithdrawFunds drives a vault withdrawal of the organizer's entire balance
// towards recipient. Organizer only. Returns the decryption request id.
func (m *Manager) WithdrawFunds(campaignID types.HexBytes, caller, recipient common.Address) (types.HexBytes, error) {
	campaign, err := m.store.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	if caller != campaign.Organizer {
		return nil, ErrNotOrganizer
	}
	balance, err := m.ledger.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	requestID, err := m.vault.Withdraw(caller, recipient, balance)
	if err != nil {
		return nil, err
	}
	log.Infow("campaign funds withdrawal requested",
		"campaign", campaignID.String(), "organizer", caller.Hex(), "requestId", requestID.String())
	return requestID, nil
}

// Campaign returns a campaign by id.
func (m *Manager) Campaign(id types.HexBytes) (*types.Campaign, error) {
	return m.store.Campaign(id)
}

// ActiveCampaigns returns the currently active campaigns in set order.
func (m *Manager) ActiveCampaigns() ([]*types.Campaign, error) {
	ids, err := m.store.ActiveIDs()
	if err != nil {
		return nil, err
	}
	return m.campaignsByIDs(ids)
}

// OrganizerCampaigns returns every campaign created by organizer.
func (m *Manager) OrganizerCampaigns(organizer common.Address) ([]*types.Campaign, error) {
	ids, err := m.store.OrganizerCampaigns(organizer)
	if err != nil {
		return nil, err
	}
	return m.campaignsByIDs(ids)
}

// DonorCampaigns returns the campaigns the donor has publicly donated to.
// Anonymous donations never show up here.
func (m *Manager) DonorCampaigns(donor common.Address) ([]*types.Campaign, error) {
	ids, err := m.store.DonorCampaigns(donor)
	if err != nil {
		return nil, err
	}
	return m.campaignsByIDs(ids)
}

// Donations returns the public donation records of a campaign. They carry no
// amounts.
func (m *Manager) Donations(campaignID types.HexBytes) ([]*types.DonationRecord, error) {
	return m.store.Donations(campaignID)
}

func (m *Manager) campaignsByIDs(ids []types.HexBytes) ([]*types.Campaign, error) {
	out := make([]*types.Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := m.store.Campaign(id)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}
