package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/cipherfund/cipherfund/campaigns"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/vault"
)

// writeCampaignError maps campaign-layer errors onto the API error registry.
func writeCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ErrCampaignNotFound.Write(w)
	case errors.Is(err, campaigns.ErrNotOrganizer):
		ErrNotOrganizer.WithErr(err).Write(w)
	case errors.Is(err, campaigns.ErrCampaignInactive):
		ErrCampaignInactive.Write(w)
	case errors.Is(err, campaigns.ErrDeadlinePassed):
		ErrDeadlinePassed.Write(w)
	case errors.Is(err, campaigns.ErrInvalidCampaign):
		ErrMalformedBody.WithErr(err).Write(w)
	case errors.Is(err, vault.ErrPaused):
		ErrVaultPaused.Write(w)
	case errors.Is(err, vault.ErrZeroRecipient):
		ErrZeroRecipient.Write(w)
	case errors.Is(err, ledger.ErrDustDeposit), errors.Is(err, ledger.ErrAmountTooLarge), errors.Is(err, ledger.ErrInvalidAmount):
		ErrInvalidAmount.WithErr(err).Write(w)
	case errors.Is(err, ledger.ErrNotAllowed):
		ErrNotAllowed.Write(w)
	case errors.Is(err, ledger.ErrUnknownAccount):
		ErrAccountNotFound.Write(w)
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}

// createCampaign creates a new donation campaign
// POST /campaigns
func (a *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	req := &CreateCampaignRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	var target *big.Int
	if req.Target != nil {
		target = req.Target.MathBigInt()
	}
	campaign, err := a.campaigns.Create(req.Organizer, req.Title, req.Description, req.Category,
		target, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, campaign)
}

// listCampaigns returns the active campaigns
// GET /campaigns
func (a *API) listCampaigns(w http.ResponseWriter, r *http.Request) {
	active, err := a.campaigns.ActiveCampaigns()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &CampaignList{Campaigns: active})
}

// campaign returns a single campaign
// GET /campaigns/{campaignId}
func (a *API) campaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	campaign, err := a.campaigns.Campaign(id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, campaign)
}

// donate converts and donates base currency to a campaign
// POST /campaigns/{campaignId}/donations
func (a *API) donate(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	req := &DonateRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Amount == nil {
		ErrInvalidAmount.With("missing amount").Write(w)
		return
	}
	campaign, err := a.campaigns.Donate(id, req.Donor, req.Amount.MathBigInt(), req.Anonymous)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, campaign)
}

// donations returns the public donation records of a campaign
// GET /campaigns/{campaignId}/donations
func (a *API) donations(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	if _, err := a.campaigns.Campaign(id); err != nil {
		writeCampaignError(w, err)
		return
	}
	records, err := a.campaigns.Donations(id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &DonationList{Donations: records})
}

// completeCampaign marks a campaign as completed
// POST /campaigns/{campaignId}/complete
func (a *API) completeCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	req := &CallerRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	campaign, err := a.campaigns.Complete(id, req.Caller)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, campaign)
}

// decryptGrant extends read capabilities over the campaign aggregates to the
// organizer
// POST /campaigns/{campaignId}/decrypt-grant
func (a *API) decryptGrant(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	req := &CallerRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := a.campaigns.AllowOrganizerDecrypt(id, req.Caller); err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteOK(w)
}

// withdrawCampaignFunds starts an oracle-mediated withdrawal of the
// organizer's funds
// POST /campaigns/{campaignId}/withdraw
func (a *API) withdrawCampaignFunds(w http.ResponseWriter, r *http.Request) {
	id, err := urlCampaignID(r)
	if err != nil {
		ErrMalformedCampaignID.Write(w)
		return
	}
	req := &WithdrawRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	requestID, err := a.campaigns.WithdrawFunds(id, req.Caller, req.Recipient)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, &WithdrawResponse{RequestID: requestID})
}
