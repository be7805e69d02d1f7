package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherfund/cipherfund/types"
)

// CreateCampaignRequest is the body of POST /campaigns.
type CreateCampaignRequest struct {
	Organizer       common.Address `json:"organizer"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Target          *types.BigInt  `json:"target"`
	DurationSeconds uint64         `json:"durationSeconds"`
}

// DonateRequest is the body of POST /campaigns/{campaignId}/donations.
type DonateRequest struct {
	Donor     common.Address `json:"donor"`
	Amount    *types.BigInt  `json:"amount"`
	Anonymous bool           `json:"anonymous"`
}

// CallerRequest is the body of organizer-only operations.
type CallerRequest struct {
	Caller common.Address `json:"caller"`
}

// WithdrawRequest is the body of POST /campaigns/{campaignId}/withdraw.
type WithdrawRequest struct {
	Caller    common.Address `json:"caller"`
	Recipient common.Address `json:"recipient"`
}

// WithdrawResponse carries the id of the pending decryption request driving
// the withdrawal.
type WithdrawResponse struct {
	RequestID types.HexBytes `json:"requestId"`
}

// DepositRequest is the body of POST /accounts/{address}/deposits.
type DepositRequest struct {
	Amount *types.BigInt `json:"amount"`
}

// DepositResponse carries the handles produced by a deposit. No values.
type DepositResponse struct {
	BalanceHandle types.HexBytes `json:"balanceHandle"`
	AmountHandle  types.HexBytes `json:"amountHandle"`
}

// BalanceResponse carries an account's current encrypted balance handle.
type BalanceResponse struct {
	Address common.Address `json:"address"`
	Handle  types.HexBytes `json:"handle"`
}

// RateResponse carries the fixed conversion rate (base currency per ledger
// unit).
type RateResponse struct {
	Rate *types.BigInt `json:"rate"`
}

// CampaignList is the response of GET /campaigns.
type CampaignList struct {
	Campaigns []*types.Campaign `json:"campaigns"`
}

// DonationList is the response of GET /campaigns/{campaignId}/donations.
type DonationList struct {
	Donations []*types.DonationRecord `json:"donations"`
}
