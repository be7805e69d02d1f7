package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// CampaignsEndpoint is the endpoint for creating and listing campaigns
	CampaignsEndpoint = "/campaigns"
	// CampaignEndpoint is the endpoint to get a single campaign
	CampaignURLParam = "campaignId"
	CampaignEndpoint = "/campaigns/{" + CampaignURLParam + "}"
	// DonationsEndpoint is the endpoint for donating to a campaign and for
	// listing its public donation records
	DonationsEndpoint = "/campaigns/{" + CampaignURLParam + "}/donations"
	// CompleteEndpoint is the endpoint for marking a campaign completed
	CompleteEndpoint = "/campaigns/{" + CampaignURLParam + "}/complete"
	// DecryptGrantEndpoint is the endpoint for granting the organizer read
	// access over the campaign's encrypted aggregates
	DecryptGrantEndpoint = "/campaigns/{" + CampaignURLParam + "}/decrypt-grant"
	// CampaignWithdrawEndpoint is the endpoint for withdrawing campaign funds
	CampaignWithdrawEndpoint = "/campaigns/{" + CampaignURLParam + "}/withdraw"
	// DepositsEndpoint is the endpoint for depositing base currency into an
	// account
	AccountURLParam  = "address"
	DepositsEndpoint = "/accounts/{" + AccountURLParam + "}/deposits"
	// BalanceEndpoint is the endpoint to get an account's encrypted balance
	// handle. It never returns a value.
	BalanceEndpoint = "/accounts/{" + AccountURLParam + "}/balance"
	// RateEndpoint is the endpoint to get the fixed conversion rate
	RateEndpoint = "/rate"
	// AdminPauseEndpoint and AdminUnpauseEndpoint gate every mutating
	// operation. Owner only.
	AdminPauseEndpoint   = "/admin/pause"
	AdminUnpauseEndpoint = "/admin/unpause"
)
