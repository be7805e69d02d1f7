package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/vault"
)

// deposit converts base currency into encrypted units for an account
// POST /accounts/{address}/deposits
func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.Write(w)
		return
	}
	req := &DepositRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Amount == nil {
		ErrInvalidAmount.With("missing amount").Write(w)
		return
	}
	balance, minted, err := a.vault.Deposit(addr, addr, req.Amount.MathBigInt())
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httpWriteJSON(w, &DepositResponse{
		BalanceHandle: types.HexBytes(balance.Handle),
		AmountHandle:  types.HexBytes(minted.Handle),
	})
}

// balance returns the encrypted balance handle of an account, never a value
// GET /accounts/{address}/balance
func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := urlAddress(r)
	if err != nil {
		ErrMalformedAddress.Write(w)
		return
	}
	handle, err := a.ledger.BalanceOf(addr)
	if err != nil {
		ErrAccountNotFound.Write(w)
		return
	}
	httpWriteJSON(w, &BalanceResponse{Address: addr, Handle: types.HexBytes(handle)})
}

// rate returns the fixed conversion rate
// GET /rate
func (a *API) rate(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &RateResponse{Rate: (*types.BigInt)(a.vault.Converter().Rate)})
}

// pause blocks every mutating operation. Owner only.
// POST /admin/pause
func (a *API) pause(w http.ResponseWriter, r *http.Request) {
	a.setPaused(w, r, true)
}

// unpause lifts the pause. Owner only.
// POST /admin/unpause
func (a *API) unpause(w http.ResponseWriter, r *http.Request) {
	a.setPaused(w, r, false)
}

func (a *API) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	req := &CallerRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	var err error
	if paused {
		err = a.vault.Pause(req.Caller)
	} else {
		err = a.vault.Unpause(req.Caller)
	}
	if err != nil {
		if errors.Is(err, vault.ErrNotOwner) {
			ErrNotOwner.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}
