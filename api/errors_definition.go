//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 40010, 40011 and 40013 exist, 40012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status,
// for example the fact that Code 40007 returns HTTP Status 404 Not Found is just a coincidence
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedAddress    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMalformedCampaignID = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed campaign ID")}
	ErrCampaignNotFound    = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("campaign not found")}
	ErrAccountNotFound     = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("account not found")}
	ErrNotOrganizer        = Error{Code: 40009, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("caller is not the organizer")}
	ErrNotOwner            = Error{Code: 40010, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("caller is not the owner")}
	ErrInvalidAmount       = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid amount")}
	ErrCampaignInactive    = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("campaign is not active")}
	ErrDeadlinePassed      = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("campaign deadline has passed")}
	ErrVaultPaused         = Error{Code: 40014, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("operations paused")}
	ErrNotAllowed          = Error{Code: 40015, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("no capability over handle")}
	ErrZeroRecipient       = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("recipient is the zero address")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
