package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/util"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// urlCampaignID parses the campaign id URL parameter.
func urlCampaignID(r *http.Request) (types.HexBytes, error) {
	raw := chi.URLParam(r, CampaignURLParam)
	data, err := hex.DecodeString(util.TrimHex(raw))
	if err != nil || len(data) == 0 {
		return nil, ErrMalformedCampaignID
	}
	return data, nil
}

// urlAddress parses the address URL parameter.
func urlAddress(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, AccountURLParam)
	if !common.IsHexAddress(raw) {
		return common.Address{}, ErrMalformedAddress
	}
	return common.HexToAddress(raw), nil
}
