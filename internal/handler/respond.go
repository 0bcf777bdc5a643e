package handler

import (
	"encoding/json"
	"net/http"

	"bazaar-economy-api/internal/model"
)

// statusFor maps failed message keys to HTTP status codes. Successful
// results are always 200: the interesting part of the contract is the
// message key, not the status line.
func statusFor(key string) int {
	switch key {
	case model.MsgOfferNotFound, model.MsgListingNotFound:
		return http.StatusNotFound
	case model.MsgTryAgain:
		return http.StatusConflict
	case model.MsgCancelForbidden, model.MsgOwnListing:
		return http.StatusForbidden
	case model.MsgInternalError:
		return http.StatusInternalServerError
	case model.MsgPlayerOffline, model.MsgCurrencyUnsupported:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeResult serializes an economy result. The body shape is the
// EconomyResult itself so clients key off message_key uniformly.
func writeResult(w http.ResponseWriter, res model.EconomyResult) {
	code := http.StatusOK
	if !res.Success {
		code = statusFor(res.MessageKey)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(res)
}
