package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err through the error taxonomy and writes it as a JSON
// body, matching the sanitization errs.ToFrame already applies to SSE error
// frames (spec §7).
func writeError(w http.ResponseWriter, err error) {
	frame := errs.ToFrame(err)
	writeJSON(w, statusForKind(frame.Code), frame)
}

func statusForKind(code string) int {
	switch code {
	case string(errs.KindInvalidInput), string(errs.KindBatchLimitExceeded):
		return http.StatusBadRequest
	case string(errs.KindUnknownTool), string(errs.KindUnknownOrResolved):
		return http.StatusNotFound
	case string(errs.KindUserCancelled):
		return http.StatusConflict
	case string(errs.KindRateLimitedUpstream):
		return http.StatusTooManyRequests
	case string(errs.KindERPPermanent):
		return http.StatusBadGateway
	case string(errs.KindERPTransient), string(errs.KindMaxIterationsExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, errs.ErrInvalidInput)
		return false
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, errs.ErrInvalidInput)
		return false
	}
	return true
}
