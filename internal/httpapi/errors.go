// ABOUTME: Maps internal apperr.Kind to HTTP status and a uniform JSON error envelope (spec.md section 7)
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/harper/sekha/internal/apperr"
)

type errorEnvelope struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func internalErr(msg string) *apperr.Error      { return apperr.New(apperr.KindInternal, msg) }
func unauthorizedErr(msg string) *apperr.Error  { return apperr.Unauthorized(msg) }
func rateLimitedErr(msg string) *apperr.Error   { return apperr.RateLimited(msg) }

func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindConsistency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.KindInternal, "unexpected error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(ae.Kind))
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: ae.Message, Kind: ae.Kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}
