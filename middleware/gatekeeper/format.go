// utilitários de formatação para headers e respostas do gatekeeper.

package gatekeeper

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatUnix(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

var statusByCode = map[domain.Code]int{
	domain.CodeUnauthorized:      http.StatusUnauthorized,
	domain.CodeForbidden:         http.StatusForbidden,
	domain.CodeRateLimitExceeded: http.StatusTooManyRequests,
	domain.CodeInternalError:     http.StatusInternalServerError,
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
}

func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", formatUnix(dec.ResetAt))
	}
	if dec.Window > 0 {
		h.Set("X-RateLimit-Window", formatInt(int(dec.Window/time.Second)))
	}
}

func writeRejection(w http.ResponseWriter, out domain.Outcome) {
	rej := out.Rejection
	status, ok := statusByCode[rej.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Request-ID", rej.RequestID.String())
	if rej.Code == domain.CodeRateLimitExceeded && out.Rate != nil {
		setRateLimitHeaders(h, *out.Rate)
		h.Set("Retry-After", formatInt(out.Rate.RetryAfterSeconds()))
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rej)
}
