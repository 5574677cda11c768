package domain

import (
	"time"

	"github.com/google/uuid"
)

// State é o estado do pipeline de uma requisição.
type State int

const (
	StateReceived State = iota
	StateAuthenticating
	StateNetworkChecking
	StateRateChecking
	StateAdmitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAuthenticating:
		return "authenticating"
	case StateNetworkChecking:
		return "network_checking"
	case StateRateChecking:
		return "rate_checking"
	case StateAdmitted:
		return "admitted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Code é o tipo de rejeição visível externamente.
type Code string

const (
	CodeUnauthorized      Code = "Unauthorized"
	CodeForbidden         Code = "Forbidden"
	CodeRateLimitExceeded Code = "RateLimitExceeded"
	CodeInternalError     Code = "InternalError"
)

// Rejection é o corpo estruturado devolvido ao chamador.
type Rejection struct {
	Success           bool      `json:"success"`
	Message           string    `json:"message"`
	Code              Code      `json:"code"`
	RetryAfterSeconds *int      `json:"retryAfterSeconds,omitempty"`
	RequestID         uuid.UUID `json:"requestId"`
	Timestamp         time.Time `json:"timestamp"`

	// Dicas de throttling, só em CodeRateLimitExceeded.
	Limit     *int   `json:"limit,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	ResetTime *int64 `json:"resetTime,omitempty"`
}

// Outcome é a saída terminal do Gatekeeper.
type Outcome struct {
	State     State
	RequestID uuid.UUID

	// Preenchido quando State == StateAdmitted.
	Context *AuthenticatedContext
	// Preenchido quando State == StateRejected.
	Rejection *Rejection
	// Err é a causa interna (nunca enviada ao cliente).
	Err error

	// Rate é a decisão do estágio de rate limit, quando ele rodou.
	Rate *Decision
}

func (o Outcome) Admitted() bool { return o.State == StateAdmitted }
