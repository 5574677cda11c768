package domain

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventAuthSuccess        EventKind = "security.auth.success"
	EventAuthFailure        EventKind = "security.auth.failure"
	EventNetworkAllowed     EventKind = "security.network.allowed"
	EventNetworkDenied      EventKind = "security.network.denied"
	EventNetworkMonitored   EventKind = "security.network.monitored"
	EventNetworkSkipped     EventKind = "security.network.skipped"
	EventRateAdmitted       EventKind = "security.rate.admitted"
	EventRateThrottled      EventKind = "security.rate.throttled"
	EventInternalError      EventKind = "security.internal.error"
	EventRequestAbandoned   EventKind = "security.request.abandoned"
	EventRateHistoryCleared EventKind = "security.rate.cleared"
	EventFloodThrottled     EventKind = "security.flood.throttled"
)

// Category é o estágio do evento ("auth", "network", "rate"...).
func (k EventKind) Category() string {
	c, _ := k.split()
	return c
}

// Outcome é o resultado dentro do estágio ("failure", "denied"...).
func (k EventKind) Outcome() string {
	_, o := k.split()
	return o
}

func (k EventKind) split() (string, string) {
	rest := strings.TrimPrefix(string(k), "security.")
	if c, o, ok := strings.Cut(rest, "."); ok {
		return c, o
	}
	return rest, ""
}

// Rejects indica que o evento encerrou a requisição sem admiti-la.
func (k EventKind) Rejects() bool {
	switch k {
	case EventAuthFailure, EventNetworkDenied, EventRateThrottled,
		EventInternalError, EventRequestAbandoned, EventFloodThrottled:
		return true
	}
	return false
}

// SecurityEvent é escrito uma vez e enviado ao AuditSink sem esperar leitura.
// MaskedIdentity e qualquer endereço em Detail já chegam mascarados.
type SecurityEvent struct {
	Kind           EventKind
	MaskedIdentity string
	Detail         string
	At             time.Time

	RequestID uuid.UUID
	Method    string
	Path      string
	// Rule é o nome da regra de rate limit aplicada, quando houve uma.
	Rule string
}

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
	http.MethodOptions: true, http.MethodConnect: true, http.MethodTrace: true,
}

// RouteLabel agrupa o evento sem usar o path cru, que vem do cliente e
// não tem limite de valores: a regra aplicada quando existe, senão só o
// método (métodos desconhecidos viram "OTHER").
func (e SecurityEvent) RouteLabel() string {
	if e.Rule != "" {
		return "rule:" + e.Rule
	}
	m := strings.ToUpper(strings.TrimSpace(e.Method))
	if m == "" {
		return ""
	}
	if !knownMethods[m] {
		m = "OTHER"
	}
	return "method:" + m
}

// AuditSink é a estratégia de registro de eventos de segurança.
//
// O pipeline trata erro como best-effort (não derruba request).
type AuditSink interface {
	Record(ctx context.Context, ev SecurityEvent) error
}
