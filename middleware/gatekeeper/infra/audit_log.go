package infra

import (
	"context"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/rs/zerolog"
)

// LogSink escreve uma linha estruturada por evento de segurança.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	e := s.log.Info()
	switch ev.Kind {
	case domain.EventAuthFailure, domain.EventNetworkDenied, domain.EventRateThrottled,
		domain.EventNetworkMonitored:
		e = s.log.Warn()
	case domain.EventInternalError:
		e = s.log.Error()
	case domain.EventRateAdmitted, domain.EventNetworkAllowed, domain.EventNetworkSkipped:
		e = s.log.Debug()
	}
	e.Str("event", "security").
		Str("kind", string(ev.Kind)).
		Str("identity", ev.MaskedIdentity).
		Str("request_id", ev.RequestID.String()).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Time("at", ev.At).
		Msg(ev.Detail)
	return nil
}
