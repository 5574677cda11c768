package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/redis/go-redis/v9"
)

// RedisAuditSink mantém contadores agregados de eventos de segurança no
// Redis, organizados pelo estágio do pipeline. Não é a trilha de auditoria.
//
// Chaves (sem TTL, cardinalidade limitada pela taxonomia e pelas regras):
//
//	<prefix>:stage:<categoria>   outcome -> n
//	<prefix>:rejections          categoria -> n
//	<prefix>:route               "<rótulo> <kind>" -> n
//
// Chaves com TTL:
//
//	<prefix>:rejections:<yyyymmddhhmm>   categoria -> n   (bucket "minute")
//	<prefix>:offender:<identidade>       categoria -> n   (track_identities)
type RedisAuditSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	// "minute" (padrão) ou "none"
	bucket          string
	trackIdentities bool
}

type RedisAuditOption func(*RedisAuditSink)

func WithAuditPrefix(prefix string) RedisAuditOption {
	return func(s *RedisAuditSink) { s.prefix = strings.Trim(prefix, ":") }
}

// WithAuditTTL vale só para as séries por minuto e por identidade.
func WithAuditTTL(d time.Duration) RedisAuditOption {
	return func(s *RedisAuditSink) { s.ttl = d }
}

func WithAuditBucket(bucket string) RedisAuditOption {
	return func(s *RedisAuditSink) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithAuditTrackIdentities conta rejeições por identidade mascarada.
func WithAuditTrackIdentities(track bool) RedisAuditOption {
	return func(s *RedisAuditSink) { s.trackIdentities = track }
}

func NewRedisAuditSink(rdb *redis.Client, opts ...RedisAuditOption) *RedisAuditSink {
	s := &RedisAuditSink{
		rdb:    rdb,
		prefix: "gatekeeper:audit",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisAuditSink) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisAuditSink) Record(ctx context.Context, ev domain.SecurityEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	category, outcome := ev.Kind.Category(), ev.Kind.Outcome()
	if outcome == "" {
		outcome = "other"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key("stage", category), outcome, 1)
	if label := ev.RouteLabel(); label != "" {
		pipe.HIncrBy(ctx, s.key("route"), label+" "+string(ev.Kind), 1)
	}

	if ev.Kind.Rejects() {
		pipe.HIncrBy(ctx, s.key("rejections"), category, 1)

		if s.bucket == "minute" {
			at := ev.At
			if at.IsZero() {
				at = time.Now()
			}
			s.incrExpiring(ctx, pipe, s.key("rejections", at.UTC().Format("200601021504")), category)
		}
		if id := strings.TrimSpace(ev.MaskedIdentity); s.trackIdentities && id != "" {
			s.incrExpiring(ctx, pipe, s.key("offender", id), category)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis audit %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *RedisAuditSink) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}
