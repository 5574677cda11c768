package application

import (
	"fmt"
	"strings"
	"time"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Minute
)

// RateLimiter concentra a regra de aplicação do rate limit: escolhe a regra
// da rota e delega a contagem para o WindowStore.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type RateLimiter struct {
	Store   domain.WindowStore
	Rules   []domain.Rule
	Default *domain.Rule
}

// RuleFor escolhe a regra de maior PathPrefix que casa com método e path.
// Sem match, usa Default.
func (l RateLimiter) RuleFor(method, path string) (domain.Rule, error) {
	best := -1
	for i, r := range l.Rules {
		if r.Method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if !strings.HasPrefix(path, r.PathPrefix) {
			continue
		}
		if best < 0 || len(r.PathPrefix) > len(l.Rules[best].PathPrefix) {
			best = i
		}
	}
	if best >= 0 {
		return l.Rules[best], nil
	}
	if l.Default != nil {
		return *l.Default, nil
	}
	return domain.Rule{}, fmt.Errorf("%w: %s %s", domain.ErrNoRule, method, path)
}

// WindowKey combina a chave do cliente com a regra, para que rotas com tetos
// diferentes não dividam a mesma janela.
func WindowKey(clientKey string, rule domain.Rule) domain.Key {
	if rule.Name == "" {
		return domain.Key(clientKey)
	}
	return domain.Key(clientKey + "|" + rule.Name)
}

func (l RateLimiter) TryAdmit(clientKey string, rule domain.Rule) (domain.Decision, error) {
	if l.Store == nil {
		return domain.Decision{}, fmt.Errorf("%w: no window store", domain.ErrNoRule)
	}
	if rule.MaxRequests <= 0 || rule.Window <= 0 {
		return domain.Decision{}, fmt.Errorf("%w: invalid rule %q (max=%d window=%s)", domain.ErrNoRule, rule.Name, rule.MaxRequests, rule.Window)
	}
	return l.Store.TryAdmit(WindowKey(clientKey, rule), rule.MaxRequests, rule.Window), nil
}

// Status consulta a janela sem registrar admissão.
func (l RateLimiter) Status(clientKey string, rule domain.Rule) domain.WindowStatus {
	if l.Store == nil {
		return domain.WindowStatus{Key: WindowKey(clientKey, rule), Limit: rule.MaxRequests, Remaining: rule.MaxRequests}
	}
	return l.Store.Status(WindowKey(clientKey, rule), rule.MaxRequests, rule.Window)
}

// Reset apaga a janela de um cliente para a regra informada.
func (l RateLimiter) Reset(clientKey string, rule domain.Rule) bool {
	if l.Store == nil {
		return false
	}
	return l.Store.Reset(WindowKey(clientKey, rule))
}

// AllRules devolve as regras configuradas mais a padrão (se houver).
func (l RateLimiter) AllRules() []domain.Rule {
	out := make([]domain.Rule, 0, len(l.Rules)+1)
	out = append(out, l.Rules...)
	if l.Default != nil {
		out = append(out, *l.Default)
	}
	return out
}
