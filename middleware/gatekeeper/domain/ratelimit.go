package domain

// Camada de domínio do rate limit (janela deslizante, contagem exata).

import "time"

type Key string

// Rule é o teto de admissões por janela para uma rota.
type Rule struct {
	Name        string
	Method      string
	PathPrefix  string
	MaxRequests int
	Window      time.Duration
}

// Decision é o resultado de uma tentativa de admissão.
type Decision struct {
	Allowed bool
	Limit   int
	// Remaining é a cota restante depois desta decisão.
	Remaining int
	// RetryAfter é o tempo até liberar uma vaga (0 quando admitido).
	RetryAfter time.Duration
	// ResetAt é o instante em que a admissão mais antiga sai da janela.
	ResetAt time.Time
	Window  time.Duration
}

// RetryAfterSeconds arredonda RetryAfter para cima, com mínimo de 1s quando bloqueado.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// WindowStatus é uma fotografia de uma janela, sem registrar admissão.
type WindowStatus struct {
	Key       Key
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// WindowStore mantém uma janela deslizante por chave.
//
// TryAdmit precisa ser atômico por chave: duas chamadas concorrentes para a
// mesma chave nunca podem ler a mesma contagem e ambas serem admitidas além
// do limite.
type WindowStore interface {
	TryAdmit(key Key, max int, window time.Duration) Decision
	Status(key Key, max int, window time.Duration) WindowStatus
	Reset(key Key) bool
}
