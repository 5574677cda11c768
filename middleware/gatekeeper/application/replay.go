package application

import "time"

const DefaultReplayTolerance = 300 * time.Second

// ReplayGuard rejeita timestamps fora da janela de tolerância.
//
// Não guarda nonces: uma requisição capturada pode ser reenviada enquanto
// estiver dentro da janela.
type ReplayGuard struct {
	Tolerance time.Duration
	Now       func() time.Time
}

// IsFresh retorna true sse |now - timestamp| <= tolerância (limite inclusivo).
func (g ReplayGuard) IsFresh(timestamp int64) bool {
	tol := g.Tolerance
	if tol <= 0 {
		tol = DefaultReplayTolerance
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	// comparação por limites para não estourar int64 com timestamps extremos
	sec := now().Unix()
	tolSec := int64(tol / time.Second)
	return timestamp >= sec-tolSec && timestamp <= sec+tolSec
}
