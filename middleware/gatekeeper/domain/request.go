package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignedRequestEnvelope é o que o chamador assina: método, path+query, corpo,
// id, timestamp (segundos unix) e a assinatura apresentada.
type SignedRequestEnvelope struct {
	Method       string
	PathAndQuery string
	Body         []byte
	CallerID     string
	Timestamp    int64
	Signature    string
}

// AuthenticatedContext é anexado à requisição depois de autenticação,
// verificação de rede e rate limit. Somente leitura.
type AuthenticatedContext struct {
	CallerID        string
	AuthenticatedAt time.Time
	RequestID       uuid.UUID
}

// Request é a visão agnóstica de transporte de uma requisição de entrada.
//
// Os campos de credencial são crus (como chegaram nos headers). O adapter de
// transporte resolve o endereço do cliente antes; AddressErr indica que nenhuma
// estratégia conseguiu extrair um endereço.
type Request struct {
	Method       string
	PathAndQuery string
	Path         string
	Body         []byte

	CallerID  string
	Timestamp string
	Signature string

	Address    string
	AddressErr error

	// Fingerprint são metadados fornecidos pelo cliente (ex: User-Agent),
	// usados apenas como última opção para derivar a chave de rate limit.
	Fingerprint string

	// BodyErr sinaliza falha ao ler o corpo (ex: acima do limite).
	BodyErr error
}
