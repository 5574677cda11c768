package domain

// Credential é a identidade de um chamador e seu segredo de assinatura.
// Imutável após o carregamento.
type Credential struct {
	ID      string
	Secret  []byte
	Enabled bool
}

// CredentialStore resolve credenciais por id.
//
// Implementações são somente leitura depois de construídas e devem suportar
// leitores concorrentes sem lock. Quando o id não existe, retorna
// ErrCredentialNotFound.
type CredentialStore interface {
	Lookup(callerID string) (Credential, error)
}
