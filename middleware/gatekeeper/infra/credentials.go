package infra

import (
	"errors"
	"fmt"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

// MemoryCredentialStore guarda credenciais num mapa que nunca é mutado após a
// construção; leituras concorrentes dispensam lock.
type MemoryCredentialStore struct {
	byID map[string]domain.Credential
}

func NewMemoryCredentialStore(creds []domain.Credential) (*MemoryCredentialStore, error) {
	byID := make(map[string]domain.Credential, len(creds))
	for _, c := range creds {
		if c.ID == "" {
			return nil, errors.New("credential with empty id")
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate credential id %q", c.ID)
		}
		if len(c.Secret) == 0 {
			return nil, fmt.Errorf("credential %q has empty secret", c.ID)
		}
		secret := make([]byte, len(c.Secret))
		copy(secret, c.Secret)
		c.Secret = secret
		byID[c.ID] = c
	}
	return &MemoryCredentialStore{byID: byID}, nil
}

// Lookup implementa domain.CredentialStore.
func (s *MemoryCredentialStore) Lookup(callerID string) (domain.Credential, error) {
	c, ok := s.byID[callerID]
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return c, nil
}

func (s *MemoryCredentialStore) Len() int { return len(s.byID) }
