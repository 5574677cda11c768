package domain

import "errors"

// Erros internos dos estágios. Nenhum deles é exposto ao cliente: o
// Gatekeeper colapsa todos os erros de autenticação em CodeUnauthorized.
var (
	ErrMissingCredentials   = errors.New("missing credential headers")
	ErrMalformedCallerID    = errors.New("malformed caller id")
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrCredentialDisabled   = errors.New("credential disabled")
	ErrMalformedTimestamp   = errors.New("malformed timestamp")
	ErrStaleTimestamp       = errors.New("timestamp outside replay window")
	ErrSignatureMismatch    = errors.New("signature mismatch")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrAddressUnresolved    = errors.New("client address unresolved")
	ErrAddressNotAllowed    = errors.New("client address not allowed")
	ErrNoRule               = errors.New("no rate rule configured")
	ErrInvalidAccessPattern = errors.New("invalid access pattern")
	ErrNoPolicy             = errors.New("no policy loaded")
)
