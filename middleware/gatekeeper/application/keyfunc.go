package application

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DeriveClientKey escolhe a identidade usada no rate limit, em ordem de
// precedência: id autenticado, endereço de rede, hash dos metadados do
// cliente (menos confiável).
func DeriveClientKey(callerID, address, fingerprint string) string {
	if id := strings.TrimSpace(callerID); id != "" {
		return "api:" + id
	}
	if addr := strings.TrimSpace(address); addr != "" {
		return "ip:" + addr
	}
	fp := strings.TrimSpace(fingerprint)
	if fp == "" {
		fp = "unknown"
	}
	return "ua:" + strconv.FormatUint(xxhash.Sum64String(fp), 16)
}
