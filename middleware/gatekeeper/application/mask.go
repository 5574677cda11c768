package application

import (
	"strings"
	"unicode/utf8"
)

const (
	maskVisible = 4
	maskFill    = "****"
)

// Mask mostra no máximo os primeiros 4 runes e troca o resto por um
// sufixo fixo. O tamanho da saída não depende do tamanho da entrada.
// Valores com até 4 runes saem só com o sufixo.
func Mask(v string) string {
	if v == "" {
		return v
	}
	cut, n := 0, 0
	for cut < len(v) && n < maskVisible {
		_, size := utf8.DecodeRuneInString(v[cut:])
		cut += size
		n++
	}
	if cut >= len(v) {
		return maskFill
	}
	return strings.ToValidUTF8(v[:cut], "?") + maskFill
}
