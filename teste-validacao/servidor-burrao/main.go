// Upstream "burro" para validar o gateway: não sabe nada de assinatura, só
// confia no cabeçalho que o gateway injeta depois de admitir a requisição.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"request-gatekeeper/internal/logging"
)

func main() {
	logger := logging.Setup(logging.Config{Level: "info", Pretty: true})

	mux := http.NewServeMux()
	mux.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get("X-Authenticated-Caller")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição recebida de %s</p>", caller)
		logger.Info().
			Str("caller", caller).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Bool("signature_forwarded", r.Header.Get("X-Signature") != "").
			Msg("showTela")
	})

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info().Str("addr", addr).Msg("upstream listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("upstream error")
	}
}
