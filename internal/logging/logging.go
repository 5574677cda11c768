// Package logging configura o logger estruturado global (zerolog).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level  string
	Pretty bool
}

// Setup configura o logger global e o devolve. JSON por padrão; console
// colorido quando Pretty.
func Setup(cfg Config) zerolog.Logger {
	return SetupWriter(cfg, os.Stdout)
}

func SetupWriter(cfg Config, out io.Writer) zerolog.Logger {
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}
