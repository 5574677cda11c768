package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher recarrega o arquivo de configuração quando ele muda e entrega a
// nova Config a onReload. Uma configuração inválida é registrada e
// descartada; a anterior continua valendo.
type Watcher struct {
	path     string
	onReload func(*Config) error
	log      zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWatcher(path string, onReload func(*Config) error, l zerolog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// observa o diretório: editores costumam trocar o arquivo via rename
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	return &Watcher{
		path:     absPath,
		onReload: onReload,
		log:      l,
		debounce: 100 * time.Millisecond,
		watcher:  fw,
	}, nil
}

func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Reload força uma releitura (também usado pelo loop).
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	return w.onReload(cfg)
}

// loop roda os reloads na própria goroutine: depois de Close retornar,
// nenhum reload está em andamento nem pendente.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// várias escritas seguidas viram um único reload
			timer.Reset(w.debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			if ctx.Err() != nil {
				return
			}
			if err := w.Reload(); err != nil {
				w.log.Error().Err(err).Str("path", w.path).Msg("config reload rejected, keeping previous policy")
				continue
			}
			w.log.Info().Str("path", w.path).Msg("configuration reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
