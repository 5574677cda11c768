package config

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("TEST_PARTNER_SECRET", "x")

	got := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) error {
		got <- c
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer func() { _ = w.Close() }()

	updated := []byte(strings.Replace(sampleYAML, `":9000"`, `":9100"`, 1))
	// duas escritas seguidas caem na mesma janela de debounce
	require.NoError(t, os.WriteFile(path, updated, 0o600))
	require.NoError(t, os.WriteFile(path, updated, 0o600))

	select {
	case c := <-got:
		require.Equal(t, ":9100", c.ListenAddr)
	case <-time.After(3 * time.Second):
		t.Fatalf("expected reload after write")
	}
}

func TestWatcher_InvalidConfigIsNotDelivered(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*Config) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("network:\n  mode: sideways\n"), 0o600))
	require.Error(t, w.Reload())
	require.Equal(t, int32(0), calls.Load())
	require.NoError(t, w.Close())
}

func TestWatcher_CloseDropsPendingReload(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("TEST_PARTNER_SECRET", "x")

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*Config) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 200 * time.Millisecond

	w.Start(context.Background())
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Close())

	time.Sleep(2 * w.debounce)
	require.Equal(t, int32(0), calls.Load(), "no reload may run after Close")
}
