package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/spellforge/internal/config"
	"github.com/cory-johannsen/spellforge/internal/testutil"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
			c.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("workbench did not listen on %s", addr)
}

func TestRun_ServesPresetsAndStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spells.yaml"),
		[]byte("id: fireball\nname: Fireball\nformula: 8d6\n"), 0o644))

	port := freePort(t)
	v := config.NewViper()
	v.Set("logging.level", "error")
	v.Set("workbench.port", port)
	v.Set("workbench.color", false)
	v.Set("presets.dir", dir)
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	waitForListener(t, addr)

	c := testutil.NewTelnetClient(t, addr)
	c.ReadUntil("spellforge> ", 3*time.Second)
	c.Expect("presets", "fireball  8d6  (Fireball)", 3*time.Second)
	c.Expect("preset fireball", "value:    28", 3*time.Second)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workbench did not stop after cancel")
	}
}

func TestRun_BadPresetDirectory(t *testing.T) {
	v := config.NewViper()
	v.Set("logging.level", "error")
	v.Set("presets.dir", filepath.Join(t.TempDir(), "missing"))
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)
	assert.Error(t, run(context.Background(), cfg))
}

func TestNewCommand_MissingConfig(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}
