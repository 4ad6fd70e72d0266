package workbench_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/spellforge/internal/config"
	"github.com/cory-johannsen/spellforge/internal/telnet"
	"github.com/cory-johannsen/spellforge/internal/testutil"
	"github.com/cory-johannsen/spellforge/internal/workbench"
)

const readTimeout = 3 * time.Second

func serve(t *testing.T, wb *workbench.Workbench) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	acc := telnet.NewAcceptor(config.WorkbenchConfig{WriteTimeout: readTimeout}, wb, zaptest.NewLogger(t))
	go func() { _ = acc.Serve(ln) }()
	<-acc.Ready()
	t.Cleanup(acc.Stop)
	return acc.Addr()
}

func TestWorkbench_SessionOverTelnet(t *testing.T) {
	addr := serve(t, newWorkbench(t, nil))
	c := testutil.NewTelnetClient(t, addr)

	greeting := c.ReadUntil(workbench.Prompt, readTimeout)
	assert.Contains(t, greeting, workbench.Banner)

	c.Send("let SPI 14")
	c.ReadUntil("SPI = 14", readTimeout)

	c.Send("eval 2d6 + SPI/2")
	c.ReadUntil("= 14", readTimeout)

	c.Expect("chain 12", "chain: 12 9 6.75 = 27.75", readTimeout)
	c.Expect("eval NOPE", `error: formula: unknown variable "NOPE"`, readTimeout)

	c.Send("quit")
	c.ReadUntil("Goodbye.", readTimeout)
}

func TestWorkbench_ConcurrentSessionsKeepOwnContext(t *testing.T) {
	addr := serve(t, newWorkbench(t, nil))
	a := testutil.NewTelnetClient(t, addr)
	b := testutil.NewTelnetClient(t, addr)
	a.ReadUntil(workbench.Prompt, readTimeout)
	b.ReadUntil(workbench.Prompt, readTimeout)

	a.Send("let X 1")
	b.Send("let X 2")
	a.ReadUntil("X = 1", readTimeout)
	b.ReadUntil("X = 2", readTimeout)

	a.Send("eval X * 10")
	b.Send("eval X * 10")
	a.ReadUntil("= 10", readTimeout)
	b.ReadUntil("= 20", readTimeout)

	b.Close()
	a.Expect("vars", "1 bindings (method DICE)", readTimeout)
}
