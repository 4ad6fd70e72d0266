// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/spellforge/internal/telnet"
)

// TelnetClient drives a line-oriented telnet server from a test.
type TelnetClient struct {
	conn net.Conn
	t    *testing.T
}

// NewTelnetClient dials addr and closes the connection when the test ends.
//
// Precondition: addr must be a "host:port" with a listening server.
// Postcondition: Returns a connected client or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until substr appears in the output, with telnet commands
// and ANSI styles removed, and returns that output.
//
// Postcondition: Returns text containing substr, or fails the test on
// timeout or disconnect.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var raw []byte
	tmp := make([]byte, 1024)
	for {
		n, err := c.conn.Read(tmp)
		raw = append(raw, tmp[:n]...)
		text := telnet.StripANSI(string(telnet.FilterIAC(raw)))
		if strings.Contains(text, substr) {
			return text
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q: %v", substr, text, err)
		}
	}
}

// Send writes text followed by CRLF.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Expect sends a line and waits for want in the reply.
func (c *TelnetClient) Expect(line, want string, timeout time.Duration) string {
	c.t.Helper()
	c.Send(line)
	return c.ReadUntil(want, timeout)
}

// Close closes the connection.
func (c *TelnetClient) Close() {
	_ = c.conn.Close()
}
