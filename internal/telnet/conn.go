package telnet

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// Telnet command and option bytes (RFC 854, RFC 858).
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	GA   byte = 249
	NOP  byte = 241
	SE   byte = 240

	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
)

// MaxLineLength bounds a single input line.
const MaxLineLength = 4096

// ErrLineTooLong is returned by ReadLine when a line exceeds MaxLineLength.
var ErrLineTooLong = errors.New("telnet: line too long")

// Conn is a line-oriented telnet connection. Reads strip IAC sequences and
// control bytes; writes are serialized and use CRLF line endings.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader

	wmu          sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw. A zero timeout disables the corresponding deadline.
//
// Precondition: raw must be an open connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate announces that the server will suppress go-ahead.
func (c *Conn) Negotiate() error {
	return c.Write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine returns the next input line without its CR, LF or CRLF terminator.
//
// Postcondition: On error the partial line read so far is returned with it;
// io.EOF signals a closed connection.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	line := make([]byte, 0, 64)
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return string(line), err
		}
		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return string(line), err
			}
			continue
		case b == '\n':
			return string(line), nil
		case b == '\r':
			if next, err := c.reader.Peek(1); err == nil && next[0] == '\n' {
				_, _ = c.reader.ReadByte()
			}
			return string(line), nil
		case b < 32 && b != '\t', b == 127:
			continue
		}
		if len(line) >= MaxLineLength {
			return string(line), ErrLineTooLong
		}
		line = append(line, b)
	}
}

// skipCommand consumes the remainder of a command after its IAC byte.
func (c *Conn) skipCommand() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err = c.reader.ReadByte()
		return err
	case SB:
		var prev byte
		for {
			b, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if prev == IAC && b == SE {
				return nil
			}
			prev = b
		}
	}
	return nil
}

// WriteLine writes text followed by CRLF.
func (c *Conn) WriteLine(text string) error {
	return c.Write([]byte(text + "\r\n"))
}

// WritePrompt writes prompt with no line ending.
func (c *Conn) WritePrompt(prompt string) error {
	return c.Write([]byte(prompt))
}

// Write writes data as is.
func (c *Conn) Write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the connection. Closing twice is harmless.
func (c *Conn) Close() error {
	err := c.raw.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// IsClosed reports whether err means the peer went away or the connection
// was closed locally.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// FilterIAC removes telnet command sequences from input. An escaped IAC IAC
// pair yields one literal 0xFF byte; an incomplete trailing command is dropped.
func FilterIAC(input []byte) []byte {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); {
		if input[i] != IAC {
			out = append(out, input[i])
			i++
			continue
		}
		if i+1 >= len(input) {
			break
		}
		switch cmd := input[i+1]; cmd {
		case IAC:
			out = append(out, IAC)
			i += 2
		case WILL, WONT, DO, DONT:
			i += 3
		case SB:
			j := i + 2
			for j < len(input) && !(input[j-1] == IAC && input[j] == SE && j > i+2) {
				j++
			}
			i = j + 1
		default:
			i += 2
		}
	}
	return out
}
