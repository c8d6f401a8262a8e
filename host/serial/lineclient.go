package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrShutdown is returned when the firmware reports it has shut down
var ErrShutdown = errors.New("firmware shut down")

// ReplyError is a command rejected by the firmware with an "Error:" line
type ReplyError struct {
	Command string
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// LineClient sends G-code lines and collects the replies up to the
// terminating "ok"
type LineClient struct {
	port Port
	log  *slog.Logger
	buf  []byte
}

// NewLineClient wraps an open port
func NewLineClient(port Port, log *slog.Logger) *LineClient {
	if log == nil {
		log = slog.Default()
	}
	return &LineClient{port: port, log: log}
}

// Send writes one line and waits for its "ok". Informational lines printed
// before the "ok" are returned. Homing can take minutes, so callers bound
// the wait through ctx.
func (c *LineClient) Send(ctx context.Context, line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if _, err := c.port.Write([]byte(line + "\n")); err != nil {
		return nil, fmt.Errorf("write %q: %w", line, err)
	}
	c.log.Debug("sent", "line", line)

	var replies []string
	for {
		reply, err := c.readLine(ctx)
		if err != nil {
			return replies, fmt.Errorf("await reply to %q: %w", line, err)
		}
		c.log.Debug("recv", "line", reply)

		switch {
		case reply == "ok" || strings.HasPrefix(reply, "ok "):
			return replies, nil
		case strings.HasPrefix(reply, "Error:"):
			return replies, &ReplyError{Command: line, Message: strings.TrimSpace(strings.TrimPrefix(reply, "Error:"))}
		case strings.HasPrefix(reply, "!!"):
			return replies, fmt.Errorf("%w: %s", ErrShutdown, strings.TrimSpace(strings.TrimPrefix(reply, "!!")))
		case reply == "":
		default:
			replies = append(replies, reply)
		}
	}
}

// readLine returns the next line without its terminator. Port read timeouts
// surface as empty reads and are retried until ctx is done.
func (c *LineClient) readLine(ctx context.Context) (string, error) {
	chunk := make([]byte, 128)
	for {
		if i := bytes.IndexByte(c.buf, '\n'); i >= 0 {
			line := strings.TrimRight(string(c.buf[:i]), "\r")
			c.buf = c.buf[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := c.port.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}
}

// Close closes the underlying port
func (c *LineClient) Close() error {
	return c.port.Close()
}
