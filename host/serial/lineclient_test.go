package serial

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptPort answers each written line from a table of canned replies
type scriptPort struct {
	mu      sync.Mutex
	replies map[string]string
	pending []byte
	written []string
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := strings.TrimSpace(string(b))
	p.written = append(p.written, line)
	p.pending = append(p.pending, p.replies[line]...)
	return len(b), nil
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		// behave like a port read timeout
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptPort) Close() error { return nil }
func (p *scriptPort) Flush() error { return nil }

func TestSendCollectsReplies(t *testing.T) {
	port := &scriptPort{replies: map[string]string{
		"G28":  "Homing x min...\r\nHoming y min...\r\nok\r\n",
		"M114": "X:0.000 Y:0.000 Z:0.000 E:0.000\nok\n",
	}}
	client := NewLineClient(port, nil)

	replies, err := client.Send(context.Background(), "G28")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(replies) != 2 || replies[1] != "Homing y min..." {
		t.Errorf("Unexpected replies %q", replies)
	}

	replies, err = client.Send(context.Background(), " M114 ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "X:0.000") {
		t.Errorf("Unexpected replies %q", replies)
	}
	if port.written[1] != "M114" {
		t.Errorf("Expected trimmed command, got %q", port.written[1])
	}
}

func TestSendErrorReply(t *testing.T) {
	port := &scriptPort{replies: map[string]string{
		"G1 X500": "Error: X position out of limits\n",
	}}
	client := NewLineClient(port, nil)

	_, err := client.Send(context.Background(), "G1 X500")
	var replyErr *ReplyError
	if !errors.As(err, &replyErr) {
		t.Fatalf("Expected ReplyError, got %v", err)
	}
	if replyErr.Message != "X position out of limits" {
		t.Errorf("Unexpected message %q", replyErr.Message)
	}
}

func TestSendShutdown(t *testing.T) {
	port := &scriptPort{replies: map[string]string{
		"M112": "!! shutdown: M112\n",
	}}
	client := NewLineClient(port, nil)

	if _, err := client.Send(context.Background(), "M112"); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
}

func TestSendTimeout(t *testing.T) {
	port := &scriptPort{replies: map[string]string{}}
	client := NewLineClient(port, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Send(ctx, "G28"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}
