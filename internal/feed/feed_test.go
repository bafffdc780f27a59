package feed

import (
	"context"
	"strings"
	"testing"
	"time"
)

// receiveOne waits for a single line from a subscription channel.
func receiveOne(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSubscribeReceivesLines(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true
	mux := NewFeedMux(port)

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	// Give the subscriber goroutine time to block on the channel before
	// data arrives; Monitor drops lines for receivers that are not ready.
	done := make(chan string, 1)
	go func() { done <- receiveOne(t, ch) }()
	time.Sleep(50 * time.Millisecond)

	port.AddReadData([]byte("hello world\n"))

	select {
	case line := <-done:
		if line != "hello world" {
			t.Errorf("expected %q, got %q", "hello world", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mux := NewFeedMux(NewTestablePort())

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Unsubscribe")
	}
}

func TestSendCommandAppendsNewline(t *testing.T) {
	port := NewTestablePort()
	mux := NewFeedMux(port)

	if err := mux.SendCommand("reset"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	written := string(port.GetWrittenData())
	if !strings.HasSuffix(written, "\n") {
		t.Errorf("command must end with newline, got %q", written)
	}
	if !strings.HasPrefix(written, "reset") {
		t.Errorf("unexpected command payload: %q", written)
	}
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true
	mux := NewFeedMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	port := NewTestablePort()
	mux := NewFeedMux(port)

	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed after Close")
	}
	if !port.Closed {
		t.Error("expected underlying port closed")
	}
}

func TestMockFeedMuxReplays(t *testing.T) {
	lines := []string{`{"agents":[]}`}
	mux := NewMockFeedMux(lines, 10*time.Millisecond)
	defer mux.Close()

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	line := receiveOne(t, ch)
	if line != lines[0] {
		t.Errorf("expected replayed line %q, got %q", lines[0], line)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if opts.BaudRate != 115200 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	if _, err := (PortOptions{DataBits: 3}).Normalize(); err == nil {
		t.Error("expected error for invalid data bits")
	}
	if _, err := (PortOptions{StopBits: 3}).Normalize(); err == nil {
		t.Error("expected error for invalid stop bits")
	}
	if _, err := (PortOptions{Parity: "X"}).Normalize(); err == nil {
		t.Error("expected error for invalid parity")
	}

	opts, err = PortOptions{Parity: "even"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if opts.Parity != "E" {
		t.Errorf("expected parity E, got %q", opts.Parity)
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode failed: %v", err)
	}
	if mode.BaudRate != 9600 {
		t.Errorf("expected baud 9600, got %d", mode.BaudRate)
	}
}
