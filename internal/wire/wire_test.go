package wire

import (
	"bytes"
	"net"
	"testing"

	"github.com/ntess/yaftp/internal/protoerr"
)

func TestMethodFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if err := c.WriteMethodRequest(ClientMethods); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := c.ReadMethodRequest()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, ClientMethods) {
		t.Fatalf("got %v, want %v", got, ClientMethods)
	}
}

func TestMethodFrameVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x02, 0x01, 0x01})

	c := New(&buf)
	_, err := c.ReadMethodRequest()
	if protoerr.KindOf(err) != protoerr.NoSupportVersion {
		t.Fatalf("got %v, want NoSupportVersion", err)
	}
}

func TestArgumentRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	want := []byte("/tmp/hello")
	if err := c.WriteArgument(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := c.ReadArgument(MaxPathArg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestArgumentOversizeRejectedBeforeBody(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	// Craft a LEN of 2000 and keep only its 8-byte header -- the reader
	// must fail on the LEN check, not attempt to read the body.
	big := make([]byte, 2000)
	if err := c.WriteArgument(big); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Truncate the buffer to simulate a peer that never sends the
	// (oversize) body at all.
	trunc := buf.Bytes()[:8]
	c2 := New(bytes.NewBuffer(trunc))

	_, err := c2.ReadArgument(MaxPathArg)
	if protoerr.KindOf(err) != protoerr.ArgumentSizeError {
		t.Fatalf("got %v, want ArgumentSizeError", err)
	}
}

func TestCommandReplyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if err := c.WriteCommand(CmdLs, 1); err != nil {
		t.Fatalf("write command: %v", err)
	}
	cmd, narg, err := c.ReadCommand()
	if err != nil {
		t.Fatalf("read command: %v", err)
	}
	if cmd != CmdLs || narg != 1 {
		t.Fatalf("got cmd=%v narg=%v", cmd, narg)
	}

	if err := c.WriteReply(0, 2); err != nil {
		t.Fatalf("write reply: %v", err)
	}
	narg, err = c.ReadReply()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if narg != 2 {
		t.Fatalf("got narg=%v, want 2", narg)
	}
}

func TestReplyErrorMapsToKind(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if err := c.WriteReply(byte(protoerr.NotFound), 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := c.ReadReply()
	if protoerr.KindOf(err) != protoerr.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestValidCommand(t *testing.T) {
	for cmd := byte(0); cmd < 16; cmd++ {
		want := cmd >= 1 && cmd <= 11
		if got := ValidCommand(cmd); got != want {
			t.Errorf("ValidCommand(%d) = %v, want %v", cmd, got, want)
		}
	}
}

func TestBulkBodyRoundTrip(t *testing.T) {
	// Use a pair of connected pipes so reads and writes can overlap like
	// they would on a real TCP connection.
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	payload := bytes.Repeat([]byte("x"), 5000)

	wc := New(c1)
	rc := New(c2)

	done := make(chan error, 1)
	go func() {
		done <- wc.CopyBulkFrom(bytes.NewReader(payload), uint64(len(payload)))
	}()

	var out bytes.Buffer
	n, err := rc.CopyBulkTo(&out)
	if err != nil {
		t.Fatalf("copy to: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("copy from: %v", err)
	}
	if n != uint64(len(payload)) {
		t.Fatalf("got n=%v, want %v", n, len(payload))
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Fatalf("payload mismatch")
	}
}
