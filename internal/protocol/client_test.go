package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// collect drains the event channel until it closes, guarding against a hung
// test with a deadline.
func collect(t *testing.T, c *Client) []Message {
	t.Helper()
	var msgs []Message
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-c.Events():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatalf("event channel never closed; got %d messages", len(msgs))
		}
	}
}

func startConsole(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return ln.Addr().String()
}

func TestClientSynthesizesMatchEndOnDisconnect(t *testing.T) {
	addr := startConsole(t, func(conn net.Conn) {
		// Consume the initial mapping request.
		buf := make([]byte, 1)
		conn.Read(buf)

		conn.Write(matchStartBytes(tagMatchStart, 5, []uint8{0, 1}, []uint8{1, 2}, []string{"A", "B"}))
		conn.Write(fighterStateBytes(10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0))
		// Drop the connection mid-match.
	})

	c, err := Dial(addr, 0, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.conn.Close()

	msgs := collect(t, c)
	if len(msgs) < 3 {
		t.Fatalf("got %d messages, want at least match start, synthesized end and disconnect", len(msgs))
	}

	end, ok := msgs[len(msgs)-2].(MatchEndedMsg)
	if !ok || !end.Synthesized {
		t.Errorf("second-to-last message = %+v, want synthesized MatchEndedMsg", msgs[len(msgs)-2])
	}
	if _, ok := msgs[len(msgs)-1].(DisconnectedMsg); !ok {
		t.Errorf("last message = %+v, want DisconnectedMsg", msgs[len(msgs)-1])
	}
}

func TestClientNoSynthesizedEndAfterCleanMatch(t *testing.T) {
	addr := startConsole(t, func(conn net.Conn) {
		buf := make([]byte, 1)
		conn.Read(buf)

		conn.Write(matchStartBytes(tagMatchStart, 5, []uint8{0}, []uint8{1}, []string{"A"}))
		conn.Write([]byte{tagMatchEnd})
	})

	c, err := Dial(addr, 0, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.conn.Close()

	msgs := collect(t, c)
	for _, msg := range msgs {
		if end, ok := msg.(MatchEndedMsg); ok && end.Synthesized {
			t.Errorf("unexpected synthesized end after a clean match close: %+v", msg)
		}
	}
}

func TestClientCloseUnblocksPendingRead(t *testing.T) {
	addr := startConsole(t, func(conn net.Conn) {
		// Hold the connection open without sending anything.
		buf := make([]byte, 16)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})

	c, err := Dial(addr, 0, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return; read never unblocked")
	}

	// The channel still terminates with a disconnect.
	msgs := collect(t, c)
	if len(msgs) == 0 {
		t.Fatal("no messages delivered")
	}
	if _, ok := msgs[len(msgs)-1].(DisconnectedMsg); !ok {
		t.Errorf("last message = %+v, want DisconnectedMsg", msgs[len(msgs)-1])
	}
}

func TestDialFailure(t *testing.T) {
	// A listener that is immediately closed leaves a port nothing accepts on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := Dial(addr, 0, false, zerolog.Nop()); err == nil {
		t.Fatal("expected dial error for closed port")
	}
}
