package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/graphbio/genograph/internal/wire"
)

// fakeServer answers every framed request with a canned reply and records
// what it received.
func fakeServer(t *testing.T, reply string) (net.Addr, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				payload, err := wire.ReadString(c)
				if err != nil {
					return
				}
				received <- payload
				_ = wire.WriteString(c, reply)
			}(conn)
		}
	}()
	return ln.Addr(), received
}

func startGateway(t *testing.T, serverAddr string) *Gateway {
	t.Helper()
	gw := New(Config{ListenAddr: "127.0.0.1:0", ServerAddr: serverAddr}, t.Logf)
	go func() {
		if err := gw.Start(context.Background()); err != nil {
			t.Errorf("gateway start: %v", err)
		}
	}()
	select {
	case <-gw.WaitReady():
	case <-time.After(2 * time.Second):
		t.Fatal("gateway not ready")
	}
	t.Cleanup(gw.Stop)
	return gw
}

func exchange(t *testing.T, addr net.Addr, payload string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial gateway: %v", err)
	}
	defer conn.Close()
	if err := wire.WriteString(conn, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := wire.ReadString(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestRelayPassesRequestAndReplyVerbatim(t *testing.T) {
	serverAddr, received := fakeServer(t, "INIT_SUCCESS")
	gw := startGateway(t, serverAddr.String())

	// Tabs and underscores must survive the relay untouched.
	if got := exchange(t, gw.Addr(), "PMCREA_My\tProject"); got != "INIT_SUCCESS" {
		t.Errorf("relayed reply = %q, want INIT_SUCCESS", got)
	}
	select {
	case req := <-received:
		if req != "PMCREA_My\tProject" {
			t.Errorf("server received %q, want verbatim request", req)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the request")
	}
}

func TestRelayReportsUnreachableServer(t *testing.T) {
	// Grab a port and close it again so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := ln.Addr().String()
	_ = ln.Close()

	gw := startGateway(t, deadAddr)
	if got := exchange(t, gw.Addr(), "PMINFO"); got != "-1" {
		t.Errorf("reply with dead server = %q, want -1", got)
	}
}

func TestRelayHandlesConcurrentClients(t *testing.T) {
	serverAddr, _ := fakeServer(t, "ok")
	gw := startGateway(t, serverAddr.String())

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 8)
	for i := 0; i < 8; i++ {
		go func() {
			conn, err := net.Dial("tcp", gw.Addr().String())
			if err != nil {
				done <- result{err: err}
				return
			}
			defer conn.Close()
			if err := wire.WriteString(conn, "PMINFO"); err != nil {
				done <- result{err: err}
				return
			}
			reply, err := wire.ReadString(conn)
			done <- result{reply: reply, err: err}
		}()
	}
	for i := 0; i < 8; i++ {
		r := <-done
		if r.err != nil {
			t.Fatalf("concurrent exchange: %v", r.err)
		}
		if r.reply != "ok" {
			t.Errorf("reply = %q, want ok", r.reply)
		}
	}
}
