// Package gateway implements the public-facing proxy. It owns no state and
// interprets no commands: every framed request is forwarded verbatim to the
// server over a fresh connection and the server's reply is relayed back. The
// gateway is the only component user apps can reach; the server itself stays
// on an internal network.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphbio/genograph/internal/wire"
)

// Config holds the gateway's addresses and limits.
type Config struct {
	// ListenAddr is the public address user apps connect to.
	ListenAddr string
	// ServerAddr is the server's query listener.
	ServerAddr string
	// DialTimeout bounds the upstream dial. Zero means 10 seconds.
	DialTimeout time.Duration
}

// Gateway accepts user connections and relays one request/reply exchange per
// connection.
type Gateway struct {
	cfg  Config
	logf func(format string, args ...interface{})

	mu       sync.Mutex
	listener net.Listener

	readyChan chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a gateway. logf may be nil.
func New(cfg Config, logf func(format string, args ...interface{})) *Gateway {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Gateway{cfg: cfg, logf: logf, readyChan: make(chan struct{})}
}

// Start binds the public listener and serves until Stop is called.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.cfg.ListenAddr, err)
	}
	g.mu.Lock()
	g.listener = ln
	g.mu.Unlock()

	g.logf("gateway: listening on %s, forwarding to %s", ln.Addr(), g.cfg.ServerAddr)
	close(g.readyChan)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				g.logf("gateway: accept: %v", err)
			}
			g.wg.Wait()
			return nil
		}
		g.wg.Add(1)
		go func(c net.Conn) {
			defer g.wg.Done()
			g.relay(ctx, c)
		}(conn)
	}
}

// WaitReady returns a channel closed once the listener accepts connections.
func (g *Gateway) WaitReady() <-chan struct{} {
	return g.readyChan
}

// Addr returns the bound public address.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Stop closes the public listener. In-flight relays are allowed to finish.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		ln := g.listener
		g.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
	})
}

// relay forwards one request to the server and its reply back to the user
// app. Failures on the upstream leg are reported to the user app as "-1";
// failures on the user leg are only logged, there is nobody left to tell.
func (g *Gateway) relay(ctx context.Context, userConn net.Conn) {
	defer func() { _ = userConn.Close() }()
	connID := uuid.NewString()[:8]

	request, err := wire.ReadMessage(userConn)
	if err != nil {
		g.logf("gateway: [%s] read request: %v", connID, err)
		return
	}

	reply, err := g.forward(ctx, request)
	if err != nil {
		g.logf("gateway: [%s] forward: %v", connID, err)
		_ = wire.WriteString(userConn, wire.ReplyInvalid)
		return
	}
	if err := wire.WriteMessage(userConn, reply); err != nil {
		g.logf("gateway: [%s] write reply: %v", connID, err)
	}
}

func (g *Gateway) forward(ctx context.Context, request []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: g.cfg.DialTimeout}
	serverConn, err := dialer.DialContext(ctx, "tcp", g.cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("dial server %s: %w", g.cfg.ServerAddr, err)
	}
	defer func() { _ = serverConn.Close() }()

	if err := wire.WriteMessage(serverConn, request); err != nil {
		return nil, err
	}
	return wire.ReadMessage(serverConn)
}
