// Package server implements the concurrent server shell and the command
// dispatcher. Two independent listeners accept connections — one for
// administrative traffic, one for query traffic — and every accepted
// connection is served by its own goroutine: read one framed request, route
// it to a manager, write one framed reply, close.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/graphbio/genograph/internal/project"
	"github.com/graphbio/genograph/internal/task"
	"github.com/graphbio/genograph/internal/wire"
)

// listenerKind selects which command subset a listener accepts. The split
// keeps administrative work and high-volume query traffic from starving
// each other.
type listenerKind int

const (
	adminListener listenerKind = iota
	queryListener
)

// AccessHandler serves one delegated project-access command (FILE, BULD,
// QURY). Implementations send exactly one framed reply through the
// callback.
type AccessHandler interface {
	Handle(ctx context.Context, args []string, reply func(string))
}

// Delegates are the out-of-core managers the dispatcher forwards to. A nil
// delegate answers "-1".
type Delegates struct {
	File  AccessHandler
	Build AccessHandler
	Query AccessHandler
}

// Config holds the server's listening addresses and limits.
type Config struct {
	AdminAddr string
	QueryAddr string
	MaxConns  int
}

// Server hosts the two listeners and dispatches their requests.
type Server struct {
	cfg       Config
	projects  *project.Manager
	tasks     *task.Registry
	delegates Delegates
	logf      func(format string, args ...interface{})

	mu        sync.Mutex
	listeners []net.Listener

	readyChan     chan struct{}
	stopOnce      sync.Once
	connSemaphore chan struct{}
	wg            sync.WaitGroup
}

// New creates a server. logf may be nil.
func New(cfg Config, projects *project.Manager, tasks *task.Registry, delegates Delegates, logf func(format string, args ...interface{})) *Server {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 100
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Server{
		cfg:           cfg,
		projects:      projects,
		tasks:         tasks,
		delegates:     delegates,
		logf:          logf,
		readyChan:     make(chan struct{}),
		connSemaphore: make(chan struct{}, cfg.MaxConns),
	}
}

// Start binds both listeners and serves until Stop is called. It returns
// after all accept loops have ended.
func (s *Server) Start(ctx context.Context) error {
	adminLn, err := net.Listen("tcp", s.cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("server: listen admin %s: %w", s.cfg.AdminAddr, err)
	}
	queryLn, err := net.Listen("tcp", s.cfg.QueryAddr)
	if err != nil {
		_ = adminLn.Close()
		return fmt.Errorf("server: listen query %s: %w", s.cfg.QueryAddr, err)
	}

	s.mu.Lock()
	s.listeners = []net.Listener{adminLn, queryLn}
	s.mu.Unlock()

	s.logf("server: admin listener on %s", adminLn.Addr())
	s.logf("server: query listener on %s", queryLn.Addr())
	close(s.readyChan)

	s.wg.Add(2)
	go s.acceptLoop(ctx, adminLn, adminListener)
	go s.acceptLoop(ctx, queryLn, queryListener)
	s.wg.Wait()
	return nil
}

// WaitReady returns a channel closed once both listeners accept
// connections.
func (s *Server) WaitReady() <-chan struct{} {
	return s.readyChan
}

// AdminAddr returns the bound admin address (useful when configured with
// port 0).
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// QueryAddr returns the bound query address.
func (s *Server) QueryAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) < 2 {
		return nil
	}
	return s.listeners[1].Addr()
}

// Stop closes both listeners and signals the accept loops to exit.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		listeners := s.listeners
		s.mu.Unlock()
		for _, ln := range listeners {
			_ = ln.Close()
		}
	})
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, kind listenerKind) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logf("server: accept: %v", err)
			}
			return
		}

		select {
		case s.connSemaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-s.connSemaphore }()
				s.handleConnection(ctx, c, kind)
			}(conn)
		default:
			// Connection cap reached; shed load immediately.
			_ = conn.Close()
		}
	}
}

// handleConnection serves exactly one request/response exchange. Protocol
// errors are fatal to this connection only.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, kind listenerKind) {
	defer func() { _ = conn.Close() }()
	connID := uuid.NewString()[:8]

	payload, err := wire.ReadString(conn)
	if err != nil {
		s.logf("server: [%s] read request: %v", connID, err)
		return
	}

	replied := false
	reply := func(msg string) {
		replied = true
		if err := wire.WriteString(conn, msg); err != nil {
			s.logf("server: [%s] write reply: %v", connID, err)
		}
	}

	s.dispatch(ctx, kind, payload, reply)
	if !replied {
		// Every request gets exactly one framed reply, even when no route
		// produced one.
		reply(wire.ReplyInvalid)
	}
}

func (s *Server) dispatch(ctx context.Context, kind listenerKind, payload string, reply func(string)) {
	cmd, err := wire.SplitCommand(payload)
	if err != nil {
		reply(wire.ReplyInvalid)
		return
	}
	switch cmd.Category {
	case wire.CategoryProjectManagement:
		s.projectManagement(ctx, kind, cmd, reply)
	case wire.CategoryProjectAccess:
		s.projectAccess(ctx, kind, cmd, reply)
	default:
		reply(wire.ReplyInvalid)
	}
}

func (s *Server) projectManagement(ctx context.Context, kind listenerKind, cmd wire.Command, reply func(string)) {
	// The query listener serves status lookups only; mutations go through
	// the admin listener.
	if kind == queryListener && cmd.Action != wire.ActionInfo {
		reply(wire.ReplyInvalid)
		return
	}
	switch cmd.Action {
	case wire.ActionCreate:
		if len(cmd.Args) != 1 {
			reply(wire.ReplyInvalid)
			return
		}
		s.projects.Create(ctx, wire.Unescape(cmd.Args[0]), reply)
	case wire.ActionDelete:
		if len(cmd.Args) != 1 {
			reply(wire.ReplyInvalid)
			return
		}
		s.projects.Delete(ctx, cmd.Args[0], reply)
	case wire.ActionInfo:
		switch len(cmd.Args) {
		case 0:
			reply(s.projects.Info(ctx, ""))
		case 1:
			reply(s.projects.Info(ctx, cmd.Args[0]))
		default:
			reply(wire.ReplyInvalid)
		}
	default:
		reply(wire.ReplyInvalid)
	}
}

func (s *Server) projectAccess(ctx context.Context, kind listenerKind, cmd wire.Command, reply func(string)) {
	if kind == queryListener && cmd.Action != wire.ActionQuery && cmd.Action != wire.ActionTask {
		reply(wire.ReplyUnknownAccess)
		return
	}
	switch cmd.Action {
	case wire.ActionTask:
		s.handleTask(ctx, cmd.Args, reply)
	case wire.ActionFile:
		s.delegate(ctx, s.delegates.File, cmd.Args, reply)
	case wire.ActionBuild:
		s.delegate(ctx, s.delegates.Build, cmd.Args, reply)
	case wire.ActionDatabase:
		s.projects.ControlDB(ctx, cmd.Args, reply)
	case wire.ActionQuery:
		s.delegate(ctx, s.delegates.Query, cmd.Args, reply)
	default:
		reply(wire.ReplyUnknownAccess)
	}
}

func (s *Server) delegate(ctx context.Context, h AccessHandler, args []string, reply func(string)) {
	if h == nil {
		reply(wire.ReplyInvalid)
		return
	}
	h.Handle(ctx, args, reply)
}

// handleTask serves PA TASK sub-actions: LIST, STAT, RESU, DELE. The first
// argument after the sub-action is always the owning project id.
func (s *Server) handleTask(ctx context.Context, args []string, reply func(string)) {
	if len(args) < 2 {
		reply(wire.ReplyInvalid)
		return
	}
	projectID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		reply(wire.ReplyInvalid)
		return
	}

	switch args[0] {
	case wire.TaskList:
		tasks, err := s.tasks.List(ctx, projectID)
		if err != nil {
			reply(wire.ReplyInvalid)
			return
		}
		lines := make([]string, 0, len(tasks))
		for _, t := range tasks {
			lines = append(lines, strings.Join([]string{
				strconv.FormatInt(t.ID, 10), t.Description, t.Status,
			}, "_"))
		}
		reply(strings.Join(lines, "\n"))
	case wire.TaskStatus:
		if len(args) < 3 {
			reply(wire.ReplyInvalid)
			return
		}
		reply(strings.Join(s.tasks.Status(ctx, projectID, args[2:]), "\t"))
	case wire.TaskResult:
		if len(args) != 3 {
			reply(wire.ReplyInvalid)
			return
		}
		reply(s.tasks.Result(ctx, projectID, args[2]))
	case wire.TaskDelete:
		if len(args) != 3 {
			reply(wire.ReplyInvalid)
			return
		}
		reply(s.tasks.Delete(ctx, projectID, args[2]))
	default:
		reply(wire.ReplyInvalid)
	}
}
