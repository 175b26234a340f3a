// Package client is the framed-protocol client used by the CLI and by user
// apps written in Go. Every call opens a fresh connection, sends one command,
// reads one reply, and closes — the protocol keeps no connection state.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/graphbio/genograph/internal/wire"
)

// Client talks to a server (or a gateway, which speaks the same protocol).
type Client struct {
	addr    string
	timeout time.Duration
}

// New returns a client for the given address. timeout bounds the whole
// request/reply exchange; zero means 30 seconds.
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{addr: addr, timeout: timeout}
}

// Send transmits one raw command payload and returns the reply.
func (c *Client) Send(ctx context.Context, payload string) (string, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("client: dial %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := wire.WriteString(conn, payload); err != nil {
		return "", err
	}
	return wire.ReadString(conn)
}

// CreateProject creates a project and returns its id. Underscores in the
// name survive the trip.
func (c *Client) CreateProject(ctx context.Context, name string) (int64, error) {
	reply, err := c.Send(ctx, wire.Join(wire.CategoryProjectManagement, wire.ActionCreate, name))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(reply, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("client: create project %q refused: %q", name, reply)
	}
	return id, nil
}

// DeleteProject deletes a project. The server refuses with "-1" when the
// project is unknown or its database instance could not be stopped.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	rawID := strconv.FormatInt(id, 10)
	reply, err := c.Send(ctx, wire.Join(wire.CategoryProjectManagement, wire.ActionDelete, rawID))
	if err != nil {
		return err
	}
	if reply != rawID {
		return fmt.Errorf("client: delete project %d refused: %q", id, reply)
	}
	return nil
}

// ProjectStatus returns the status string of one project.
func (c *Client) ProjectStatus(ctx context.Context, id int64) (string, error) {
	reply, err := c.Send(ctx, wire.Join(wire.CategoryProjectManagement, wire.ActionInfo, strconv.FormatInt(id, 10)))
	if err != nil {
		return "", err
	}
	if reply == wire.ReplyInvalid {
		return "", fmt.Errorf("client: no project with id %d", id)
	}
	return reply, nil
}

// ListProjects returns the raw listing: one "name\tid\tstatus" line per
// project, ordered by name. Empty when no projects exist.
func (c *Client) ListProjects(ctx context.Context) (string, error) {
	reply, err := c.Send(ctx, wire.CategoryProjectManagement+wire.ActionInfo)
	if err != nil {
		return "", err
	}
	if reply == wire.ReplyInvalid {
		return "", fmt.Errorf("client: project listing failed")
	}
	return reply, nil
}

// ControlDB sends a DB control command (START, STOP, STATUS) for a project
// and returns the server's acknowledgement.
func (c *Client) ControlDB(ctx context.Context, id int64, command string) (string, error) {
	return c.Send(ctx, wire.Join(wire.CategoryProjectAccess, wire.ActionDatabase,
		strconv.FormatInt(id, 10), command))
}

// TaskStatus returns the status of each listed task, "Unknown" per task the
// server cannot find.
func (c *Client) TaskStatus(ctx context.Context, projectID int64, taskIDs ...string) (string, error) {
	args := append([]string{wire.TaskStatus, strconv.FormatInt(projectID, 10)}, taskIDs...)
	return c.Send(ctx, wire.Join(wire.CategoryProjectAccess, wire.ActionTask, args...))
}

// TaskResult fetches a task's results. Results are single-fetch: the task is
// gone afterwards and a repeat call yields "-1".
func (c *Client) TaskResult(ctx context.Context, projectID int64, taskID string) (string, error) {
	return c.Send(ctx, wire.Join(wire.CategoryProjectAccess, wire.ActionTask,
		wire.TaskResult, strconv.FormatInt(projectID, 10), taskID))
}

// TaskDelete discards a task without fetching its results.
func (c *Client) TaskDelete(ctx context.Context, projectID int64, taskID string) (string, error) {
	return c.Send(ctx, wire.Join(wire.CategoryProjectAccess, wire.ActionTask,
		wire.TaskDelete, strconv.FormatInt(projectID, 10), taskID))
}

// TaskList returns the raw task listing of a project: one
// "id_description_status" line per task.
func (c *Client) TaskList(ctx context.Context, projectID int64) (string, error) {
	return c.Send(ctx, wire.Join(wire.CategoryProjectAccess, wire.ActionTask,
		wire.TaskList, strconv.FormatInt(projectID, 10)))
}
