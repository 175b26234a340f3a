package graphdb

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Neo4j provisions and runs Neo4j instances from a pristine installation
// tree. It implements both Provisioner and Runner.
type Neo4j struct {
	// InstallPath is the root of the Neo4j installation that project
	// instances are copied from.
	InstallPath string
}

var (
	_ Provisioner = (*Neo4j)(nil)
	_ Runner      = (*Neo4j)(nil)
)

// Provision copies the installation tree into dir and binds the instance to
// the two leased ports.
func (n *Neo4j) Provision(ctx context.Context, dir string, boltPort, httpPort int) error {
	instanceDir := filepath.Join(dir, InstanceDirName)
	if err := copyTree(n.InstallPath, instanceDir); err != nil {
		return fmt.Errorf("graphdb: provision %s: %w", dir, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return RewriteListenPorts(ConfPath(dir), boltPort, httpPort)
}

// Start launches the instance and waits for the control command to return.
func (n *Neo4j) Start(ctx context.Context, dir string) error {
	return n.control(ctx, dir, "start")
}

// Stop shuts the instance down. A non-zero exit means the instance may
// still be running.
func (n *Neo4j) Stop(ctx context.Context, dir string) error {
	return n.control(ctx, dir, "stop")
}

// Status returns nil while the instance reports itself as running.
func (n *Neo4j) Status(ctx context.Context, dir string) error {
	return n.control(ctx, dir, "status")
}

func (n *Neo4j) control(ctx context.Context, dir, action string) error {
	bin := filepath.Join(dir, InstanceDirName, "bin", "neo4j")
	cmd := exec.CommandContext(ctx, bin, action)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("graphdb: %s %s: %w: %s", action, dir, err, out)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
