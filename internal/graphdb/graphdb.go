// Package graphdb drives the private graph-database instance behind each
// project. The instances are external collaborators: the core only
// provisions their on-disk copy, rewrites their listening ports, and starts
// or stops them through their own control binary.
package graphdb

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InstanceDirName is the subdirectory of a project directory that holds its
// private graph database copy.
const InstanceDirName = "proj_graph_db"

// Provisioner creates a project's private database instance under dir,
// listening on the two given ports.
type Provisioner interface {
	Provision(ctx context.Context, dir string, boltPort, httpPort int) error
}

// Runner controls a provisioned instance. Status returns nil while the
// instance is running. A Stop that returns an error means the instance may
// still be serving traffic; callers must not destroy its state.
type Runner interface {
	Start(ctx context.Context, dir string) error
	Stop(ctx context.Context, dir string) error
	Status(ctx context.Context, dir string) error
}

// The stock config ships with these exact lines; provisioning replaces them
// with the leased ports and disables TLS, which the instances never use on
// loopback.
const (
	defaultBoltLine  = "#dbms.connector.bolt.listen_address=:7687"
	defaultHTTPLine  = "#dbms.connector.http.listen_address=:7474"
	defaultHTTPSLine = "dbms.connector.https.enabled=true"
)

// RewriteListenPorts edits an instance config file in place, binding the
// bolt and http connectors to the leased ports. Lines other than the three
// known defaults pass through unchanged.
func RewriteListenPorts(confPath string, boltPort, httpPort int) error {
	in, err := os.Open(confPath)
	if err != nil {
		return fmt.Errorf("graphdb: open config: %w", err)
	}
	defer in.Close()

	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch line := scanner.Text(); line {
		case defaultBoltLine:
			lines = append(lines, fmt.Sprintf("dbms.connector.bolt.listen_address=:%d", boltPort))
		case defaultHTTPLine:
			lines = append(lines, fmt.Sprintf("dbms.connector.http.listen_address=:%d", httpPort))
		case defaultHTTPSLine:
			lines = append(lines, "dbms.connector.https.enabled=false")
		default:
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("graphdb: read config: %w", err)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(confPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("graphdb: write config: %w", err)
	}
	return nil
}

// ConfPath returns the config file location inside an instance directory.
func ConfPath(dir string) string {
	return filepath.Join(dir, InstanceDirName, "conf", "neo4j.conf")
}
