package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphbio/genograph/internal/gateway"
	"github.com/graphbio/genograph/internal/graphdb"
	"github.com/graphbio/genograph/internal/pool"
	"github.com/graphbio/genograph/internal/project"
	"github.com/graphbio/genograph/internal/server"
	"github.com/graphbio/genograph/internal/store/sqlite"
	"github.com/graphbio/genograph/internal/task"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the genograph server",
	Long: `Runs both server listeners: the admin listener that accepts every
command, and the query listener that serves status lookups and queries only.
The gateway is a separate process, see "genograph gateway".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the public gateway",
	Long: `Runs the stateless proxy user apps connect to. Every request is
forwarded verbatim to the server's query listener over a fresh connection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateway()
	},
}

func runServer() error {
	logf, logCloser := setupLogger(cfg.Log)
	defer func() { _ = logCloser.Close() }()

	st, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	pm := pool.NewManager(st)
	ports := pool.ParsePortRanges(cfg.Pool.ProjectPorts)
	if len(ports) == 0 {
		return fmt.Errorf("no usable ports in pool.project_ports %q", cfg.Pool.ProjectPorts)
	}
	if err := pm.Sync(ctx, ports); err != nil {
		return err
	}
	logf("main: port pool synced, %d ports configured", len(ports))

	neo4j := &graphdb.Neo4j{InstallPath: cfg.GraphDB.Neo4jPath}
	projects := project.NewManager(st, pm, neo4j, neo4j, project.Options{
		ProjectsDir: cfg.Project.Dir,
		DeleteGrace: cfg.Project.DeleteGrace,
		Logf:        logf,
	})
	tasks := task.NewRegistry(st, logf)

	srv := server.New(server.Config{
		AdminAddr: cfg.Server.AdminAddr,
		QueryAddr: cfg.Server.QueryAddr,
		MaxConns:  cfg.Server.MaxConns,
	}, projects, tasks, server.Delegates{}, logf)

	go handleSignals(logf, srv.Stop)
	return srv.Start(ctx)
}

func runGateway() error {
	logf, logCloser := setupLogger(cfg.Log)
	defer func() { _ = logCloser.Close() }()

	gw := gateway.New(gateway.Config{
		ListenAddr: cfg.Gateway.ListenAddr,
		ServerAddr: cfg.Gateway.ServerAddr,
	}, logf)

	go handleSignals(logf, gw.Stop)
	return gw.Start(context.Background())
}

func handleSignals(logf func(string, ...interface{}), stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logf("main: received %v, shutting down", sig)
	stop()
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(gatewayCmd)
}
