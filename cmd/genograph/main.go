package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphbio/genograph/internal/client"
	"github.com/graphbio/genograph/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath string
	serverAddr string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "genograph",
	Short: "genograph - project management server for comparative genomics",
	Long: `genograph hosts isolated genomics projects, each with its own graph
database instance, behind a framed TCP protocol. The same binary runs the
server, the public gateway, and the admin client commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the genograph version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("genograph", Version)
	},
}

// adminClient returns a client for the server's admin listener, honoring the
// --server flag.
func adminClient() *client.Client {
	addr := serverAddr
	if addr == "" {
		addr = cfg.Server.AdminAddr
	}
	return client.New(addr, 30*time.Second)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "server admin address (default from config)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
