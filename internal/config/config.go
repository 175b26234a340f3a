// Package config loads the server and gateway configuration. Values come
// from a YAML config file, overridden by GENOGRAPH_* environment variables;
// everything has a usable default so a bare binary starts on localhost.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved configuration snapshot. It is built once at startup
// and passed by value; nothing mutates it afterwards.
type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
	Store   StoreConfig
	Pool    PoolConfig
	GraphDB GraphDBConfig
	Project ProjectConfig
	Log     LogConfig
}

// ServerConfig configures the two server listeners.
type ServerConfig struct {
	AdminAddr string
	QueryAddr string
	MaxConns  int
}

// GatewayConfig configures the public proxy.
type GatewayConfig struct {
	ListenAddr string
	ServerAddr string
}

// StoreConfig locates the main database.
type StoreConfig struct {
	Path string
}

// PoolConfig holds the configured port universe, as a comma-separated list
// of ports and inclusive ranges, e.g. "7687-7746, 8080".
type PoolConfig struct {
	ProjectPorts string
}

// GraphDBConfig locates the graph-database installation that gets copied
// into each new project.
type GraphDBConfig struct {
	Neo4jPath string
}

// ProjectConfig configures project storage on disk.
type ProjectConfig struct {
	Dir         string
	DeleteGrace time.Duration
}

// LogConfig configures the rotating server log.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads the configuration. path may name an explicit config file; when
// empty, config.yaml is searched in the working directory, then
// ~/.config/genograph, then /etc/genograph. A missing config file is not an
// error, the defaults and environment take over.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			v.AddConfigPath(cwd)
		}
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "genograph"))
		}
		v.AddConfigPath("/etc/genograph")
	}

	// GENOGRAPH_SERVER_ADMIN_ADDR overrides server.admin_addr, and so on.
	v.SetEnvPrefix("GENOGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.admin_addr", "127.0.0.1:7686")
	v.SetDefault("server.query_addr", "127.0.0.1:7685")
	v.SetDefault("server.max_conns", 100)
	v.SetDefault("gateway.listen_addr", "0.0.0.0:7684")
	v.SetDefault("gateway.server_addr", "127.0.0.1:7685")
	v.SetDefault("store.path", "genograph.db")
	v.SetDefault("pool.project_ports", "7687-7746")
	v.SetDefault("graphdb.neo4j_path", "")
	v.SetDefault("project.dir", "Projects")
	v.SetDefault("project.delete_grace", "60s")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	return Config{
		Server: ServerConfig{
			AdminAddr: v.GetString("server.admin_addr"),
			QueryAddr: v.GetString("server.query_addr"),
			MaxConns:  v.GetInt("server.max_conns"),
		},
		Gateway: GatewayConfig{
			ListenAddr: v.GetString("gateway.listen_addr"),
			ServerAddr: v.GetString("gateway.server_addr"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Pool: PoolConfig{
			ProjectPorts: v.GetString("pool.project_ports"),
		},
		GraphDB: GraphDBConfig{
			Neo4jPath: v.GetString("graphdb.neo4j_path"),
		},
		Project: ProjectConfig{
			Dir:         v.GetString("project.dir"),
			DeleteGrace: v.GetDuration("project.delete_grace"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}, nil
}
