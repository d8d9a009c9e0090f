// Package config resolves the node configuration from defaults, an optional
// YAML file and SYNK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/synknodes/synknode/pkg/synkerr"
)

// Environment variables read by Load.
const (
	EnvConfigFile     = "SYNK_CONFIG"
	EnvNodeID         = "SYNK_NODE_ID"
	EnvHost           = "SYNK_HOST"
	EnvTCPPort        = "SYNK_TCP_PORT"
	EnvHTTPPort       = "SYNK_HTTP_PORT"
	EnvDataDir        = "SYNK_DATA_DIR"
	EnvPeers          = "SYNK_PEERS"
	EnvLogLevel       = "SYNK_LOG_LEVEL"
	EnvLogFormat      = "SYNK_LOG_FORMAT"
	EnvTCPReadTimeout = "SYNK_TCP_READ_TIMEOUT"
	EnvSnapshotFsync  = "SYNK_SNAPSHOT_FSYNC"
	EnvMetrics        = "SYNK_METRICS"
	EnvMCP            = "SYNK_MCP"
)

// Config is the resolved node configuration.
type Config struct {
	NodeID   string
	Host     string
	TCPPort  int
	HTTPPort int
	DataDir  string
	// Peers is accepted for forward compatibility. Nothing contacts them.
	Peers []string

	LogLevel  string
	LogFormat string

	TCPReadTimeout time.Duration
	SnapshotFsync  bool
	MetricsEnabled bool
	MCPEnabled     bool
}

// fileConfig mirrors Config for YAML. Pointers tell "absent" from zero values.
type fileConfig struct {
	NodeID         *string  `yaml:"node_id"`
	Host           *string  `yaml:"host"`
	TCPPort        *int     `yaml:"tcp_port"`
	HTTPPort       *int     `yaml:"http_port"`
	DataDir        *string  `yaml:"data_dir"`
	Peers          []string `yaml:"peers"`
	LogLevel       *string  `yaml:"log_level"`
	LogFormat      *string  `yaml:"log_format"`
	TCPReadTimeout *string  `yaml:"tcp_read_timeout"`
	SnapshotFsync  *bool    `yaml:"snapshot_fsync"`
	MetricsEnabled *bool    `yaml:"metrics_enabled"`
	MCPEnabled     *bool    `yaml:"mcp_enabled"`
}

// Default returns the built-in configuration with a fresh random node id.
func Default() Config {
	return Config{
		NodeID:         uuid.NewString(),
		Host:           "127.0.0.1",
		TCPPort:        7000,
		HTTPPort:       8080,
		DataDir:        "./data",
		LogLevel:       "info",
		LogFormat:      "text",
		SnapshotFsync:  true,
		MetricsEnabled: true,
	}
}

// Load resolves and validates the configuration.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TCPAddr is the TCP listen address.
func (c Config) TCPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
}

// HTTPAddr is the HTTP listen address.
func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// Validate rejects values no listener or store could work with.
func (c Config) Validate() error {
	if err := validPort("tcp_port", c.TCPPort); err != nil {
		return err
	}
	if err := validPort("http_port", c.HTTPPort); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return synkerr.Config("validate", errors.New("data_dir must not be empty"))
	}
	if strings.TrimSpace(c.NodeID) == "" {
		return synkerr.Config("validate", errors.New("node_id must not be empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return synkerr.Config("validate", fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return synkerr.Config("validate", fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if c.TCPReadTimeout < 0 {
		return synkerr.Config("validate", errors.New("tcp_read_timeout must not be negative"))
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return synkerr.Config("validate", fmt.Errorf("%s %d out of range 0..65535", name, port))
	}
	return nil
}

// loadFile overlays a YAML file onto cfg. Unknown keys are rejected.
func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return synkerr.Config("open "+path, err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return synkerr.Config("parse "+path, err)
	}

	if fc.NodeID != nil {
		cfg.NodeID = *fc.NodeID
	}
	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.TCPPort != nil {
		cfg.TCPPort = *fc.TCPPort
	}
	if fc.HTTPPort != nil {
		cfg.HTTPPort = *fc.HTTPPort
	}
	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.Peers != nil {
		cfg.Peers = cleanPeers(fc.Peers)
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		cfg.LogFormat = *fc.LogFormat
	}
	if fc.TCPReadTimeout != nil {
		d, err := time.ParseDuration(*fc.TCPReadTimeout)
		if err != nil {
			return synkerr.Config("parse tcp_read_timeout", err)
		}
		cfg.TCPReadTimeout = d
	}
	if fc.SnapshotFsync != nil {
		cfg.SnapshotFsync = *fc.SnapshotFsync
	}
	if fc.MetricsEnabled != nil {
		cfg.MetricsEnabled = *fc.MetricsEnabled
	}
	if fc.MCPEnabled != nil {
		cfg.MCPEnabled = *fc.MCPEnabled
	}
	return nil
}

// applyEnv overlays the SYNK_* variables that are set. Empty counts as unset.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvNodeID); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv(EnvPeers); v != "" {
		cfg.Peers = cleanPeers(strings.Split(v, ","))
	}

	if err := envInt(EnvTCPPort, &cfg.TCPPort); err != nil {
		return err
	}
	if err := envInt(EnvHTTPPort, &cfg.HTTPPort); err != nil {
		return err
	}
	if v := os.Getenv(EnvTCPReadTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return synkerr.Config("parse "+EnvTCPReadTimeout, err)
		}
		cfg.TCPReadTimeout = d
	}
	if err := envBool(EnvSnapshotFsync, &cfg.SnapshotFsync); err != nil {
		return err
	}
	if err := envBool(EnvMetrics, &cfg.MetricsEnabled); err != nil {
		return err
	}
	if err := envBool(EnvMCP, &cfg.MCPEnabled); err != nil {
		return err
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return synkerr.Config("parse "+name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return synkerr.Config("parse "+name, err)
	}
	*dst = b
	return nil
}

func cleanPeers(raw []string) []string {
	peers := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}
