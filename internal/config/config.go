// Package config loads a node's runtime configuration from flags and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// EnvPrefix namespaces the environment-variable fallback for every flag.
const EnvPrefix = "LEDGERCHAIN_"

// NodeConfig parameterizes a single daemon process.
type NodeConfig struct {
	ID               string
	ListenAddr       string
	PeerAddrs        []string
	PrivateKeyHex    string
	BlockTime        time.Duration
	MempoolCapacity  int
	MetricsAddr      string
	LogLevel         string
}

// Defaults returns a NodeConfig with the spec's default values applied.
func Defaults() NodeConfig {
	return NodeConfig{
		BlockTime:       5 * time.Second,
		MempoolCapacity: 1000,
		LogLevel:        "info",
	}
}

// BindFlags registers the node's flags on fs, seeded from Defaults.
func BindFlags(fs *pflag.FlagSet) *NodeConfig {
	cfg := Defaults()
	fs.StringVar(&cfg.ID, "id", cfg.ID, "node id")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "this node's transport address")
	fs.StringSliceVar(&cfg.PeerAddrs, "peer-addr", cfg.PeerAddrs, "peer transport address (repeatable)")
	fs.StringVar(&cfg.PrivateKeyHex, "private-key", cfg.PrivateKeyHex, "hex-encoded leader private key; omit for a follower")
	fs.DurationVar(&cfg.BlockTime, "block-time", cfg.BlockTime, "interval between leader block production ticks")
	fs.IntVar(&cfg.MempoolCapacity, "mempool-capacity", cfg.MempoolCapacity, "maximum pending transaction count")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on; empty disables metrics")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "zap log level (debug, info, warn, error)")
	return &cfg
}

// ApplyEnv overlays environment-variable overrides (LEDGERCHAIN_ID,
// LEDGERCHAIN_LISTEN_ADDR, ...) onto cfg. A set variable replaces the
// field's current value whether that value is a default or was given
// explicitly by flag; explicit flags do not take precedence.
func ApplyEnv(cfg *NodeConfig) {
	if v, ok := lookupEnv("ID"); ok {
		cfg.ID = v
	}
	if v, ok := lookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := lookupEnv("PEER_ADDRS"); ok {
		cfg.PeerAddrs = strings.Split(v, ",")
	}
	if v, ok := lookupEnv("PRIVATE_KEY"); ok {
		cfg.PrivateKeyHex = v
	}
	if v, ok := lookupEnv("BLOCK_TIME"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BlockTime = d
		}
	}
	if v, ok := lookupEnv("MEMPOOL_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MempoolCapacity = n
		}
	}
	if v, ok := lookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(EnvPrefix + name)
}

// IsLeader reports whether this node is configured with a private key and
// should run the validator (producer) loop.
func (c NodeConfig) IsLeader() bool {
	return c.PrivateKeyHex != ""
}

// Validate checks the minimal set of fields a node needs to start.
func (c NodeConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("config: id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen-addr is required")
	}
	if c.MempoolCapacity <= 0 {
		return fmt.Errorf("config: mempool-capacity must be positive")
	}
	return nil
}
