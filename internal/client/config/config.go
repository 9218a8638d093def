package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
)

// Config holds runtime settings for the MindNote client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DataDir: directory holding workspaces.json, the sync database and media.
//   - AutoSyncInterval: period of background sync; zero disables it.
//   - ChangesURL: websocket URL of the server change feed; empty disables it.
//   - SyncPolicy: conflict policy, "server-wins" or "local-wins".
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DataDir             string
	AutoSyncInterval    time.Duration
	ChangesURL          string
	SyncPolicy          string
	LogLevel            string
}

// DefaultDataDir returns <user config dir>/mindnote, or ./mindnote when
// the user config dir is unknown.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "mindnote")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = DefaultDataDir()
	c.AutoSyncInterval = 30 * time.Second
	c.ChangesURL = "ws://127.0.0.1:8080/api/changes/ws"
	c.SyncPolicy = common.PolicyServerWins
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
