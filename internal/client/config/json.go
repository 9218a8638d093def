package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mindnote/internal/flagx"
	"github.com/dmitrijs2005/mindnote/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string          `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration  `json:"online_check_interval"`
	DataDir             string          `json:"data_dir"`
	AutoSyncInterval    *timex.Duration `json:"auto_sync_interval"`
	ChangesURL          *string         `json:"changes_url"`
	SyncPolicy          string          `json:"sync_policy"`
	LogLevel            string          `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config. Keys missing from the file keep their current value;
// auto_sync_interval and changes_url may be set to zero or "" explicitly
// to disable the feature. Read or unmarshal errors panic.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.AutoSyncInterval != nil {
		cfg.AutoSyncInterval = jc.AutoSyncInterval.Duration
	}
	if jc.ChangesURL != nil {
		cfg.ChangesURL = *jc.ChangesURL
	}
	if jc.SyncPolicy != "" {
		cfg.SyncPolicy = jc.SyncPolicy
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
