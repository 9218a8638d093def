// Package config loads runtime configuration for the MindNote client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "data_dir": "/home/me/.config/mindnote",
//	  "auto_sync_interval": "30s",
//	  "changes_url": "ws://127.0.0.1:8080/api/changes/ws",
//	  "sync_policy": "server-wins",
//	  "log_level": "warn"
//	}
package config
