package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-i int      online check interval (seconds)
//	-d string   data directory
//	-s int      auto-sync interval (seconds, 0 disables)
//	-w string   websocket URL of the change feed ("" disables)
//	-m string   conflict policy (server-wins or local-wins)
//	-l string   log level
//
// Only the flags registered here are picked out of os.Args, so flags of
// other components do not interfere.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	autoSyncInterval := fs.Int("s", int(cfg.AutoSyncInterval.Seconds()), "auto-sync interval (in seconds, 0 disables)")
	fs.StringVar(&cfg.ChangesURL, "w", cfg.ChangesURL, "websocket URL of the change feed")
	fs.StringVar(&cfg.SyncPolicy, "m", cfg.SyncPolicy, "conflict policy: server-wins or local-wins")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	flagx.ParseOwned(fs, os.Args[1:])

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.AutoSyncInterval = time.Duration(*autoSyncInterval) * time.Second
}
