// Package cli provides the interactive MindNote command-line client.
//
// It wires configuration, the local workspace repository, the sync
// services and an interactive REPL. The app is usable without an account:
// notes are kept locally and pushed once the user logs in.
//
// Key features:
//   - Register / Login / Logout (online with offline fallback)
//   - Browse workspaces: ls, open, new, sub, rename, fav, rm
//   - Edit content: text, check, toggle, num, bullet, image, file, del, mv
//   - Sync with the server, export to JSON, YAML or Markdown and import back
//   - A full-screen browser via "tui"
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
