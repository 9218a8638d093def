// Package client contains the client-side transport and local state
// bootstrap for MindNote.
//
// The Client interface is the contract the services talk to: auth calls,
// Sync, the Compare/Resolve guest merge and presigned media URLs.
// GRPCClient implements it over the JSON-coded gRPC service. It attaches
// the access token to protected calls, refreshes it once when the server
// reports it expired and maps status codes to the sentinel errors
// ErrUnauthorized, ErrUnavailable and ErrConflict.
//
// InitDatabase opens the SQLite file that holds session metadata, the
// outbox of local edits and the media upload queue, applying the embedded
// goose migrations first.
package client
