// Package common contains shared constants and sentinel errors used across
// MindNote components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName carries "Bearer <jwt>" on the HTTP gateway.
const AuthorizationHeaderName = "Authorization"

// Conflict resolution policies shared by the sync client and the merge API.
const (
	PolicyServerWins = "server-wins"
	PolicyLocalWins  = "local-wins"
)
