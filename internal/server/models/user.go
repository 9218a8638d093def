package models

import "time"

// User is an account. Salt and Verifier come from the client-side key
// derivation; the password itself never reaches the server.
// CurrentVersion is the user's sync counter, bumped on every accepted write.
type User struct {
	ID             string
	UserName       string
	Salt           []byte
	Verifier       []byte
	CurrentVersion int64
	CreatedAt      time.Time
}
