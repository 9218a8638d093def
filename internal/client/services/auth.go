// Package services contains the application services of the MindNote
// client: authentication with offline fallback, and synchronisation of the
// local workspace list with the server.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/cryptox"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/logging"
)

// Session describes a successful login.
type Session struct {
	Username string
	Key      []byte
	// Previous is the account that was signed in on this device before, or
	// "" when the local data was created as a guest.
	Previous string
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server and persist offline auth data.
//   - OfflineLogin: verify credentials against locally cached data and restore
//     the sealed tokens.
//   - Logout: revoke the refresh token and forget tokens; workspaces stay.
//   - ClearOfflineData: wipe locally cached auth metadata.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	OnlineLogin(ctx context.Context, username string, password []byte) (*Session, error)
	OfflineLogin(ctx context.Context, username string, password []byte) (*Session, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type refreshNotifier interface {
	OnRefresh(fn func(access, refresh string))
}

type sealedTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authService struct {
	client client.Client
	db     *sql.DB
	logger logging.Logger

	mu  sync.Mutex
	key []byte
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
// Rotated tokens are re-sealed and stored as soon as the client reports them.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	if logger == nil {
		logger = logging.Nop{}
	}
	a := &authService{client: c, db: db, logger: logger.With("module", "auth")}
	if rn, ok := c.(refreshNotifier); ok {
		rn.OnRefresh(func(access, refresh string) {
			if err := a.persistTokens(context.Background(), access, refresh); err != nil {
				a.logger.Warn(context.Background(), "saving refreshed tokens failed", "error", err)
			}
		})
	}
	return a
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

func (a *authService) setKey(key []byte) {
	a.mu.Lock()
	if a.key != nil {
		common.WipeByteArray(a.key)
	}
	a.key = key
	a.mu.Unlock()
}

func (a *authService) persistTokens(ctx context.Context, access, refresh string) error {
	a.mu.Lock()
	key := append([]byte(nil), a.key...)
	a.mu.Unlock()
	if len(key) == 0 {
		return nil
	}
	defer common.WipeByteArray(key)

	sealed, err := cryptox.Seal(sealedTokens{Access: access, Refresh: refresh}, key)
	if err != nil {
		return err
	}
	return a.getMetadataRepo().Set(ctx, metadata.KeyTokens, sealed)
}

func (a *authService) CurrentUser(ctx context.Context) (string, error) {
	v, err := a.getMetadataRepo().Get(ctx, metadata.KeyUsername)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// OfflineLogin derives a master key from (password,salt) stored locally
// and verifies it against the locally cached verifier. If local data is
// missing it returns client.ErrLocalDataNotAvailable; if verification fails,
// client.ErrUnauthorized.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) (*Session, error) {
	metadataRepo := a.getMetadataRepo()

	saved, err := metadataRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	savedUsername, savedSalt, savedVerifier := saved[metadata.KeyUsername], saved[metadata.KeySalt], saved[metadata.KeyVerifier]
	if savedUsername == nil || savedSalt == nil || savedVerifier == nil {
		return nil, client.ErrLocalDataNotAvailable
	}
	if string(savedUsername) != username {
		return nil, client.ErrUnauthorized
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, savedSalt)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if subtle.ConstantTimeCompare(savedVerifier, verifierCandidate) == 0 {
		return nil, client.ErrUnauthorized
	}

	if sealed := saved[metadata.KeyTokens]; sealed != nil {
		var t sealedTokens
		if err := cryptox.Open(sealed, masterKeyCandidate, &t); err != nil {
			a.logger.Warn(ctx, "cached tokens unreadable", "error", err)
		} else {
			a.client.SetTokens(t.Access, t.Refresh)
		}
	}

	a.setKey(append([]byte(nil), masterKeyCandidate...))
	return &Session{Username: username, Key: masterKeyCandidate, Previous: username}, nil
}

// OnlineLogin authenticates against the server, saves offline metadata
// (username, salt, verifier, sealed tokens) and returns the session.
func (a *authService) OnlineLogin(ctx context.Context, userName string, password []byte) (*Session, error) {
	previous, err := a.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("read previous user: %w", err)
	}

	salt, err := a.client.GetSalt(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, salt)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if err := a.client.Login(ctx, userName, verifierCandidate); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	access, refresh := a.client.Tokens()
	sealed, err := cryptox.Seal(sealedTokens{Access: access, Refresh: refresh}, masterKeyCandidate)
	if err != nil {
		return nil, fmt.Errorf("seal tokens: %w", err)
	}

	if err := a.saveOfflineData(ctx, userName, salt, verifierCandidate, sealed); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}

	a.setKey(append([]byte(nil), masterKeyCandidate...))
	return &Session{Username: userName, Key: masterKeyCandidate, Previous: previous}, nil
}

// saveOfflineData persists what offline login needs in a single transaction.
func (a *authService) saveOfflineData(ctx context.Context, userName string, salt, verifier, tokens []byte) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metadataRepo := metadata.NewSQLiteRepository(tx)
		if err := metadataRepo.Set(ctx, metadata.KeyUsername, []byte(userName)); err != nil {
			return err
		}
		if err := metadataRepo.Set(ctx, metadata.KeySalt, salt); err != nil {
			return err
		}
		if err := metadataRepo.Set(ctx, metadata.KeyVerifier, verifier); err != nil {
			return err
		}
		return metadataRepo.Set(ctx, metadata.KeyTokens, tokens)
	})
}

// Register creates a new account on the server. It generates a random salt,
// derives a master key from the provided password, computes a verifier,
// and sends salt/verifier to the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	return a.client.Register(ctx, username, salt, verifier)
}

// Logout revokes the session on the server when it is reachable and
// always forgets the tokens locally. Cached credentials stay so that the
// same user can still log in offline.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	a.setKey(nil)
	if derr := a.getMetadataRepo().Delete(ctx, metadata.KeyTokens); derr != nil {
		return derr
	}
	if errors.Is(err, client.ErrUnavailable) {
		a.logger.Warn(ctx, "server unreachable, logged out locally")
		return nil
	}
	return err
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	a.setKey(nil)
	return a.client.Close()
}

// ClearOfflineData wipes locally cached auth metadata.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	return a.getMetadataRepo().Clear(ctx)
}
