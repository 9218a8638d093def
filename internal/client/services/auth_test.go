package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mindnote/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_SendsSaltAndVerifier(t *testing.T) {
	fc := newFakeClient()
	a := NewAuthService(fc, setupDB(t), nil)

	require.NoError(t, a.Register(context.Background(), "alice", []byte("pw")))
	assert.Equal(t, "alice", fc.LastRegisterUser)
	require.Len(t, fc.LastRegisterSalt, cryptox.SaltSize)

	key := cryptox.DeriveMasterKey([]byte("pw"), fc.LastRegisterSalt)
	assert.Equal(t, cryptox.MakeVerifier(key), fc.LastRegisterKey)

	fc.RegisterErr = errors.New("taken")
	require.ErrorContains(t, a.Register(context.Background(), "alice", []byte("pw")), "taken")
}

func TestOnlineLogin_SavesOfflineDataAndTokens(t *testing.T) {
	db := setupDB(t)
	fc := newFakeClient()
	fc.GetSaltRet = []byte("0123456789abcdef0123456789abcdef")
	a := NewAuthService(fc, db, nil)
	ctx := context.Background()

	s, err := a.OnlineLogin(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.Empty(t, s.Previous)

	meta := metadata.NewSQLiteRepository(db)
	m, err := meta.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), m[metadata.KeyUsername])
	assert.Equal(t, fc.GetSaltRet, m[metadata.KeySalt])
	assert.Equal(t, fc.LastLoginKey, m[metadata.KeyVerifier])

	var tok sealedTokens
	require.NoError(t, cryptox.Open(m[metadata.KeyTokens], s.Key, &tok))
	assert.Equal(t, sealedTokens{Access: "A-alice", Refresh: "R-alice"}, tok)

	s, err = a.OnlineLogin(ctx, "bob", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Previous)
}

func TestOnlineLogin_Errors(t *testing.T) {
	fc := newFakeClient()
	a := NewAuthService(fc, setupDB(t), nil)
	ctx := context.Background()

	fc.GetSaltErr = client.ErrUnavailable
	_, err := a.OnlineLogin(ctx, "u", []byte("pw"))
	require.ErrorIs(t, err, client.ErrUnavailable)
	require.ErrorContains(t, err, "get salt error")

	fc.GetSaltErr = nil
	fc.LoginErr = client.ErrUnauthorized
	_, err = a.OnlineLogin(ctx, "u", []byte("pw"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestOfflineLogin(t *testing.T) {
	db := setupDB(t)
	fc := newFakeClient()
	fc.GetSaltRet = []byte("0123456789abcdef0123456789abcdef")
	a := NewAuthService(fc, db, nil)
	ctx := context.Background()

	_, err := a.OfflineLogin(ctx, "alice", []byte("pw"))
	require.ErrorIs(t, err, client.ErrLocalDataNotAvailable)

	_, err = a.OnlineLogin(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	fc.SetTokens("", "")

	_, err = a.OfflineLogin(ctx, "alice", []byte("wrong"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
	_, err = a.OfflineLogin(ctx, "bob", []byte("pw"))
	require.ErrorIs(t, err, client.ErrUnauthorized)

	s, err := a.OfflineLogin(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Previous)
	access, refresh := fc.Tokens()
	assert.Equal(t, "A-alice", access)
	assert.Equal(t, "R-alice", refresh)
}

func TestRefreshedTokensArePersisted(t *testing.T) {
	db := setupDB(t)
	fc := newFakeClient()
	fc.GetSaltRet = []byte("0123456789abcdef0123456789abcdef")
	a := NewAuthService(fc, db, nil)
	ctx := context.Background()

	s, err := a.OnlineLogin(ctx, "alice", []byte("pw"))
	require.NoError(t, err)
	require.NotNil(t, fc.onRefresh)

	fc.onRefresh("A2", "R2")

	sealed, err := metadata.NewSQLiteRepository(db).Get(ctx, metadata.KeyTokens)
	require.NoError(t, err)
	var tok sealedTokens
	require.NoError(t, cryptox.Open(sealed, s.Key, &tok))
	assert.Equal(t, "R2", tok.Refresh)
}

func TestLogout_ForgetsTokensKeepsCredentials(t *testing.T) {
	db := setupDB(t)
	fc := newFakeClient()
	fc.GetSaltRet = []byte("0123456789abcdef0123456789abcdef")
	a := NewAuthService(fc, db, nil)
	ctx := context.Background()

	_, err := a.OnlineLogin(ctx, "alice", []byte("pw"))
	require.NoError(t, err)

	fc.LogoutErr = client.ErrUnavailable
	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, 1, fc.LogoutCalls)

	m, err := metadata.NewSQLiteRepository(db).List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, m, metadata.KeyTokens)
	assert.Contains(t, m, metadata.KeyVerifier)

	user, err := a.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	fc.LogoutErr = errors.New("boom")
	require.ErrorContains(t, a.Logout(ctx), "boom")
}

func TestPingCloseClear(t *testing.T) {
	db := setupDB(t)
	fc := newFakeClient()
	a := NewAuthService(fc, db, nil)
	ctx := context.Background()

	fc.PingErr = client.ErrUnavailable
	require.ErrorIs(t, a.Ping(ctx), client.ErrUnavailable)

	require.NoError(t, metadata.NewSQLiteRepository(db).Set(ctx, metadata.KeyUsername, []byte("x")))
	require.NoError(t, a.ClearOfflineData(ctx))
	user, err := a.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Empty(t, user)

	fc.CloseErr = errors.New("closed")
	require.ErrorContains(t, a.Close(ctx), "closed")
}
