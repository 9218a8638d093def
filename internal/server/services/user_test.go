package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/server/config"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg)
}

func TestRegister(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := newUserService(t, db, rm)
	ctx := context.Background()

	u, err := s.Register(ctx, "  alice ", []byte("salt"), []byte("verifier"))
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.NotEmpty(t, u.ID)

	_, err = s.Register(ctx, "alice", []byte("salt"), []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Regexp(t, "^error creating user: ", err.Error())

	_, err = s.Register(ctx, "", []byte("salt"), []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.Register(ctx, "bob", nil, []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestGetSalt(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := newUserService(t, db, rm)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", []byte("pepper"), []byte("v"))
	require.NoError(t, err)

	salt, err := s.GetSalt(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("pepper"), salt)

	salt, err = s.GetSalt(ctx, "nobody")
	require.NoError(t, err)
	assert.Len(t, salt, saltSize)

	rm.u.getErr = errors.New("boom")
	_, err = s.GetSalt(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := newUserService(t, db, rm)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", []byte("salt"), []byte("verifier"))
	require.NoError(t, err)

	pair, err := s.Login(ctx, "alice", []byte("verifier"))
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, rm.r.tokens, 1)

	uid, err := s.UserIDFromAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "id-alice", uid)

	_, err = s.Login(ctx, "alice", []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(ctx, "nobody", []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	rm.r.createErr = errors.New("db down")
	_, err = s.Login(ctx, "alice", []byte("verifier"))
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefreshToken_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	rm.r.tokens["refresh-xyz"] = &models.RefreshToken{UserID: "u1", Token: "refresh-xyz", Expires: time.Now().Add(10 * time.Minute)}
	s := newUserService(t, db, rm)

	pair, err := s.RefreshToken(context.Background(), "refresh-xyz")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, "refresh-xyz", pair.RefreshToken)

	_, old := rm.r.tokens["refresh-xyz"]
	assert.False(t, old, "old token must be rotated out")
	_, fresh := rm.r.tokens[pair.RefreshToken]
	assert.True(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshToken_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.r.tokens["r"] = &models.RefreshToken{UserID: "u1", Token: "r", Expires: time.Now().Add(-time.Minute)}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestRefreshToken_Unknown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := newUserService(t, db, newFakeRepoManager())

	_, err := s.RefreshToken(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshToken_FindError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.r.findErr = errors.New("boom")
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	require.Error(t, err)
	assert.Regexp(t, "^error searching refresh token: boom$", err.Error())
}

func TestRefreshToken_DeleteErrorRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := newFakeRepoManager()
	rm.r.tokens["r"] = &models.RefreshToken{UserID: "u1", Token: "r", Expires: time.Now().Add(time.Minute)}
	rm.r.delErr = errors.New("delete failed")
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error deleting refresh token")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutAndPurge(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	now := time.Now()
	rm.r.tokens["live"] = &models.RefreshToken{UserID: "u1", Token: "live", Expires: now.Add(time.Hour)}
	rm.r.tokens["old"] = &models.RefreshToken{UserID: "u1", Token: "old", Expires: now.Add(-time.Hour)}
	rm.r.tokens["gone"] = &models.RefreshToken{UserID: "u1", Token: "gone", Expires: now.Add(time.Hour)}
	s := newUserService(t, db, rm)
	ctx := context.Background()

	require.NoError(t, s.Logout(ctx, "gone"))
	require.NoError(t, s.Logout(ctx, "never-existed"))

	n, err := s.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, rm.r.tokens, 1)
	assert.Contains(t, rm.r.tokens, "live")

	rm.r.delErr = errors.New("x")
	assert.Error(t, s.Logout(ctx, "live"))
}

func TestUserIDFromAccessToken_Invalid(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := newUserService(t, db, newFakeRepoManager())

	_, err := s.UserIDFromAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
