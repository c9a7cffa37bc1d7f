package token

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	return &Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func TestSignAccessToken_SetsExpectedClaims(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	raw, err := svc.SignAccessToken(42, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := svc.ParseAccess(raw)
	require.NoError(t, err)

	userID, role, err := Identity(claims)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
	assert.Equal(t, "admin", role)
	assert.Equal(t, TypAccess, claims["typ"])
}

func TestParseAccess_RejectsRefreshToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	// refresh tokens are signed with a different secret and kind tag
	raw, err := svc.SignRefreshToken(context.Background(), 1, "admin")
	require.NoError(t, err)

	_, err = svc.ParseAccess(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccess_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	svc.AccessTTL = -time.Minute

	raw, err := svc.SignAccessToken(1, "admin")
	require.NoError(t, err)

	_, err = svc.ParseAccess(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseAccess_Malformed(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.ParseAccess("not-a-jwt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRefresh_KnownToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	raw, err := svc.SignRefreshToken(ctx, 7, "admin")
	require.NoError(t, err)

	claims, err := svc.ValidateRefresh(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, TypRefresh, claims["typ"])
}

func TestValidateRefresh_Revoked(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	raw, err := svc.SignRefreshToken(ctx, 7, "admin")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, raw))

	_, err = svc.ValidateRefresh(ctx, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRefresh_NotPersisted(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	raw, err := svc.SignRefreshToken(ctx, 7, "admin")
	require.NoError(t, err)
	// drop the stored row, a well-signed token alone is not enough
	require.NoError(t, svc.DB.Where("token = ?", raw).Delete(&models.RefreshToken{}).Error)

	_, err = svc.ValidateRefresh(ctx, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_RevokesOldToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	oldRefresh, err := svc.SignRefreshToken(ctx, 9, "admin")
	require.NoError(t, err)

	access, refresh, claims, err := svc.Rotate(ctx, oldRefresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, oldRefresh, refresh)

	userID, role, err := Identity(claims)
	require.NoError(t, err)
	assert.Equal(t, uint(9), userID)
	assert.Equal(t, "admin", role)

	_, err = svc.ParseAccess(access)
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(ctx, oldRefresh)
	require.Error(t, err)

	_, err = svc.ValidateRefresh(ctx, refresh)
	require.NoError(t, err)
}

func TestRevoke_EmptyToken_NoError(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	require.NoError(t, svc.Revoke(context.Background(), ""))
}
