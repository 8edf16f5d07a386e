package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/auth-gateway/internal/models"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)

	signed, expiresIn, err := codec.IssueAccess("a@b.com")
	require.NoError(t, err)
	assert.Greater(t, expiresIn, int64(0))
	assert.LessOrEqual(t, expiresIn, int64(time.Hour.Seconds()))

	claims, err := codec.Verify(signed, models.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
	assert.Equal(t, models.TokenKindAccess, claims.Kind)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)

	signed, err := codec.IssueRefresh("a@b.com")
	require.NoError(t, err)

	claims, err := codec.Verify(signed, models.TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
	assert.Equal(t, models.TokenKindRefresh, claims.Kind)
}

func TestVerifyRejectsKindMismatch(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)

	access, _, err := codec.IssueAccess("a@b.com")
	require.NoError(t, err)

	_, err = codec.Verify(access, models.TokenKindRefresh)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)

	refresh, err := codec.IssueRefresh("a@b.com")
	require.NoError(t, err)

	_, err = codec.Verify(refresh, models.TokenKindAccess)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := NewCodec("secret", -time.Second, 24*time.Hour)

	signed, _, err := codec.IssueAccess("a@b.com")
	require.NoError(t, err)

	_, err = codec.Verify(signed, models.TokenKindAccess)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)
	other := NewCodec("other-secret", time.Hour, 24*time.Hour)

	signed, _, err := codec.IssueAccess("a@b.com")
	require.NoError(t, err)

	_, err = other.Verify(signed, models.TokenKindAccess)
	require.Error(t, err)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)

	_, err := codec.Verify("not-a-jwt", models.TokenKindAccess)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	codec := NewCodec("secret", time.Hour, 24*time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &models.SessionClaims{
		Kind: models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@b.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(raw, models.TokenKindAccess)
	require.Error(t, err)
}
