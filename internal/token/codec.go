package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/auth-gateway/internal/models"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
)

// Codec issues and verifies locally signed session tokens. It is pure: the
// only state is the symmetric secret and the two lifetimes.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec constructs a Codec signing with HS256.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess creates a short-lived access token for the subject. The second
// return value is the remaining lifetime in seconds, measured against the
// clock after signing so callers can schedule proactive renewal.
func (c *Codec) IssueAccess(subject string) (string, int64, error) {
	expiresAt := time.Now().UTC().Add(c.accessTTL)
	signed, err := c.sign(subject, models.TokenKindAccess, expiresAt)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(time.Until(expiresAt).Seconds()), nil
}

// IssueRefresh creates a long-lived refresh token for the subject.
func (c *Codec) IssueRefresh(subject string) (string, error) {
	expiresAt := time.Now().UTC().Add(c.refreshTTL)
	return c.sign(subject, models.TokenKindRefresh, expiresAt)
}

// Verify parses and validates a session token. It fails with
// ErrInvalidToken on a bad signature, malformed structure, expiry, or when
// the embedded kind does not match the kind expected by the caller.
func (c *Codec) Verify(tokenString string, kind models.TokenKind) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid token claims")
	}

	if claims.Kind != kind {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "token kind mismatch")
	}

	return claims, nil
}

func (c *Codec) sign(subject string, kind models.TokenKind, expiresAt time.Time) (string, error) {
	issuedAt := time.Now().UTC()
	// The jti keeps two same-second issuances for one subject distinct, so a
	// second login always supersedes the first session's refresh token.
	claims := &models.SessionClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}
