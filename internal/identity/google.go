package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-gateway/internal/models"
	"github.com/noah-isme/auth-gateway/pkg/config"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
)

// GoogleVerifier validates Google-issued ID tokens against the provider's
// published keys. Key fetching and caching is handled by go-oidc; the
// verifier itself holds no mutable state.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
	logger   *zap.Logger
}

type googleClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewGoogleVerifier discovers the provider configuration and builds a
// verifier bound to the registered OAuth client ID.
func NewGoogleVerifier(ctx context.Context, cfg config.GoogleConfig, logger *zap.Logger) (*GoogleVerifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   logger,
	}, nil
}

// Verify checks the token's signature, audience and expiry, and extracts the
// identity claim. Any failure yields ErrInvalidIdentityToken; no partial
// claim is ever returned.
func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*models.Identity, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		g.logger.Debug("google token verification failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidIdentityToken.Code, appErrors.ErrInvalidIdentityToken.Status, appErrors.ErrInvalidIdentityToken.Message)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidIdentityToken.Code, appErrors.ErrInvalidIdentityToken.Status, appErrors.ErrInvalidIdentityToken.Message)
	}

	return identityFromClaims(claims)
}

func identityFromClaims(claims googleClaims) (*models.Identity, error) {
	if claims.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidIdentityToken, "")
	}

	identity := &models.Identity{Email: claims.Email}
	if claims.Name != "" {
		identity.Name = &claims.Name
	}
	if claims.Picture != "" {
		identity.Picture = &claims.Picture
	}
	return identity, nil
}
