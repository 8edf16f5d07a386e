package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-gateway/internal/models"
	"github.com/noah-isme/auth-gateway/internal/token"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
)

type sessionUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Upsert(ctx context.Context, email string, name, picture *string, refreshToken string) (*models.User, error)
}

type identityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*models.Identity, error)
}

type profileCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionConfig tunes the session service.
type SessionConfig struct {
	ProfileCacheTTL time.Duration
}

// SessionService orchestrates identity verification, token issuance and the
// persisted single-refresh-token slot. All durable state lives in the user
// store; each operation is an independent request-scoped unit of work.
type SessionService struct {
	repo      sessionUserRepository
	verifier  identityVerifier
	codec     *token.Codec
	cache     profileCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
}

// NewSessionService constructs a SessionService instance. cache and metrics
// may be nil.
func NewSessionService(repo sessionUserRepository, verifier identityVerifier, codec *token.Codec, cache profileCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		repo:      repo,
		verifier:  verifier,
		codec:     codec,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Login exchanges a Google ID token for a local session. Upserting the user
// with the freshly issued refresh token is the single moment a prior refresh
// token is invalidated. The refresh token is returned out-of-band so the
// handler can place it in an HttpOnly cookie; it never enters a response body.
func (s *SessionService) Login(ctx context.Context, req models.GoogleLoginRequest) (*models.TokenResponse, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	identity, err := s.verifier.Verify(ctx, req.Token)
	if err != nil {
		return nil, "", err
	}

	refresh, err := s.codec.IssueRefresh(identity.Email)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	user, err := s.repo.Upsert(ctx, identity.Email, identity.Name, identity.Picture, refresh)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist user")
	}

	s.invalidateProfile(ctx, user.Email)

	access, expiresIn, err := s.codec.IssueAccess(identity.Email)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("user logged in", zap.String("email", identity.Email))

	return &models.TokenResponse{Access: access, ExpiresIn: expiresIn}, refresh, nil
}

// Renew mints a fresh access token from a presented refresh token. The
// stored-token cross-check is what makes replacement effective: a superseded
// refresh token fails here even before its embedded expiry. The refresh
// token itself is not rotated on renewal.
func (s *SessionService) Renew(ctx context.Context, presented string) (*models.TokenResponse, error) {
	if presented == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingRefreshToken, "")
	}

	claims, err := s.codec.Verify(presented, models.TokenKindRefresh)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRefreshToken.Code, appErrors.ErrInvalidRefreshToken.Status, appErrors.ErrInvalidRefreshToken.Message)
	}

	user, err := s.repo.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRefreshToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return nil, appErrors.Clone(appErrors.ErrInvalidRefreshToken, "")
	}

	access, expiresIn, err := s.codec.IssueAccess(claims.Subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.TokenResponse{Access: access, ExpiresIn: expiresIn}, nil
}

// WhoAmI resolves the authenticated subject to its public profile, reading
// through the profile cache when one is configured.
func (s *SessionService) WhoAmI(ctx context.Context, email string) (*models.UserProfile, error) {
	key := profileCacheKey(email)

	if s.cache != nil {
		start := time.Now()
		var cached models.UserProfile
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("profile cache read failed", zap.Error(err))
		}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	profile := user.Profile()

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, key, profile, s.config.ProfileCacheTTL); err != nil {
			s.logger.Warn("profile cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}

	return profile, nil
}

// VerifyAccess parses and validates an access token, returning its claims.
// Used by the bearer-auth middleware.
func (s *SessionService) VerifyAccess(tokenString string) (*models.SessionClaims, error) {
	claims, err := s.codec.Verify(tokenString, models.TokenKindAccess)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidAccessToken.Code, appErrors.ErrInvalidAccessToken.Status, appErrors.ErrInvalidAccessToken.Message)
	}
	return claims, nil
}

func (s *SessionService) invalidateProfile(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileCacheKey(email)); err != nil {
		s.logger.Warn("profile cache invalidation failed", zap.Error(err))
	}
}

func profileCacheKey(email string) string {
	return fmt.Sprintf("profile:%s", email)
}
