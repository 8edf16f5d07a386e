package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-gateway/internal/models"
	"github.com/noah-isme/auth-gateway/internal/token"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
)

type mockSessionRepo struct {
	users        map[string]*models.User
	findCalls    int
	findErr      error
	upsertErr    error
	upsertCalls  int
	lastUpserted *models.User
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{users: make(map[string]*models.User)}
}

func (m *mockSessionRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockSessionRepo) Upsert(ctx context.Context, email string, name, picture *string, refreshToken string) (*models.User, error) {
	m.upsertCalls++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	now := time.Now().UTC()
	user, ok := m.users[email]
	if !ok {
		user = &models.User{ID: email, Email: email, CreatedAt: now}
		m.users[email] = user
	}
	user.Name = name
	user.Picture = picture
	user.RefreshToken = &refreshToken
	user.LastLogin = &now
	user.UpdatedAt = now
	m.lastUpserted = user
	return user, nil
}

type fakeVerifier struct {
	identity *models.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, rawIDToken string) (*models.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeCache struct {
	entries map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.entries, key)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestService(repo *mockSessionRepo, verifier *fakeVerifier, codec *token.Codec, cache profileCache) *SessionService {
	return NewSessionService(repo, verifier, codec, cache, nil, validator.New(), zap.NewNop(), SessionConfig{ProfileCacheTTL: time.Minute})
}

func TestLoginThenWhoAmI(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{identity: &models.Identity{Email: "u@x.com", Name: strPtr("U")}}
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	svc := newTestService(repo, verifier, codec, nil)

	res, refresh, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "google-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Access)
	assert.NotEmpty(t, refresh)
	assert.Greater(t, res.ExpiresIn, int64(0))
	assert.LessOrEqual(t, res.ExpiresIn, int64((5 * time.Minute).Seconds()))

	require.Len(t, repo.users, 1)
	stored := repo.users["u@x.com"]
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, refresh, *stored.RefreshToken)
	require.NotNil(t, stored.LastLogin)

	claims, err := svc.VerifyAccess(res.Access)
	require.NoError(t, err)
	assert.Equal(t, "u@x.com", claims.Subject)

	profile, err := svc.WhoAmI(context.Background(), claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, "u@x.com", profile.Email)
	require.NotNil(t, profile.Name)
	assert.Equal(t, "U", *profile.Name)
	assert.Nil(t, profile.Picture)
}

func TestLoginPropagatesInvalidIdentityToken(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{err: appErrors.Clone(appErrors.ErrInvalidIdentityToken, "")}
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	svc := newTestService(repo, verifier, codec, nil)

	_, _, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "bad"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidIdentityToken.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.upsertCalls)
}

func TestSecondLoginSupersedesFirstRefreshToken(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{identity: &models.Identity{Email: "u@x.com"}}
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	svc := newTestService(repo, verifier, codec, nil)

	_, firstRefresh, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "t1"})
	require.NoError(t, err)

	_, secondRefresh, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "t2"})
	require.NoError(t, err)
	assert.NotEqual(t, firstRefresh, secondRefresh)

	// The superseded token is not yet expired, but the store cross-check
	// rejects it.
	_, err = svc.Renew(context.Background(), firstRefresh)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)

	res, err := svc.Renew(context.Background(), secondRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Access)
}

func TestRenewMissingToken(t *testing.T) {
	svc := newTestService(newMockSessionRepo(), &fakeVerifier{}, token.NewCodec("secret", time.Minute, time.Hour), nil)

	_, err := svc.Renew(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingRefreshToken.Code, appErrors.FromError(err).Code)
}

func TestRenewRejectsAccessToken(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{identity: &models.Identity{Email: "u@x.com"}}
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	svc := newTestService(repo, verifier, codec, nil)

	res, _, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "t"})
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), res.Access)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)
}

func TestRenewExpiredRefreshToken(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{identity: &models.Identity{Email: "u@x.com"}}
	codec := token.NewCodec("secret", 5*time.Minute, -time.Second)
	svc := newTestService(repo, verifier, codec, nil)

	_, refresh, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "t"})
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), refresh)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRefreshToken.Code, appErrors.FromError(err).Code)
}

func TestRenewUnknownUserMatchesMismatchMessage(t *testing.T) {
	repo := newMockSessionRepo()
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	svc := newTestService(repo, &fakeVerifier{}, codec, nil)

	refresh, err := codec.IssueRefresh("ghost@x.com")
	require.NoError(t, err)

	_, missingErr := svc.Renew(context.Background(), refresh)
	require.Error(t, missingErr)

	// Same code and message as a stale-token rejection, so callers cannot
	// distinguish an unknown email from a superseded token.
	stored := "other-token"
	repo.users["ghost@x.com"] = &models.User{ID: "1", Email: "ghost@x.com", RefreshToken: &stored}
	_, staleErr := svc.Renew(context.Background(), refresh)
	require.Error(t, staleErr)

	assert.Equal(t, appErrors.FromError(staleErr).Code, appErrors.FromError(missingErr).Code)
	assert.Equal(t, appErrors.FromError(staleErr).Message, appErrors.FromError(missingErr).Message)
}

func TestVerifyAccessExpired(t *testing.T) {
	codec := token.NewCodec("secret", -time.Second, 24*time.Hour)
	svc := newTestService(newMockSessionRepo(), &fakeVerifier{}, codec, nil)

	access, _, err := codec.IssueAccess("u@x.com")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAccessToken.Code, appErrors.FromError(err).Code)
}

func TestWhoAmIUnknownUser(t *testing.T) {
	svc := newTestService(newMockSessionRepo(), &fakeVerifier{}, token.NewCodec("secret", time.Minute, time.Hour), nil)

	_, err := svc.WhoAmI(context.Background(), "nobody@x.com")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUserNotFound.Code, appErr.Code)
	assert.Equal(t, 404, appErr.Status)
}

func TestWhoAmIReadsThroughCache(t *testing.T) {
	repo := newMockSessionRepo()
	verifier := &fakeVerifier{identity: &models.Identity{Email: "u@x.com", Name: strPtr("U")}}
	codec := token.NewCodec("secret", 5*time.Minute, 24*time.Hour)
	cache := newFakeCache()
	svc := newTestService(repo, verifier, codec, cache)

	_, _, err := svc.Login(context.Background(), models.GoogleLoginRequest{Token: "t"})
	require.NoError(t, err)
	assert.Contains(t, cache.deleted, "profile:u@x.com")

	_, err = svc.WhoAmI(context.Background(), "u@x.com")
	require.NoError(t, err)
	lookups := repo.findCalls

	profile, err := svc.WhoAmI(context.Background(), "u@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u@x.com", profile.Email)
	assert.Equal(t, lookups, repo.findCalls)
}
