package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-gateway/internal/middleware"
	"github.com/noah-isme/auth-gateway/internal/models"
	"github.com/noah-isme/auth-gateway/internal/service"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
	"github.com/noah-isme/auth-gateway/pkg/response"
)

// RefreshCookieName is the HttpOnly cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// AuthCookieConfig controls the refresh token cookie attributes.
type AuthCookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// AuthHandler wires HTTP endpoints to the session service.
type AuthHandler struct {
	sessions *service.SessionService
	cookie   AuthCookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(sessions *service.SessionService, cookie AuthCookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookie: cookie}
}

// GoogleLogin godoc
// @Summary Authenticate with a Google ID token
// @Description Verifies the Google token, upserts the user and issues session tokens. The refresh token is set as an HttpOnly cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.GoogleLoginRequest true "Google ID token"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /google-login [post]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, refresh, err := h.sessions.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The refresh token travels only in this cookie, never in the body.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, refresh, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)

	response.OK(c, res)
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Exchanges the refresh token cookie for a new access token.
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} response.Envelope
// @Router /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, err := c.Cookie(RefreshCookieName)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrMissingRefreshToken, ""))
		return
	}

	res, err := h.sessions.Renew(c.Request.Context(), presented)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's public profile.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserProfile
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrMissingAccessToken, ""))
		return
	}
	sessionClaims := claims.(*models.SessionClaims)

	profile, err := h.sessions.WhoAmI(c.Request.Context(), sessionClaims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile)
}
