package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/pkg/outcome"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is the signed-in operator.
type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Authenticator checks a login against the single configured credential.
type Authenticator struct {
	username string
	password string
}

func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{username: username, password: password}
}

func (a *Authenticator) Authenticate(username, password string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}
	return &User{UID: "1", Username: username, Name: "Administrator"}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Handler serves the session endpoints.
type Handler struct {
	authn   *Authenticator
	issuer  *TokenIssuer
	revoked *TokenRevocationStore
	logger  zerolog.Logger
}

func NewHandler(authn *Authenticator, issuer *TokenIssuer, revoked *TokenRevocationStore, logger zerolog.Logger) *Handler {
	return &Handler{authn: authn, issuer: issuer, revoked: revoked, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.authn.Authenticate(req.Username, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrInvalidCredentials) {
			status = http.StatusUnauthorized
			h.logger.Warn().Str("username", req.Username).Msg("failed login")
		}
		return c.JSON(status, outcome.Fail(err.Error(), err))
	}

	token, claims, err := h.issuer.Issue(*user)
	if err != nil {
		h.logger.Error().Err(err).Msg("error issuing token")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, outcome.OK(loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      *user,
	}))
}

// Logout revokes the token the request was authenticated with.
func (h *Handler) Logout(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	if claims.ID != "" && claims.ExpiresAt != nil {
		h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	return c.JSON(http.StatusOK, outcome.OK(nil))
}

func (h *Handler) Me(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, User{UID: claims.Subject, Username: claims.Username, Name: claims.Name})
}
