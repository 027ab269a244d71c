package middleware // middleware holds the request gates shared by every route group

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/utils"
)

// SessionCookie is the name of the cookie that carries the session token.
const SessionCookie = "token"

// UserLoader fetches the user named by a session's subject claim.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// SessionConfig controls how session cookies are written.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

func (s SessionConfig) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// IssueSession signs claims and sets the session cookie on the response.
// The cookie is HTTP-only and SameSite=None so the app can be embedded
// cross-site; Secure is on unless disabled for plain-http development.
func IssueSession(c echo.Context, cfg SessionConfig, claims utils.SessionClaims) error {
	tok, err := utils.NewSessionToken(cfg.Secret, claims, cfg.ttl())
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		MaxAge:   int(cfg.ttl() / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteNoneMode,
	})
	return nil
}

// ClearSession expires the session cookie.
func ClearSession(c echo.Context, cfg SessionConfig) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

var errNoSession = errors.New("no session")

// rawToken reads the session cookie, falling back to a Bearer header for
// API clients.
func rawToken(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// loadSession validates the request's token and loads its user.  On
// success both are stored in the context.
func loadSession(c echo.Context, secret string, users UserLoader) error {
	raw := rawToken(c)
	if raw == "" {
		return errNoSession
	}
	claims, err := utils.ParseSessionToken(secret, raw)
	if err != nil {
		return err
	}
	user, err := users.GetByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	c.Set(ctxClaims, claims)
	c.Set(ctxUser, user)
	return nil
}

// Session requires a valid session credential.  Requests without one get a
// 401 envelope, or a redirect to /login when they accept HTML.
func Session(secret string, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := loadSession(c, secret, users); err != nil {
				if !errors.Is(err, errNoSession) && !errors.Is(err, utils.ErrInvalidSession) && !errors.Is(err, repository.ErrNotFound) {
					logger.FromEcho(c).Error("session user lookup failed", zap.Error(err))
					return response.Fail(c, http.StatusInternalServerError, i18n.Internal)
				}
				return unauthenticated(c)
			}
			return next(c)
		}
	}
}

func unauthenticated(c echo.Context) error {
	if response.WantsHTML(c) {
		return c.Redirect(http.StatusFound, "/login")
	}
	return response.Fail(c, http.StatusUnauthorized, i18n.Unauthenticated)
}
