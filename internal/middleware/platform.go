package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/response"
)

// HeaderTeamToken carries the platform admin secret.
const HeaderTeamToken = "X-Team-Token"

// PlatformConfig lists who may use the platform administration surface.
type PlatformConfig struct {
	SessionSecret string
	AdminSecret   string   // shared secret; empty disables secret access
	AdminEmails   []string // lower-cased
}

// RequirePlatformAdmin guards the platform surface.  A request passes with
// the admin secret in X-Team-Token or ?token=, or with a session whose user
// has the platform-admin flag or an email on the admin list.
func RequirePlatformAdmin(cfg PlatformConfig, users UserLoader) echo.MiddlewareFunc {
	emails := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		emails[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secretMatches(cfg.AdminSecret, c) {
				return next(c)
			}
			if err := loadSession(c, cfg.SessionSecret, users); err != nil {
				return unauthenticated(c)
			}
			u := CurrentUser(c)
			if u.IsPlatformAdmin || emails[strings.ToLower(u.Email)] {
				return next(c)
			}
			logger.FromEcho(c).Warn("access denied",
				zap.String("gate", "platform"),
				zap.String("user_id", u.ID),
				zap.String("attempted", c.Request().Method+" "+c.Path()))
			metrics.Denied("platform")
			return response.Fail(c, http.StatusForbidden, i18n.Forbidden)
		}
	}
}

func secretMatches(secret string, c echo.Context) bool {
	if secret == "" {
		return false
	}
	got := c.Request().Header.Get(HeaderTeamToken)
	if got == "" {
		got = c.QueryParam("token")
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
