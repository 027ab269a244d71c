package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/response"
)

// RequireFeature admits a request only when feature key is switched on for
// the session tenant.  Unknown keys and missing tenants count as off.  The
// caller's role plays no part.
func RequireFeature(key string, source repository.FeatureStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tid := TenantID(c)
			if tid == "" {
				return unauthenticated(c)
			}
			features, err := source.Features(c.Request().Context(), tid)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				logger.FromEcho(c).Error("feature lookup failed", zap.String("tenant_id", tid), zap.Error(err))
				return response.Fail(c, http.StatusInternalServerError, i18n.Internal)
			}
			if access.FeatureOn(features, key) {
				return next(c)
			}
			logger.FromEcho(c).Warn("access denied",
				zap.String("gate", "feature"),
				zap.String("feature", key),
				zap.String("tenant_id", tid))
			metrics.Denied("feature")
			return c.JSON(http.StatusForbidden, echo.Map{
				"ok":      false,
				"code":    i18n.FeatureDisabled,
				"message": i18n.T(response.Lang(c), i18n.FeatureDisabled),
				"feature": key,
			})
		}
	}
}
