// Package response writes the JSON envelope every endpoint answers with:
// {"ok": bool, "message"?: string, ...data}.  Messages are looked up in the
// i18n catalog for the language of the request.
package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/service"
)

// Debug adds the underlying error text of 500 responses as "debug".  It is
// switched on outside production by the router.
var Debug bool

// Lang returns the catalog language for the request.
func Lang(c echo.Context) string {
	return i18n.Lang(c.Request().Header.Get("Accept-Language"))
}

// OK writes a success envelope.  code may be empty; data keys "ok" and
// "message" are reserved.
func OK(c echo.Context, status int, code string, data echo.Map) error {
	body := echo.Map{"ok": true}
	if code != "" {
		body["message"] = i18n.T(Lang(c), code)
	}
	for k, v := range data {
		if k == "ok" || k == "message" {
			continue
		}
		body[k] = v
	}
	return c.JSON(status, body)
}

// Fail writes a failure envelope with the localized message for code.
func Fail(c echo.Context, status int, code string) error {
	return FailWith(c, status, code, nil)
}

// FailWith is Fail with extra data keys; "ok", "code" and "message" are
// reserved.
func FailWith(c echo.Context, status int, code string, data echo.Map) error {
	body := echo.Map{
		"ok":      false,
		"code":    code,
		"message": i18n.T(Lang(c), code),
	}
	for k, v := range data {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}
	return c.JSON(status, body)
}

// Error translates err into the envelope.  Internal faults are logged with
// the request logger; their detail reaches the client only when Debug is
// set.
func Error(c echo.Context, err error) error {
	se := service.AsError(err)
	if se == nil {
		return Fail(c, http.StatusInternalServerError, i18n.Internal)
	}
	status := se.Kind.Status()
	if status < http.StatusInternalServerError {
		return Fail(c, status, se.Code)
	}
	logger.FromEcho(c).Error("request failed",
		zap.String("path", c.Path()),
		zap.Error(se.Err))
	body := echo.Map{
		"ok":      false,
		"code":    i18n.Internal,
		"message": i18n.T(Lang(c), i18n.Internal),
	}
	if Debug && se.Err != nil {
		body["debug"] = se.Err.Error()
	}
	return c.JSON(status, body)
}

// WantsHTML reports whether the client declared it accepts an HTML page.
func WantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// HTTPErrorHandler renders errors that escape handlers, such as unknown
// routes or bind failures, in the envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := i18n.InvalidInput
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			code = i18n.NotFound
		case http.StatusUnauthorized:
			code = i18n.Unauthenticated
		case http.StatusForbidden:
			code = i18n.Forbidden
		case http.StatusTooManyRequests:
			code = i18n.RateLimited
		}
		if he.Code >= http.StatusInternalServerError {
			_ = Error(c, he)
			return
		}
		_ = Fail(c, he.Code, code)
		return
	}
	_ = Error(c, err)
}
