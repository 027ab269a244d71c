package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_AssignsRequestIDAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	e := echo.New()
	e.Use(Middleware)
	e.GET("/ping", func(c echo.Context) error {
		if RequestID(c) == "" {
			t.Error("request id missing in handler")
		}
		FromEcho(c).Info("inside")
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := rec.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("X-Request-ID not echoed")
	}
	if logs.FilterMessage("request").Len() != 1 {
		t.Fatalf("request lines = %d", logs.FilterMessage("request").Len())
	}
	inside := logs.FilterMessage("inside").All()
	if len(inside) != 1 || inside[0].ContextMap()["request_id"] != id {
		t.Errorf("handler log not tagged with request id: %+v", inside)
	}
}

func TestMiddleware_KeepsCallerRequestID(t *testing.T) {
	e := echo.New()
	e.Use(Middleware)
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestFromEcho_FallsBackToGlobal(t *testing.T) {
	if FromEcho(nil) == nil {
		t.Fatal("nil logger")
	}
}
