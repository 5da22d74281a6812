package bootstrap

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eleven-am/civic311/internal/dto"
	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
)

func newTestEcho() *echo.Echo {
	return NewEchoServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func request(e *echo.Echo, method, path string) (int, dto.ErrorResponse) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body dto.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func TestErrorHandler_RouteNotFound(t *testing.T) {
	e := newTestEcho()

	code, body := request(e, http.MethodGet, "/api/nothing-here")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if body.Error != "Route not found" {
		t.Errorf("expected Route not found, got %q", body.Error)
	}
}

func TestErrorHandler_Panic(t *testing.T) {
	e := newTestEcho()
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})

	code, body := request(e, http.MethodGet, "/boom")
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if body.Error != "Something went wrong!" {
		t.Errorf("expected generic message, got %q", body.Error)
	}
}

func TestErrorHandler_PlainError(t *testing.T) {
	e := newTestEcho()
	e.GET("/fail", func(c echo.Context) error {
		return io.ErrUnexpectedEOF
	})

	code, body := request(e, http.MethodGet, "/fail")
	if code != http.StatusInternalServerError || body.Error != "Something went wrong!" {
		t.Errorf("unexpected response %d %+v", code, body)
	}
}

func TestErrorHandler_APIErrorPassesThrough(t *testing.T) {
	e := newTestEcho()
	e.GET("/conflict", func(c echo.Context) error {
		return shared.Conflict("email_exists", "Email already exists")
	})
	e.GET("/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	code, body := request(e, http.MethodGet, "/conflict")
	if code != http.StatusConflict || body.Error != "Email already exists" || body.Code != "email_exists" {
		t.Errorf("unexpected response %d %+v", code, body)
	}

	code, body = request(e, http.MethodGet, "/teapot")
	if code != http.StatusTeapot || body.Error != "short and stout" {
		t.Errorf("unexpected response %d %+v", code, body)
	}
}
