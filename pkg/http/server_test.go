package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/pkg/logger"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/gone", func(c echo.Context) error { return AppErrorResponse(c, NotFoundError("no such thing")) })
}

func TestServer_MiddlewareChain(t *testing.T) {
	s := NewServer(routes{}, WithLogger(logger.Nop()), WithCORSOrigins())

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"pong"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve("/gone")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve("/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",route="/ok",status="200"}`), body)
}
