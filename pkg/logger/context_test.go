package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAttach(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Same(t, GetLogger(), FromEcho(c))
	assert.Same(t, GetLogger(), FromContext(context.Background()))

	l := zap.NewExample().With(zap.String("request_id", "abc"))
	Attach(c, l)

	assert.Same(t, l, FromEcho(c))
	assert.Same(t, l, FromContext(c.Request().Context()))
}
