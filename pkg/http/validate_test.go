package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cashReq struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Side   string  `json:"side" default:"in" validate:"oneof=in out"`
	Note   string  `json:"note" validate:"max=5"`
}

func bind(t *testing.T, body string) (*cashReq, []ValidationError) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	out := &cashReq{}
	return out, ReadAndValidateRequest(c, out)
}

func TestReadAndValidateRequest(t *testing.T) {
	got, errs := bind(t, `{"amount":2.5}`)
	require.Nil(t, errs)
	assert.Equal(t, "in", got.Side, "defaults fill unset fields")

	_, errs = bind(t, `{"amount":0,"side":"sideways","note":"far too long"}`)
	require.Len(t, errs, 3)
	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_GT", byField["amount"].Code)
	assert.Equal(t, []string{"in", "out"}, byField["side"].Params["options"])
	assert.Equal(t, "note must be at most 5 characters", byField["note"].Message)

	_, errs = bind(t, `{"amount":`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
