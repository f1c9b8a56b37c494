package payments_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
)

func newApp(tracker *payments.Tracker) *fiber.App {
	h := payments.NewHandler(tracker)
	app := fiber.New()
	app.Post("/commit", h.Commit)
	app.Post("/users/:identity/payments", h.Pay)
	app.Post("/users/:identity/end", h.End)
	return app
}

func post(t *testing.T, app *fiber.App, path string, body []byte, session string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, "application/octet-stream")
	if session != "" {
		req.Header.Set(protocol.SessionHeader, session)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandlerEpisode(t *testing.T) {
	e := newEnv(t)
	app := newApp(e.tracker)
	ep := e.user.Commit(t, e.vendor, 4)
	userPath := "/users/" + e.user.Cert.UserIdentity.Hex()

	code, body := post(t, app, "/commit", ep.Commitment.Marshal(), "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "OK", body["status"])
	session, _ := body["session"].(string)
	require.NotEmpty(t, session)

	code, body = post(t, app, userPath+"/payments", ep.Link(t, protocol.One, 0).Marshal(), session)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1), body["value"])

	code, body = post(t, app, userPath+"/payments", ep.Link(t, protocol.One, 2).Marshal(), session)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FRAUD", body["status"])
	assert.Equal(t, protocol.ReasonBrokenChain, body["reason"])

	code, body = post(t, app, userPath+"/end", nil, session)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["queued"])
	assert.Len(t, e.tracker.Pending(), 1)
}

func TestHandlerMalformed(t *testing.T) {
	e := newEnv(t)
	app := newApp(e.tracker)

	code, body := post(t, app, "/commit", []byte{0, 0, 0, 9, 1}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, protocol.ReasonMalformedMessage, body["reason"])

	code, body = post(t, app, "/users/zz/payments", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, protocol.ReasonMalformedMessage, body["reason"])

	code, _ = post(t, app, "/users/"+e.user.Cert.UserIdentity.Hex()+"/end", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandlerRequiresSessionToken(t *testing.T) {
	e := newEnv(t)
	app := newApp(e.tracker)
	ep := e.user.Commit(t, e.vendor, 4)
	userPath := "/users/" + e.user.Cert.UserIdentity.Hex()

	code, body := post(t, app, "/commit", ep.Commitment.Marshal(), "")
	require.Equal(t, http.StatusOK, code, body)
	session, _ := body["session"].(string)

	forged := payments.Link{Index: 0, Denomination: protocol.One}
	code, body = post(t, app, userPath+"/payments", forged.Marshal(), "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, protocol.ReasonUnknownSession, body["reason"])

	code, _ = post(t, app, userPath+"/end", nil, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = post(t, app, userPath+"/payments", ep.Link(t, protocol.One, 0).Marshal(), session)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 1, e.tracker.Open())
}
