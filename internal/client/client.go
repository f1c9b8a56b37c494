// Package client talks to broker and vendor HTTP APIs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	octetStream    = "application/octet-stream"
	defaultTimeout = 10 * time.Second
)

type envelope interface {
	Err() error
}

type conn struct {
	baseURL string
	timeout time.Duration
}

func newConn(baseURL string, timeout time.Duration) conn {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return conn{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// timeoutFor shortens the request timeout to the context deadline.
func (c conn) timeoutFor(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < c.timeout {
			return left
		}
	}
	return c.timeout
}

// do sends one request and decodes the JSON envelope into out. A non-OK
// envelope comes back as an error matching its reason sentinel.
func (c conn) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeoutFor(ctx)
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if body != nil {
		a.Body(body).ContentType(octetStream)
	}
	for k, v := range headers {
		a.Set(k, v)
	}
	a.Timeout(timeout)
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	code, raw, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: status %d: %s", method, path, code, bytes.TrimSpace(raw))
	}
	return out.Err()
}
