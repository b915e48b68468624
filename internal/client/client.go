// Package client talks to the service desk API over REST and normalizes its
// response envelopes into domain values and taxonomy errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const defaultTimeout = 15 * time.Second

// Client is a REST backend for the desk workflows. Calls are never retried.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a client from the backend config.
func New(cfg config.BackendConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		logger:  logger,
	}
}

// WithToken returns a copy that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// envelope covers every success shape the API returns. Depending on the
// endpoint the payload sits under data, under users, or is the body itself.
type envelope struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Users   json.RawMessage `json:"users"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type request struct {
	method string
	path   string
	body   any
	form   func(*fiber.Agent)
}

// do performs one call and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(r.method)
	req.SetRequestURI(c.baseURL + r.path)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	agent.Timeout(timeout)
	switch {
	case r.form != nil:
		r.form(agent)
	case r.body != nil:
		agent.JSON(r.body)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, apperrors.NewNetworkError(err)
	}

	start := time.Now()
	status, body, errs := agent.Bytes()
	c.logger.Debug("backend call",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)
	if len(errs) > 0 {
		return nil, transportError(errs[0])
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, decodeError(status, body)
	}
	return body, nil
}

// call performs r and decodes its envelope, rejecting bodies that report a
// failure despite a 2xx status.
func (c *Client) call(ctx context.Context, r request) (*envelope, []byte, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &envelope{}, body, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	if (env.Success != nil && !*env.Success) || strings.EqualFold(env.Status, "error") {
		return nil, nil, decodeError(http.StatusBadRequest, body)
	}
	return &env, body, nil
}

// decodeData decodes the payload of a response into out. raw wins when the
// body is not an envelope.
func decodeData(env *envelope, body []byte, out any) error {
	payload := []byte(env.Data)
	if len(payload) == 0 || string(payload) == "null" {
		payload = bytes.TrimSpace(body)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func hasData(env *envelope) bool {
	return len(env.Data) > 0 && string(env.Data) != "null"
}

func transportError(err error) error {
	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeout(err)
	}
	return apperrors.NewNetworkError(err)
}

// decodeError turns a failed response into a DomainError, keeping the backend
// message verbatim when one is present.
func decodeError(status int, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	var code, message string
	var details map[string]any
	if env.Error != nil {
		code, message, details = env.Error.Code, env.Error.Message, env.Error.Details
	}
	if env.Message != "" {
		message = env.Message
	}
	de := apperrors.FromStatus(status, code, message)
	de.Details = details
	return de
}
