// Package gotrue talks to a GoTrue-compatible hosted auth REST API.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vektorkite/internal/registration/ports"
	"vektorkite/pkg/platform/circuit"
	"vektorkite/pkg/platform/sentinel"
	"vektorkite/pkg/requestcontext"
)

const (
	signupPath = "/auth/v1/signup"
	userPath   = "/auth/v1/user"

	maxResponseBytes = 1 << 20
)

const (
	outcomeOK           = "ok"
	outcomeRejected     = "rejected"
	outcomeFailed       = "failed"
	outcomeShortCircuit = "short_circuit"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuit.Breaker
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	probeInterval time.Duration
	probeMu       sync.Mutex
	lastProbe     time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

// WithProbeInterval bounds how often a call is let through while the breaker is open.
func WithProbeInterval(d time.Duration) Option {
	return func(cl *Client) { cl.probeInterval = d }
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) { cl.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("auth backend URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("auth backend API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		http:          &http.Client{Timeout: timeout},
		breaker:       circuit.New("auth-backend"),
		tracer:        otel.Tracer("vektorkite/internal/auth/gotrue"),
		logger:        slog.Default(),
		probeInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type signUpBody struct {
	Email    string               `json:"email"`
	Password string               `json:"password"`
	Data     ports.SignUpMetadata `json:"data"`
}

// signUpResponse covers both shapes: a bare user when email confirmation is
// pending, or a session with the user nested.
type signUpResponse struct {
	ports.User
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	TokenType    string      `json:"token_type"`
	SessionUser  *ports.User `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, req ports.SignUpRequest) (*ports.SignUpResult, error) {
	var resp signUpResponse
	err := c.do(ctx, "signup", http.MethodPost, signupPath, "", signUpBody{
		Email:    req.Email,
		Password: req.Password,
		Data:     req.Metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &ports.SignUpResult{}
	if resp.AccessToken != "" {
		result.Session = &ports.Session{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
			TokenType:    resp.TokenType,
		}
		result.User = resp.SessionUser
	} else if resp.ID != "" {
		user := resp.User
		result.User = &user
	}
	return result, nil
}

// VerifySession resolves the user behind the link's access token. The
// refresh token is only needed by browser SDKs that persist the session.
func (c *Client) VerifySession(ctx context.Context, accessToken, _ string) (*ports.User, error) {
	var user ports.User
	if err := c.do(ctx, "verify_session", http.MethodGet, userPath, accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// CurrentSession returns nil without error when the token is no longer accepted.
func (c *Client) CurrentSession(ctx context.Context, accessToken string) (*ports.User, error) {
	var user ports.User
	err := c.do(ctx, "current_session", http.MethodGet, userPath, accessToken, nil, &user)
	var authErr *ports.AuthError
	if errors.As(err, &authErr) &&
		(authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, operation, method, path, bearer string, body, out any) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "gotrue."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	outcome := outcomeOK
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if c.metrics != nil {
			c.metrics.ObserveRequest(operation, outcome, start)
		}
	}()

	if !c.allow() {
		outcome = outcomeShortCircuit
		return fmt.Errorf("auth backend circuit open: %w", sentinel.ErrUnavailable)
	}

	req, err := c.newRequest(ctx, method, path, bearer, body)
	if err != nil {
		outcome = outcomeFailed
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = outcomeFailed
		c.recordFailure(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("auth backend %s: %w", operation, ctx.Err())
		}
		return fmt.Errorf("auth backend %s: %w: %v", operation, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		outcome = outcomeFailed
		c.recordFailure(ctx)
		return fmt.Errorf("auth backend %s: read response: %w: %v", operation, sentinel.ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		outcome = outcomeFailed
		c.recordFailure(ctx)
		return decodeError(resp.StatusCode, payload)
	}
	c.recordSuccess(ctx)
	if resp.StatusCode >= http.StatusBadRequest {
		outcome = outcomeRejected
		return decodeError(resp.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		outcome = outcomeFailed
		return fmt.Errorf("auth backend %s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, bearer string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := bearer
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

// allow lets every call through while closed and one probe per interval while open.
func (c *Client) allow() bool {
	if !c.breaker.IsOpen() {
		return true
	}
	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	if time.Since(c.lastProbe) < c.probeInterval {
		return false
	}
	c.lastProbe = time.Now()
	return true
}

func (c *Client) recordFailure(ctx context.Context) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.probeMu.Lock()
		c.lastProbe = time.Now()
		c.probeMu.Unlock()
		c.logger.WarnContext(ctx, "auth backend circuit opened",
			"breaker", c.breaker.Name(),
			"request_id", requestcontext.RequestID(ctx),
		)
		if c.metrics != nil {
			c.metrics.SetBreakerOpen(true)
		}
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "auth backend circuit closed",
			"breaker", c.breaker.Name(),
			"request_id", requestcontext.RequestID(ctx),
		)
		if c.metrics != nil {
			c.metrics.SetBreakerOpen(false)
		}
	}
}

type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// decodeError maps a non-2xx body to *ports.AuthError. GoTrue sends code as
// the HTTP status number on older versions and as a string on newer ones.
func decodeError(status int, payload []byte) error {
	authErr := &ports.AuthError{Status: status}
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		authErr.Message = strings.TrimSpace(string(payload))
		if authErr.Message == "" {
			authErr.Message = http.StatusText(status)
		}
		return authErr
	}

	authErr.Code = body.ErrorCode
	if code, ok := body.Code.(string); ok && authErr.Code == "" {
		authErr.Code = code
	}
	for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if msg != "" {
			authErr.Message = msg
			break
		}
	}
	if authErr.Message == "" {
		authErr.Message = http.StatusText(status)
	}
	return authErr
}
