// Package httpapi implements the driven adapter for the auth API. It is
// the only place that knows about HTTP, JSON field aliases and retry
// policy; callers see the domain.AuthClient port and autherr errors.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"petsession/internal/autherr"
	"petsession/internal/domain"

	"github.com/google/uuid"
)

// Client talks to the auth API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	// Read calls (me, refresh, checkEmail) are retried; write calls run
	// exactly once with an idempotency key so a blind retry by a future
	// caller cannot duplicate side effects like account creation.
	readRetries  int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRetryPolicy sets the read retry count and backoff base.
func WithRetryPolicy(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.readRetries = retries
		c.retryBackoff = backoff
	}
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          slog.Default(),
		readRetries:  2,
		retryBackoff: 300 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ domain.AuthClient = (*Client)(nil)

// Register creates an account. No retries; idempotency key attached.
func (c *Client) Register(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
	var out authResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   map[string]string{"name": in.Name, "email": in.Email, "password": in.Password},
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var out authResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// Refresh exchanges the refresh token for a new pair. Retried as a read:
// the server treats an already-rotated token as a rejection, not a dup.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	var out tokensPayload
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": refreshToken},
	}, &out)
	if err != nil {
		return domain.Tokens{}, err
	}
	return out.toDomain(), nil
}

// Me fetches the canonical user record.
func (c *Client) Me(ctx context.Context, accessToken string) (*domain.User, error) {
	var out userPayload
	err := c.call(ctx, call{
		method: http.MethodGet,
		path:   "/auth/me",
		auth:   accessToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/logout",
		auth:   accessToken,
		write:  true,
	}, nil)
}

// VerifyEmail submits a verification code.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (*domain.AuthResult, error) {
	var out authResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/verify-email",
		body:   map[string]string{"email": email, "code": code},
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// ResendVerification requests a fresh verification code.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/resend-verification",
		body:   map[string]string{"email": email},
		write:  true,
	}, nil)
}

// ForgotPassword starts the password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/forgot-password",
		body:   map[string]string{"email": email},
		write:  true,
	}, nil)
}

// ResetPassword completes the password reset flow.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body:   map[string]string{"email": email, "code": code, "password": newPassword},
		write:  true,
	}, nil)
}

// GoogleAuth exchanges a Google ID token for an application session.
func (c *Client) GoogleAuth(ctx context.Context, idToken, email string) (*domain.AuthResult, error) {
	var out authResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/google",
		body:   map[string]string{"idToken": idToken, "email": email},
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// AppleAuth exchanges an Apple identity token for an application session.
func (c *Client) AppleAuth(ctx context.Context, identityToken, email, name string) (*domain.AuthResult, error) {
	var out authResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/auth/apple",
		body:   map[string]string{"identityToken": identityToken, "email": email, "name": name},
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// CheckEmailExists reports whether an account with this email exists.
func (c *Client) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := c.call(ctx, call{
		method: http.MethodGet,
		path:   "/auth/check-email?email=" + url.QueryEscape(email),
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Exists, nil
}

// UpdateProfile submits a partial profile edit.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, upd domain.ProfileUpdate) (*domain.User, error) {
	body := map[string]any{
		"hasPhoto": upd.HasPhoto,
		"hasPets":  upd.HasPets,
	}
	if upd.Name != nil {
		body["name"] = *upd.Name
	}
	if upd.Phone != nil {
		body["phone"] = *upd.Phone
	}
	if upd.Country != nil {
		body["country"] = *upd.Country
	}
	if upd.City != nil {
		body["city"] = *upd.City
	}
	if upd.ImageRef != nil {
		body["avatarUrl"] = *upd.ImageRef
	}

	var out userPayload
	err := c.call(ctx, call{
		method: http.MethodPatch,
		path:   "/users/me",
		auth:   accessToken,
		body:   body,
		write:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// DeleteMe removes the account.
func (c *Client) DeleteMe(ctx context.Context, accessToken string) error {
	return c.call(ctx, call{
		method: http.MethodDelete,
		path:   "/users/me",
		auth:   accessToken,
		write:  true,
	}, nil)
}

// --- request plumbing ------------------------------------------------------

type call struct {
	method string
	path   string
	auth   string
	body   any
	write  bool
}

// call runs one logical API call: reads get bounded retries with backoff
// on retriable failures, writes run once with an Idempotency-Key header.
func (c *Client) call(ctx context.Context, req call, out any) error {
	attempts := 1
	if !req.write {
		attempts += c.readRetries
	}
	idemKey := ""
	if req.write {
		idemKey = uuid.NewString()
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return classifyTransport(ctx.Err())
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}
		err = c.once(ctx, req, idemKey, out)
		if err == nil || !autherr.Retriable(err) {
			return err
		}
		c.log.Warn("api call failed, retrying",
			"method", req.method, "path", req.path, "attempt", attempt+1, "error", err)
	}
	return err
}

func (c *Client) once(ctx context.Context, req call, idemKey string, out any) error {
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.auth)
	}
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode >= 400 {
		return &autherr.APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", autherr.ErrDecode, err)
	}
	return nil
}

// classifyTransport maps low-level network failures onto the two sentinel
// errors the session core understands.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %v", autherr.ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%w: %v", autherr.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", autherr.ErrConnectivity, err)
	}
	return fmt.Errorf("%w: %v", autherr.ErrConnectivity, err)
}

// serverMessage digs the human-readable message out of an error body. The
// API has used both "message" and "error" keys over time.
func serverMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
