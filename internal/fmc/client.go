// Package fmc is a client for the management controller configuration API.
package fmc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/martinsuchenak/fmcsweep/internal/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultCooldown is the pause after a 429. The controller allows 120
	// requests per minute, so a minute plus a second always clears the window.
	DefaultCooldown = 61 * time.Second
	DefaultTimeout  = 60 * time.Second

	authPath    = "/api/fmc_platform/v1/auth/generatetoken"
	refreshPath = "/api/fmc_platform/v1/auth/refreshtoken"
	configPath  = "/api/fmc_config/v1/domain/"

	headerAccessToken  = "X-auth-access-token"
	headerRefreshToken = "X-auth-refresh-token"
	headerDomain       = "DOMAIN_UUID"
)

// Observer is notified about every request, used for metrics
type Observer interface {
	ObserveRequest(method string, status int)
	ObserveRateLimited()
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int) {}
func (nopObserver) ObserveRateLimited()        {}

// Client talks to a single controller. It is not safe for concurrent use;
// the tool issues one request at a time.
type Client struct {
	baseURL    string
	httpClient *http.Client
	verifyTLS  bool
	timeout    time.Duration
	cooldown   time.Duration
	limiter    *rate.Limiter
	observer   Observer
	sleep      func(context.Context, time.Duration) error
	session    Session
}

// Option configures the Client.
type Option func(*Client)

// WithVerifyTLS enables certificate verification. Appliances usually serve a
// self-signed certificate, so verification is off unless asked for.
func WithVerifyTLS(verify bool) Option {
	return func(c *Client) {
		c.verifyTLS = verify
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCooldown sets the pause before retrying a rate limited request.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		c.cooldown = d
	}
}

// WithRequestsPerMinute paces requests on the client side. Zero disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
}

// WithHTTPClient replaces the underlying HTTP client. TLS options are not
// applied to a supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver registers a request observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewClient creates a client for the controller at endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(endpoint, "/"),
		timeout:  DefaultTimeout,
		cooldown: DefaultCooldown,
		observer: nopObserver{},
		sleep:    sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !c.verifyTLS,
				},
			},
		}
	}

	return c
}

// Session returns the current session tokens.
func (c *Client) Session() Session {
	return c.session
}

// response is a fully read HTTP response
type response struct {
	status int
	header http.Header
	body   []byte
}

// send performs one HTTP round trip. decorate sets authentication headers;
// nil sends the session access token.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, decorate func(*http.Request)) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for request slot: %w", err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	} else if c.session.AccessToken != "" {
		req.Header.Set(headerAccessToken, c.session.AccessToken)
	}

	log.Debug("API request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, method, path, err)
	}

	c.observer.ObserveRequest(method, resp.StatusCode)
	return &response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

func (c *Client) transportError(ctx, reqCtx context.Context, method, path string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%s %s after %s: %w", method, path, c.timeout, ErrTimeout)
	}
	return fmt.Errorf("%s %s: %w", method, path, err)
}

// exchange sends a request and, on a 429, waits out the cooldown and retries
// exactly once. A second 429 is returned to the caller as is.
func (c *Client) exchange(ctx context.Context, method, path string, query url.Values, payload []byte, decorate func(*http.Request)) (*response, error) {
	resp, err := c.send(ctx, method, path, query, payload, decorate)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusTooManyRequests {
		return resp, nil
	}

	c.observer.ObserveRateLimited()
	log.Warn("Request limit reached, pausing", "cooldown", c.cooldown, "method", method, "path", path)
	if err := c.sleep(ctx, c.cooldown); err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, method, path, query, payload, decorate)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusTooManyRequests {
		c.observer.ObserveRateLimited()
		log.Warn("Request still rate limited after cooldown", "method", method, "path", path)
	}
	return resp, nil
}

// call performs an authenticated request and decodes the JSON response into
// result. An expired token is refreshed once.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, result any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	resp, err := c.exchange(ctx, method, path, query, payload, nil)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && c.session.RefreshToken != "" {
		log.Info("Access token rejected, refreshing")
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		resp, err = c.exchange(ctx, method, path, query, payload, nil)
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return newAPIError(method, path, resp)
	}

	if result != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) domainPath() (string, error) {
	if c.session.DomainID == "" {
		return "", ErrNotAuthenticated
	}
	return configPath + url.PathEscape(c.session.DomainID) + "/object/", nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
