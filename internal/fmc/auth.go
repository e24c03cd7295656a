package fmc

import (
	"context"
	"net/http"
)

// Credentials are the API user's basic auth credentials
type Credentials struct {
	Username string
	Password string
}

// Session holds the tokens issued by the controller
type Session struct {
	AccessToken  string
	RefreshToken string
	DomainID     string
}

// Authenticate requests a session token. Any response that is not a success
// carrying all three headers is an AuthError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	resp, err := c.exchange(ctx, http.MethodPost, authPath, nil, nil, func(req *http.Request) {
		req.SetBasicAuth(creds.Username, creds.Password)
		req.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return Session{}, &AuthError{Endpoint: c.baseURL, Reason: err.Error()}
	}
	if resp.status < 200 || resp.status >= 300 {
		return Session{}, &AuthError{Endpoint: c.baseURL, Status: resp.status, Reason: "using supplied credentials"}
	}

	s := Session{
		AccessToken:  resp.header.Get(headerAccessToken),
		RefreshToken: resp.header.Get(headerRefreshToken),
		DomainID:     resp.header.Get(headerDomain),
	}
	if s.AccessToken == "" || s.RefreshToken == "" || s.DomainID == "" {
		return Session{}, &AuthError{Endpoint: c.baseURL, Status: resp.status, Reason: "response is missing session headers"}
	}

	c.session = s
	return s, nil
}

// Refresh exchanges the refresh token for a new access token. The controller
// keeps the domain, so only the tokens change.
func (c *Client) Refresh(ctx context.Context) error {
	if c.session.RefreshToken == "" {
		return ErrNotAuthenticated
	}
	current := c.session
	resp, err := c.exchange(ctx, http.MethodPost, refreshPath, nil, nil, func(req *http.Request) {
		req.Header.Set(headerAccessToken, current.AccessToken)
		req.Header.Set(headerRefreshToken, current.RefreshToken)
	})
	if err != nil {
		return &AuthError{Endpoint: c.baseURL, Reason: "token refresh failed: " + err.Error()}
	}
	if resp.status < 200 || resp.status >= 300 {
		return &AuthError{Endpoint: c.baseURL, Status: resp.status, Reason: "token refresh rejected"}
	}

	access := resp.header.Get(headerAccessToken)
	refresh := resp.header.Get(headerRefreshToken)
	if access == "" {
		return &AuthError{Endpoint: c.baseURL, Status: resp.status, Reason: "refresh response is missing the access token"}
	}
	c.session.AccessToken = access
	if refresh != "" {
		c.session.RefreshToken = refresh
	}
	return nil
}
