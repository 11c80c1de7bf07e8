package api

import (
	"context"
	"net/http"

	"github.com/cocoja-ai/chatkit/internal/model"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type tokenCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenRefreshResponse struct {
	Access string `json:"access"`
}

// Register creates an account. It does not establish a session.
func (c *Client) Register(ctx context.Context, username, email, password string) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/auth/register/", registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &u)
	return u, err
}

// LoginSession authenticates via the cookie session endpoint and returns the
// adopted identity. PrimeCSRF must have run first.
func (c *Client) LoginSession(ctx context.Context, identifier, password string) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/auth/login/", loginRequest{
		Identifier: identifier,
		Password:   password,
	}, &u)
	return u, err
}

// LogoutSession invalidates the server-side session cookie.
func (c *Client) LogoutSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout/", nil, nil)
}

// Me fetches the current identity. A 401-class answer means "not logged in".
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/auth/me/", nil, &u)
	return u, err
}

// CreateToken exchanges credentials for an access/refresh pair.
func (c *Client) CreateToken(ctx context.Context, identifier, password string) (model.TokenPair, error) {
	var pair model.TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/jwt/create/", tokenCreateRequest{
		Username: identifier,
		Password: password,
	}, &pair)
	return pair, err
}

// RefreshToken exchanges a refresh token for a fresh access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	var resp tokenRefreshResponse
	err := c.do(ctx, http.MethodPost, "/auth/jwt/refresh/", tokenRefreshRequest{Refresh: refresh}, &resp)
	return resp.Access, err
}
