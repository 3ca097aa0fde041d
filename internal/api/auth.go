package api

import (
	"context"
	"net/http"
	"strings"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. A failed login returns a
// *StatusError whose Message is the server's reason or "Login failed"; a
// successful response without a token returns ErrNoToken.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	req, err := c.jsonRequest(OpLogin, http.MethodPost, "/auth/login", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var out loginResponse
	if err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	tok := strings.TrimSpace(out.Token)
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
