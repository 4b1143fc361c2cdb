package lendguard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Authentication routes. Their 401 responses mean "invalid credentials" and
// never tear the session down.
const (
	LoginPath   = "/auth/login"
	LogoutPath  = "/auth/logout"
	ProfilePath = "/auth/me"
)

type (
	// LoginRequest is the body of a login call.
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// LoginResult is the data returned by a successful login.
	LoginResult struct {
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		User         json.RawMessage `json:"user,omitempty"`
	}
)

// Login authenticates and stores the returned credential in the persistent
// namespace when remember is true, the ephemeral one otherwise. The user
// profile, when returned, is cached next to it.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (LoginResult, error) {
	env, err := SendJSON[LoginResult](ctx, c, http.MethodPost, LoginPath, LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return LoginResult{}, err
	}

	if env.Data == nil || env.Data.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("lendguard: login: response carries no access token")
	}

	res := *env.Data
	if err = c.store.Set(res.AccessToken, res.RefreshToken, remember); err != nil {
		return LoginResult{}, err
	}

	if len(res.User) > 0 && string(res.User) != "null" {
		if err = c.store.SetProfile(res.User); err != nil {
			return LoginResult{}, err
		}
	}

	c.FlushCache()
	c.logger.Info("logged in", zap.Bool("persistent", remember))

	return res, nil
}

// Logout notifies the backend and clears local credentials. The local
// session is cleared even when the backend call fails; that failure is
// returned.
func (c *Client) Logout(ctx context.Context) error {
	var callErr error
	if _, ok := c.store.Get(); ok {
		_, callErr = c.Post(ctx, LogoutPath, nil)
	}

	c.FlushCache()

	if err := c.store.Clear(); err != nil {
		return errors.Join(callErr, err)
	}

	c.logger.Info("logged out")

	return callErr
}

// Me fetches the current user's profile and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	if _, ok := c.store.Get(); !ok {
		return nil, ErrNotAuthenticated
	}

	env, err := GetJSON[json.RawMessage](ctx, c, ProfilePath, nil)
	if err != nil {
		return nil, err
	}

	if env.Data == nil {
		return nil, fmt.Errorf("lendguard: profile: response carries no data")
	}

	if err = c.store.SetProfile(*env.Data); err != nil {
		return nil, err
	}

	return *env.Data, nil
}
