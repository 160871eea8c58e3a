package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sharpms/dashboard/internal/models"
)

type LoginResult struct {
	User   models.User
	Tokens models.TokenPair
}

type loginPayload struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Login exchanges credentials for a user and token pair. A response that
// lacks the user, the user id or either token is rejected with
// ErrMalformedLogin.
func (c *Client) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	data, err := c.Post(ctx, "", "/auth/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}

	var payload loginPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrMalformedLogin, err)
	}
	if payload.User == nil || payload.User.ID == "" || payload.AccessToken == "" || payload.RefreshToken == "" {
		return LoginResult{}, ErrMalformedLogin
	}

	return LoginResult{
		User: *payload.User,
		Tokens: models.TokenPair{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
		},
	}, nil
}

func (c *Client) Me(ctx context.Context, token string) (models.User, error) {
	data, err := c.Get(ctx, token, "/auth/me")
	if err != nil {
		return models.User{}, err
	}
	return decodeUser(data)
}

// CompleteOnboarding submits the onboarding form. The API may or may not
// echo the updated user; nil means it did not.
func (c *Client) CompleteOnboarding(ctx context.Context, token string, form map[string]any) (*models.User, error) {
	data, err := c.Post(ctx, token, "/auth/onboarding", form)
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(data)
	if err != nil || user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func decodeUser(data json.RawMessage) (models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
