package shophttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/pkg/errors"
)

type AuthClient struct {
	base
}

func NewAuthClient(baseURL string, timeout time.Duration, obs Observer) *AuthClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthClient{base: newBase("auth", baseURL, "http://localhost:8081", timeout, obs)}
}

type loginResp struct {
	AccessToken  string `json:"accessToken"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       flexID `json:"userId"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

type userResp struct {
	ID       flexID `json:"id"`
	UserID   flexID `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (u userResp) toModel() models.User {
	id := string(u.ID)
	if id == "" {
		id = string(u.UserID)
	}
	return models.User{ID: id, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (c *AuthClient) Login(ctx context.Context, username, password string) (models.LoginResult, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return models.LoginResult{}, err
	}

	var r loginResp
	if err := json.Unmarshal(unwrapEnvelope(raw), &r); err != nil {
		return models.LoginResult{}, errors.Wrap(err, "decode login")
	}
	token := r.AccessToken
	if token == "" {
		token = r.Token
	}
	if token == "" {
		return models.LoginResult{}, errors.New("login response without token")
	}
	return models.LoginResult{
		AuthTokens: models.AuthTokens{AccessToken: token, RefreshToken: r.RefreshToken},
		User: models.User{
			ID:       string(r.UserID),
			Username: r.Username,
			Email:    r.Email,
			Role:     r.Role,
		},
	}, nil
}

// Register: бэкенд сам сверяет confirmPassword, но мы проверяем совпадение раньше.
func (c *AuthClient) Register(ctx context.Context, in models.RegisterInput) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/register", "", in)
	return err
}

func (c *AuthClient) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil)
	return err
}

func (c *AuthClient) Me(ctx context.Context, token string) (models.User, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		return models.User{}, err
	}
	var u userResp
	if err := json.Unmarshal(unwrapEnvelope(raw), &u); err != nil {
		return models.User{}, errors.Wrap(err, "decode me")
	}
	return u.toModel(), nil
}
