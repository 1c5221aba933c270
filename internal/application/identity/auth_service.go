package identity

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

// SessionStore persists the tokens and the profile of the logged in user
type SessionStore interface {
	SetTokens(ctx context.Context, access, refresh string) error
	SetUser(ctx context.Context, user *identity.User) error
	User(ctx context.Context) (*identity.User, error)
	Logout(ctx context.Context) error
}

// AuthService handles login, logout and the current user profile
type AuthService struct {
	client  *apiclient.Client
	session SessionStore
}

// NewAuthService creates a new AuthService
func NewAuthService(client *apiclient.Client, session SessionStore) *AuthService {
	return &AuthService{
		client:  client,
		session: session,
	}
}

// Login obtains a token pair, stores it and loads the user profile.
// A failure to load the profile leaves the session cleared.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var tokens TokenPair
	err := s.client.Auth(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/jwt/create/",
		Body:   req,
		NoAuth: true,
	}, &tokens)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if tokens.Access == "" {
		return nil, fmt.Errorf("login failed: no access token in response")
	}

	if err := s.session.SetTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx)
	if err != nil {
		if logoutErr := s.session.Logout(ctx); logoutErr != nil {
			logger.L(ctx).Error("failed to clear session", zap.Error(logoutErr))
		}
		return nil, fmt.Errorf("loading user profile: %w", err)
	}

	logger.L(ctx).Info("logged in", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return &LoginResult{Tokens: tokens, User: user}, nil
}

// Me fetches /auth/users/me/ and stores the profile in the session
func (s *AuthService) Me(ctx context.Context) (*identity.User, error) {
	var user identity.User
	if err := s.client.Auth(ctx, apiclient.Request{Method: http.MethodGet, Path: "/users/me/"}, &user); err != nil {
		return nil, err
	}
	if err := s.session.SetUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser returns the stored profile without a network call
func (s *AuthService) CurrentUser(ctx context.Context) (*identity.User, error) {
	return s.session.User(ctx)
}

// Logout clears the stored session
func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
