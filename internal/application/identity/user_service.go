package identity

import (
	"context"
	"fmt"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// UserService manages accounts through /users/
type UserService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewUserService creates a new UserService
func NewUserService(client *apiclient.Client, confirm common.Confirmer) *UserService {
	return &UserService{client: client, confirm: confirm}
}

// List returns every account
func (s *UserService) List(ctx context.Context) ([]identity.User, error) {
	return apiclient.GetList[identity.User](ctx, s.client, "/users/", nil)
}

// Create registers a new account
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*identity.User, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	req.RelatedFacility = normalizeFacility(req.Role, req.RelatedFacility)

	var user identity.User
	if err := s.client.Post(ctx, "/users/", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update changes an account
func (s *UserService) Update(ctx context.Context, id int64, req UpdateUserRequest) (*identity.User, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	req.RelatedFacility = normalizeFacility(req.Role, req.RelatedFacility)

	var user identity.User
	if err := s.client.Patch(ctx, fmt.Sprintf("/users/%d/", id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes an account after confirmation
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := common.RequireConfirmation(ctx, s.confirm, fmt.Sprintf("Вы уверены, что хотите удалить пользователя #%d? Это действие необратимо.", id)); err != nil {
		return err
	}
	return s.client.Delete(ctx, fmt.Sprintf("/users/%d/", id))
}
