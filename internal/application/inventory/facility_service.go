package inventory

import (
	"context"
	"fmt"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// FacilityService manages warehouses and wells
type FacilityService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewFacilityService creates a new FacilityService
func NewFacilityService(client *apiclient.Client, confirm common.Confirmer) *FacilityService {
	return &FacilityService{client: client, confirm: confirm}
}

// List returns every facility
func (s *FacilityService) List(ctx context.Context) ([]inventory.Facility, error) {
	return apiclient.GetList[inventory.Facility](ctx, s.client, "/facilities/", nil)
}

// Get returns one facility
func (s *FacilityService) Get(ctx context.Context, id int64) (*inventory.Facility, error) {
	var f inventory.Facility
	if err := s.client.Get(ctx, facilityPath(id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create adds a facility
func (s *FacilityService) Create(ctx context.Context, req FacilityRequest) (*inventory.Facility, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	var f inventory.Facility
	if err := s.client.Post(ctx, "/facilities/", req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Update patches a facility
func (s *FacilityService) Update(ctx context.Context, id int64, req FacilityRequest) (*inventory.Facility, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	var f inventory.Facility
	if err := s.client.Patch(ctx, facilityPath(id), req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete removes a facility after confirmation
func (s *FacilityService) Delete(ctx context.Context, id int64) error {
	if err := common.RequireConfirmation(ctx, s.confirm, fmt.Sprintf("Удалить объект #%d? Это действие необратимо.", id)); err != nil {
		return err
	}
	return s.client.Delete(ctx, facilityPath(id))
}

func facilityPath(id int64) string {
	return fmt.Sprintf("/facilities/%d/", id)
}
