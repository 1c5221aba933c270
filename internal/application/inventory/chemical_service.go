package inventory

import (
	"context"
	"fmt"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// ChemicalService manages the reagent catalogue
type ChemicalService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewChemicalService creates a new ChemicalService
func NewChemicalService(client *apiclient.Client, confirm common.Confirmer) *ChemicalService {
	return &ChemicalService{client: client, confirm: confirm}
}

// List returns the catalogue
func (s *ChemicalService) List(ctx context.Context) ([]inventory.Chemical, error) {
	return apiclient.GetList[inventory.Chemical](ctx, s.client, "/chemicals/", nil)
}

// Get returns one reagent
func (s *ChemicalService) Get(ctx context.Context, id int64) (*inventory.Chemical, error) {
	var c inventory.Chemical
	if err := s.client.Get(ctx, chemicalPath(id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create adds a reagent
func (s *ChemicalService) Create(ctx context.Context, req ChemicalRequest) (*inventory.Chemical, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	var c inventory.Chemical
	if err := s.client.Post(ctx, "/chemicals/", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update patches a reagent
func (s *ChemicalService) Update(ctx context.Context, id int64, req ChemicalRequest) (*inventory.Chemical, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	var c inventory.Chemical
	if err := s.client.Patch(ctx, chemicalPath(id), req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a reagent after confirmation
func (s *ChemicalService) Delete(ctx context.Context, id int64) error {
	if err := common.RequireConfirmation(ctx, s.confirm, fmt.Sprintf("Вы уверены, что хотите удалить реагент #%d?", id)); err != nil {
		return err
	}
	return s.client.Delete(ctx, chemicalPath(id))
}

func chemicalPath(id int64) string {
	return fmt.Sprintf("/chemicals/%d/", id)
}
