package inventory

import (
	"context"
	"sort"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// TransactionService reads the stock journal
type TransactionService struct {
	client *apiclient.Client
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(client *apiclient.Client) *TransactionService {
	return &TransactionService{client: client}
}

// List returns journal lines matching filter in server order
func (s *TransactionService) List(ctx context.Context, filter TransactionFilter) ([]inventory.Transaction, error) {
	return apiclient.GetList[inventory.Transaction](ctx, s.client, "/transactions/", filter.Values())
}

// Operations returns the journal grouped by operation
func (s *TransactionService) Operations(ctx context.Context, filter TransactionFilter) ([]inventory.Operation, error) {
	txs, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return inventory.GroupOperations(txs), nil
}

// History returns the movements of one reagent at one facility, newest first
func (s *TransactionService) History(ctx context.Context, facilityID, chemicalID int64) ([]inventory.Transaction, error) {
	txs, err := s.List(ctx, TransactionFilter{Facility: facilityID, Chemical: chemicalID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].OperationDate.After(txs[j].OperationDate.Time)
	})
	return txs, nil
}
