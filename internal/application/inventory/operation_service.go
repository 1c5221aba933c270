package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

// ErrNoItems is returned when an operation has no usable line
var ErrNoItems = common.NewValidationError("items", "Добавьте хотя бы один реагент с корректным количеством (больше нуля).")

// OperationService creates, edits and reverts bulk stock movements
type OperationService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewOperationService creates a new OperationService
func NewOperationService(client *apiclient.Client, confirm common.Confirmer) *OperationService {
	return &OperationService{client: client, confirm: confirm}
}

// prepare validates req and returns its complete lines
func prepare(req *OperationRequest) error {
	if err := common.Validate(req); err != nil {
		return err
	}
	if req.Type.NeedsSource() && (req.FromFacility == nil || *req.FromFacility == 0) {
		return common.NewValidationError("from_facility", "This field is required")
	}
	if req.Type.NeedsDestination() && (req.ToFacility == nil || *req.ToFacility == 0) {
		return common.NewValidationError("to_facility", "This field is required")
	}
	if !req.Type.NeedsSource() {
		req.FromFacility = nil
	}
	if !req.Type.NeedsDestination() {
		req.ToFacility = nil
	}
	req.Items = inventory.CompleteItems(req.Items)
	if len(req.Items) == 0 {
		return ErrNoItems
	}
	return nil
}

// Create posts a new operation as multipart form, with doc attached when set
func (s *OperationService) Create(ctx context.Context, req OperationRequest, doc *Document) error {
	if err := prepare(&req); err != nil {
		return err
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		return fmt.Errorf("encoding items: %w", err)
	}

	form := apiclient.NewForm().Set("transaction_type", string(req.Type))
	if req.FromFacility != nil {
		form.Set("from_facility", strconv.FormatInt(*req.FromFacility, 10))
	}
	if req.ToFacility != nil {
		form.Set("to_facility", strconv.FormatInt(*req.ToFacility, 10))
	}
	form.Set("comment", req.Comment).
		Set("operation_date", req.OperationDate.Format(OperationDateLayout))
	if doc != nil && len(doc.Data) > 0 {
		form.File("document_file", doc.Name, doc.Data)
	}
	form.Set("items", string(items))

	if err := s.client.PostForm(ctx, "/operations/create/bulk/", form, nil); err != nil {
		return err
	}
	logger.L(ctx).Info("operation created",
		zap.String("type", string(req.Type)),
		zap.Int("items", len(req.Items)),
	)
	return nil
}

// Get loads the transactions of one operation
func (s *OperationService) Get(ctx context.Context, id uuid.UUID) (*inventory.Operation, error) {
	txs, err := apiclient.GetList[inventory.Transaction](ctx, s.client, "/transactions/",
		TransactionFilter{OperationUUID: id}.Values())
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, shared.ErrNotFound
	}
	return &inventory.Operation{UUID: id, Transactions: txs}, nil
}

// Edit replaces operation id with req. The attached document is kept as is.
func (s *OperationService) Edit(ctx context.Context, id uuid.UUID, req OperationRequest) error {
	if err := prepare(&req); err != nil {
		return err
	}
	body := editOperationRequest{
		OriginalUUID: id,
		NewOperationData: operationPayload{
			Type:          req.Type,
			FromFacility:  req.FromFacility,
			ToFacility:    req.ToFacility,
			Comment:       req.Comment,
			Items:         req.Items,
			OperationDate: req.OperationDate.Format(OperationDateLayout),
		},
	}
	return s.client.Post(ctx, "/operations/edit/", body, nil)
}

// Delete reverts every transaction of the operation after confirmation
func (s *OperationService) Delete(ctx context.Context, id uuid.UUID) error {
	prompt := "Вы уверены, что хотите безвозвратно удалить эту операцию? Это действие затронет остатки."
	if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
		return err
	}
	return s.client.Post(ctx, "/operations/delete/", deleteOperationRequest{OperationUUID: id}, nil)
}

// FromTransactions rebuilds an edit request from an existing operation
func FromTransactions(op *inventory.Operation) OperationRequest {
	rep := op.Representative()
	req := OperationRequest{}
	if rep == nil {
		return req
	}
	req.Type = rep.TransactionType
	req.Comment = rep.Comment
	req.OperationDate = rep.OperationDate.Time
	if id := rep.SourceID(); id > 0 {
		req.FromFacility = &id
	}
	if id := rep.DestinationID(); id > 0 {
		req.ToFacility = &id
	}
	for _, tx := range op.Transactions {
		req.Items = append(req.Items, inventory.OperationItem{ChemicalID: tx.Chemical.ID, Quantity: tx.Quantity})
	}
	return req
}
