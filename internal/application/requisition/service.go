package requisition

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/requisition"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
	"github.com/erp/chemstock/internal/infrastructure/telemetry"
)

// Service drives requisitions through the approval workflow
type Service struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewService creates a new requisition Service
func NewService(client *apiclient.Client, confirm common.Confirmer) *Service {
	return &Service{client: client, confirm: confirm}
}

// List returns requisitions matching f
func (s *Service) List(ctx context.Context, f Filter) ([]requisition.Requisition, error) {
	return apiclient.GetList[requisition.Requisition](ctx, s.client, "/requisitions/", f.Values())
}

// Get returns one requisition
func (s *Service) Get(ctx context.Context, id int64) (*requisition.Requisition, error) {
	var r requisition.Requisition
	if err := s.client.Get(ctx, requisitionPath(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create files a new requisition, as a draft unless req says otherwise
func (s *Service) Create(ctx context.Context, req RequisitionRequest) (*requisition.Requisition, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = requisition.StatusDraft
	}
	if !req.Status.IsValid() {
		return nil, common.NewValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
	}

	var r requisition.Requisition
	if err := s.client.Post(ctx, "/requisitions/", req, &r); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("requisition created",
		zap.Int64("requisition_id", r.ID),
		zap.Int("items", len(req.Items)),
	)
	return &r, nil
}

// Update patches the fields and items of a requisition. The status is left
// alone; use ChangeStatus for that.
func (s *Service) Update(ctx context.Context, id int64, req RequisitionRequest) (*requisition.Requisition, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	req.Status = ""

	var r requisition.Requisition
	if err := s.client.Patch(ctx, requisitionPath(id), req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Actions returns the status changes the viewer is offered on requisition id
func (s *Service) Actions(ctx context.Context, id int64, viewer *identity.User) (*requisition.Requisition, []requisition.Action, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return r, requisition.AvailableActions(r, viewer), nil
}

// ChangeStatus moves requisition id to target. The workflow check runs first
// unless force is set; the server has the final word either way.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target requisition.Status, viewer *identity.User, force bool) (*requisition.Requisition, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "requisition", "change_status")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRequisition, id,
		telemetry.SpanAttrTargetStatus, string(target),
	)

	current, err := s.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	prompt := fmt.Sprintf("Вы уверены, что хотите изменить статус на %q?", target.Label())
	if !force {
		if err := requisition.CanTransition(current, viewer, target); err != nil {
			return nil, err
		}
		for _, a := range requisition.AvailableActions(current, viewer) {
			if a.Target == target && a.Confirm != "" {
				prompt = a.Confirm
				break
			}
		}
	}
	if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
		return nil, err
	}

	var updated requisition.Requisition
	if err := s.client.Patch(ctx, requisitionPath(id), statusPatch{Status: target}, &updated); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Info("requisition status changed",
		zap.Int64("requisition_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.Bool("forced", force),
	)
	return &updated, nil
}

// ReceiveItem books qty of item itemID as delivered into the target facility
func (s *Service) ReceiveItem(ctx context.Context, requisitionID, itemID int64, qty decimal.Decimal, operationDate time.Time) error {
	r, err := s.Get(ctx, requisitionID)
	if err != nil {
		return err
	}
	if !r.Status.AcceptsReceipts() {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			fmt.Sprintf("Requisition in status %s does not accept receipts", r.Status))
	}
	item, ok := r.FindItem(itemID)
	if !ok {
		return shared.NewDomainError(shared.ErrNotFound.Code,
			fmt.Sprintf("Item %d is not part of requisition %d", itemID, requisitionID))
	}
	if !qty.IsPositive() {
		return common.NewValidationError("quantity", "Количество должно быть больше нуля")
	}
	if rest := item.Remaining(); qty.GreaterThan(rest) {
		return common.NewValidationError("quantity",
			fmt.Sprintf("Количество не может превышать остаток к получению (%s)", rest.String()))
	}
	if operationDate.IsZero() {
		operationDate = time.Now()
	}

	body := receiveItemRequest{
		ItemID:        itemID,
		Quantity:      qty,
		OperationDate: operationDate.Format(OperationDateLayout),
	}
	if err := s.client.Post(ctx, "/requisitions/receive-item/", body, nil); err != nil {
		return err
	}
	logger.L(ctx).Info("requisition item received",
		zap.Int64("requisition_id", requisitionID),
		zap.Int64("item_id", itemID),
		zap.String("quantity", qty.String()),
	)
	return nil
}

// RevertItem cancels every receipt booked against itemID after confirmation
func (s *Service) RevertItem(ctx context.Context, itemID int64) error {
	prompt := "Вы уверены, что хотите отменить получение этой позиции? Связанные транзакции будут удалены."
	if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
		return err
	}
	return s.client.Post(ctx, "/requisitions/revert-item/", revertItemRequest{ItemID: itemID}, nil)
}

func requisitionPath(id int64) string {
	return fmt.Sprintf("/requisitions/%d/", id)
}
