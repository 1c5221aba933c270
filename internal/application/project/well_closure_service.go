package project

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

// WellClosureService reconciles actual and closed consumption per well
type WellClosureService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewWellClosureService creates a new WellClosureService
func NewWellClosureService(client *apiclient.Client, confirm common.Confirmer) *WellClosureService {
	return &WellClosureService{client: client, confirm: confirm}
}

// List returns closures matching f
func (s *WellClosureService) List(ctx context.Context, f WellClosureFilter) ([]project.WellClosure, error) {
	return apiclient.GetList[project.WellClosure](ctx, s.client, "/well-closures/", f.Values())
}

// Get returns one closure
func (s *WellClosureService) Get(ctx context.Context, id int64) (*project.WellClosure, error) {
	var c project.WellClosure
	if err := s.client.Get(ctx, closurePath(id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create adds a closure
func (s *WellClosureService) Create(ctx context.Context, req WellClosureRequest) (*project.WellClosure, error) {
	if err := validateClosure(req); err != nil {
		return nil, err
	}
	var c project.WellClosure
	if err := s.client.Post(ctx, "/well-closures/", req.payload(), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update replaces a closure with req
func (s *WellClosureService) Update(ctx context.Context, id int64, req WellClosureRequest) (*project.WellClosure, error) {
	if err := validateClosure(req); err != nil {
		return nil, err
	}
	var c project.WellClosure
	if err := s.client.Put(ctx, closurePath(id), req.payload(), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a closure after confirmation
func (s *WellClosureService) Delete(ctx context.Context, id int64) error {
	prompt := "Вы уверены, что хотите безвозвратно удалить эту запись о закрытии скважины?"
	if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
		return err
	}
	return s.client.Delete(ctx, closurePath(id))
}

// CalculateActuals asks the API for the consumption of req's facility and
// period and merges it into existing. Overwriting existing items needs
// confirmation; closed quantities are carried over per chemical.
func (s *WellClosureService) CalculateActuals(ctx context.Context, req ActualsRequest, existing []project.ClosureItem) ([]project.ClosureItem, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := checkPeriod(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		prompt := "Это действие перезапишет существующие позиции фактического расхода. Продолжить?"
		if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
			return nil, err
		}
	}

	var raw map[string]decimal.Decimal
	if err := s.client.Post(ctx, "/well-closures/calculate-actuals/", req, &raw); err != nil {
		return nil, err
	}

	actuals := make(map[int64]decimal.Decimal, len(raw))
	for key, qty := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected chemical key %q in actuals: %w", key, err)
		}
		actuals[id] = qty
	}

	logger.L(ctx).Debug("actuals calculated",
		zap.Int64("facility_id", req.FacilityID),
		zap.Int("chemicals", len(actuals)),
	)
	return project.MergeActuals(existing, actuals), nil
}

// Recalculate refreshes the actuals of a stored closure and saves it
func (s *WellClosureService) Recalculate(ctx context.Context, id int64) (*project.WellClosure, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Facility == nil || c.Facility.ID == 0 {
		return nil, common.NewValidationError("facility", "Укажите объект для расчета фактического расхода")
	}

	items, err := s.CalculateActuals(ctx, ActualsRequest{
		FacilityID: c.Facility.ID,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
	}, c.Items)
	if err != nil {
		return nil, err
	}

	req := FromWellClosure(c)
	req.Items = items
	return s.Update(ctx, id, req)
}

func validateClosure(req WellClosureRequest) error {
	if err := common.Validate(req); err != nil {
		return err
	}
	return checkPeriod(req.StartDate, req.EndDate)
}

func closurePath(id int64) string {
	return fmt.Sprintf("/well-closures/%d/", id)
}
