package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	appinventory "github.com/erp/chemstock/internal/application/inventory"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/domain/report"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

// Archiver keeps a copy of uploaded and exported files
type Archiver interface {
	Archive(ctx context.Context, kind, name string, data []byte, contentType string) (string, error)
}

// Option configures a Service
type Option func(*Service)

// WithArchiver copies every uploaded daily report to the archive
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// Service uploads daily reports and builds stock reports
type Service struct {
	client  *apiclient.Client
	confirm common.Confirmer
	archive Archiver
}

// NewService creates a new report Service
func NewService(client *apiclient.Client, confirm common.Confirmer, opts ...Option) *Service {
	s := &Service{client: client, confirm: confirm}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadDailyReport sends a daily report for server-side processing. The
// resulting operations are dated at the end of req.Date.
func (s *Service) UploadDailyReport(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	form := apiclient.NewForm().
		Set("project_id", strconv.FormatInt(req.ProjectID, 10)).
		Set("facility_id", strconv.FormatInt(req.FacilityID, 10)).
		Set("operation_date", req.Date.String()+reportDateTime).
		File("report_file", req.FileName, req.Data)

	res := &UploadResult{}
	if err := s.client.PostForm(ctx, "/reports/upload-transactions/", form, res); err != nil {
		return nil, err
	}

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, "daily-reports", req.FileName, req.Data, "application/octet-stream")
		if err != nil {
			// the upload itself succeeded
			logger.L(ctx).Warn("archiving daily report failed", zap.String("file", req.FileName), zap.Error(err))
		} else {
			res.ArchiveKey = key
		}
	}

	logger.L(ctx).Info("daily report uploaded",
		zap.Int64("project_id", req.ProjectID),
		zap.Int64("facility_id", req.FacilityID),
		zap.String("date", req.Date.String()),
	)
	return res, nil
}

// ListGroups returns uploaded reports. Engineers only see the uploads of
// their own facility.
func (s *Service) ListGroups(ctx context.Context, viewer *identity.User) ([]report.ReportGroup, error) {
	var q url.Values
	if viewer != nil && viewer.Role == identity.RoleEngineer {
		if id := viewer.FacilityID(); id > 0 {
			q = url.Values{"from_facility": {strconv.FormatInt(id, 10)}}
		}
	}
	return apiclient.GetList[report.ReportGroup](ctx, s.client, "/report-groups/", q)
}

// DeleteGroup reverts every transaction of an uploaded report after confirmation
func (s *Service) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	prompt := "Вы уверены? Это действие удалит все связанные транзакции и изменит остатки."
	if err := common.RequireConfirmation(ctx, s.confirm, prompt); err != nil {
		return err
	}
	return s.client.Delete(ctx, fmt.Sprintf("/report-groups/%s/", id))
}

// GroupTransactions returns the transactions produced by an uploaded report
func (s *Service) GroupTransactions(ctx context.Context, id uuid.UUID) ([]inventory.Transaction, error) {
	return apiclient.GetList[inventory.Transaction](ctx, s.client, "/transactions/",
		appinventory.TransactionFilter{OperationUUID: id}.Values())
}

// FacilityPeriod returns the stock totals of a facility over p
func (s *Service) FacilityPeriod(ctx context.Context, facilityID int64, p Period) (*report.FacilityPeriodReport, error) {
	if err := validPeriod(p); err != nil {
		return nil, err
	}
	q := url.Values{"facility_id": {strconv.FormatInt(facilityID, 10)}}
	p.set(q)

	var out report.FacilityPeriodReport
	if err := s.client.Get(ctx, "/reports/facility-detail/", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChemicalPeriod returns the movement of one chemical at a facility over p
func (s *Service) ChemicalPeriod(ctx context.Context, facilityID, chemicalID int64, p Period) (*report.ChemicalPeriodReport, error) {
	if err := validPeriod(p); err != nil {
		return nil, err
	}
	q := url.Values{
		"facility_id": {strconv.FormatInt(facilityID, 10)},
		"chemical_id": {strconv.FormatInt(chemicalID, 10)},
	}
	p.set(q)

	var out report.ChemicalPeriodReport
	if err := s.client.Get(ctx, "/reports/inventory-period/", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProjectAnalytics returns the plan-vs-actual report of the selected projects
func (s *Service) ProjectAnalytics(ctx context.Context, req AnalyticsRequest) (*report.ProjectAnalytics, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if len(req.ProjectIDs) == 1 && (req.Start.IsZero() || req.End.IsZero()) {
		var p project.Project
		if err := s.client.Get(ctx, fmt.Sprintf("/projects/%d/", req.ProjectIDs[0]), nil, &p); err != nil {
			return nil, err
		}
		if req.Start.IsZero() {
			req.Start = p.StartDate
		}
		if req.End.IsZero() {
			req.End = p.EndDate
		}
	}
	if err := validPeriod(Period{Start: req.Start, End: req.End}); err != nil {
		return nil, err
	}

	var out report.ProjectAnalytics
	if err := s.client.Get(ctx, "/reports/project-analytics/", req.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Consumption returns the consumed quantity per chemical across the selected
// facilities. Servers without a consumption report get the figure summed from
// the consume transactions.
func (s *Service) Consumption(ctx context.Context, req ConsumptionRequest) ([]report.ConsumptionRow, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := validPeriod(req.Period); err != nil {
		return nil, err
	}

	q := url.Values{}
	idValues(q, "facility_outcome", req.Facilities)
	req.Period.set(q)

	rows, err := apiclient.GetList[report.ConsumptionRow](ctx, s.client, "/reports/consumption/", q)
	if err == nil {
		report.SortConsumption(rows)
		return rows, nil
	}

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return nil, err
	}
	logger.L(ctx).Debug("consumption report unavailable, summing transactions")

	txs, err := apiclient.GetList[inventory.Transaction](ctx, s.client, "/transactions/", appinventory.TransactionFilter{
		FacilityOutcome: req.Facilities,
		Type:            inventory.TransactionTypeConsume,
		StartDate:       req.Period.Start,
		EndDate:         req.Period.End,
	}.Values())
	if err != nil {
		return nil, err
	}
	return report.AggregateConsumption(txs), nil
}

func validPeriod(p Period) error {
	if err := common.Validate(p); err != nil {
		return common.NewValidationError("period", "Выберите период.")
	}
	if p.End.Before(p.Start.Time) {
		return common.NewValidationError("end_date", "Дата окончания не может быть раньше даты начала")
	}
	return nil
}
