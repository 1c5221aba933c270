package project

import (
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/domain/shared"
)

// ProjectRequest is the payload to create or replace a project
type ProjectRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Facility    int64                `json:"facility" validate:"required"`
	StartDate   shared.Date          `json:"start_date" validate:"required"`
	EndDate     shared.Date          `json:"end_date" validate:"required"`
	Status      project.Status       `json:"status" validate:"omitempty,oneof=planned active completed"`
	BudgetLines []project.BudgetLine `json:"budget_lines"`
}

// WellClosureRequest is the payload to create or replace a well closure
type WellClosureRequest struct {
	Facility   *int64                `json:"facility"`
	WellNumber string                `json:"well_number" validate:"required,max=100"`
	BushNumber string                `json:"bush_number" validate:"max=100"`
	Status     project.ClosureStatus `json:"status" validate:"omitempty,oneof=open partially_closed closed"`
	StartDate  shared.Date           `json:"start_date" validate:"required"`
	EndDate    shared.Date           `json:"end_date" validate:"required"`
	Comment    string                `json:"comment"`
	Items      []project.ClosureItem `json:"items"`
}

// FromWellClosure builds a replacement request from a stored closure
func FromWellClosure(c *project.WellClosure) WellClosureRequest {
	req := WellClosureRequest{
		WellNumber: c.WellNumber,
		BushNumber: c.BushNumber,
		Status:     c.Status,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
		Comment:    c.Comment,
		Items:      c.Items,
	}
	if c.Facility != nil && c.Facility.ID > 0 {
		id := c.Facility.ID
		req.Facility = &id
	}
	return req
}

// closureItemPayload is a closure item without its read-only fields
type closureItemPayload struct {
	Chemical       int64           `json:"chemical"`
	ActualQuantity decimal.Decimal `json:"actual_quantity"`
	ClosedQuantity decimal.Decimal `json:"closed_quantity"`
}

type wellClosurePayload struct {
	Facility   *int64                `json:"facility"`
	WellNumber string                `json:"well_number"`
	BushNumber string                `json:"bush_number"`
	Status     project.ClosureStatus `json:"status"`
	StartDate  shared.Date           `json:"start_date"`
	EndDate    shared.Date           `json:"end_date"`
	Comment    string                `json:"comment"`
	Items      []closureItemPayload  `json:"items"`
}

func (r WellClosureRequest) payload() wellClosurePayload {
	p := wellClosurePayload{
		Facility:   r.Facility,
		WellNumber: r.WellNumber,
		BushNumber: r.BushNumber,
		Status:     r.Status,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Comment:    r.Comment,
		Items:      make([]closureItemPayload, 0, len(r.Items)),
	}
	if p.Facility != nil && *p.Facility == 0 {
		p.Facility = nil
	}
	if p.Status == "" {
		p.Status = project.ClosureStatusOpen
	}
	for _, it := range r.Items {
		if it.ChemicalID() == 0 {
			continue
		}
		p.Items = append(p.Items, closureItemPayload{
			Chemical:       it.ChemicalID(),
			ActualQuantity: it.ActualQuantity,
			ClosedQuantity: it.ClosedQuantity,
		})
	}
	return p
}

// WellClosureFilter narrows /well-closures/
type WellClosureFilter struct {
	Status     project.ClosureStatus
	BushNumber string
	WellNumber string
	StartDate  shared.Date
	EndDate    shared.Date
}

// Values encodes the filter as query parameters
func (f WellClosureFilter) Values() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.BushNumber != "" {
		q.Set("bush_number", f.BushNumber)
	}
	if f.WellNumber != "" {
		q.Set("well_number", f.WellNumber)
	}
	if !f.StartDate.IsZero() {
		q.Set("start_date", f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		q.Set("end_date", f.EndDate.String())
	}
	return q
}

// ActualsRequest selects the facility and period whose consumption is summed
type ActualsRequest struct {
	FacilityID int64       `json:"facility_id" validate:"required"`
	StartDate  shared.Date `json:"start_date" validate:"required"`
	EndDate    shared.Date `json:"end_date" validate:"required"`
}

func checkPeriod(start, end shared.Date) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start.Time) {
		return common.NewValidationError("end_date", "Дата окончания не может быть раньше даты начала")
	}
	return nil
}

func facilityQuery(facilityID int64) url.Values {
	if facilityID <= 0 {
		return nil
	}
	return url.Values{"facility": {strconv.FormatInt(facilityID, 10)}}
}
