package inventory

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/shared"
)

// FacilityRequest is the payload to create or update a facility
type FacilityRequest struct {
	Name     string                 `json:"name" validate:"required,max=255"`
	Type     inventory.FacilityType `json:"type" validate:"required,oneof=warehouse well other"`
	Location string                 `json:"location"`
}

// ChemicalRequest is the payload to create or update a reagent
type ChemicalRequest struct {
	Name              string          `json:"name" validate:"required,max=255"`
	UnitOfMeasurement string          `json:"unit_of_measurement" validate:"required,max=50"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	Description       string          `json:"description"`
}

// TransactionFilter narrows /transactions/. Zero values are not sent.
type TransactionFilter struct {
	Facility        int64   // either side of the movement
	FromFacility    int64
	ToFacility      int64
	FacilityOutcome []int64 // stock leaving any of these facilities
	Type            inventory.TransactionType
	Chemical        int64
	OperationUUID   uuid.UUID
	StartDate       shared.Date
	EndDate         shared.Date
}

// Values encodes the filter as query parameters. Dates are widened to the
// whole day.
func (f TransactionFilter) Values() url.Values {
	q := url.Values{}
	setID := func(key string, id int64) {
		if id > 0 {
			q.Set(key, strconv.FormatInt(id, 10))
		}
	}
	setID("facility", f.Facility)
	setID("from_facility", f.FromFacility)
	setID("to_facility", f.ToFacility)
	for _, id := range f.FacilityOutcome {
		q.Add("facility_outcome", strconv.FormatInt(id, 10))
	}
	if f.Type != "" {
		q.Set("transaction_type", string(f.Type))
	}
	setID("chemical", f.Chemical)
	if f.OperationUUID != uuid.Nil {
		q.Set("operation_uuid", f.OperationUUID.String())
	}
	if !f.StartDate.IsZero() {
		q.Set("start_date", shared.DayStart(f.StartDate))
	}
	if !f.EndDate.IsZero() {
		q.Set("end_date", shared.DayEnd(f.EndDate))
	}
	return q
}

// OperationRequest describes a bulk stock movement
type OperationRequest struct {
	Type          inventory.TransactionType `json:"transaction_type" validate:"required,oneof=add consume transfer"`
	FromFacility  *int64                    `json:"from_facility"`
	ToFacility    *int64                    `json:"to_facility"`
	Comment       string                    `json:"comment"`
	OperationDate time.Time                 `json:"operation_date" validate:"required"`
	Items         []inventory.OperationItem `json:"items"`
}

// Document is an optional file attached to a new operation
type Document struct {
	Name string
	Data []byte
}

// operationPayload is the JSON body of /operations/edit/
type operationPayload struct {
	Type          inventory.TransactionType `json:"transaction_type"`
	FromFacility  *int64                    `json:"from_facility"`
	ToFacility    *int64                    `json:"to_facility"`
	Comment       string                    `json:"comment"`
	Items         []inventory.OperationItem `json:"items"`
	OperationDate string                    `json:"operation_date"`
}

type editOperationRequest struct {
	OriginalUUID     uuid.UUID        `json:"original_uuid"`
	NewOperationData operationPayload `json:"new_operation_data"`
}

type deleteOperationRequest struct {
	OperationUUID uuid.UUID `json:"operation_uuid"`
}

// OperationDateLayout is the datetime-local format the API expects
const OperationDateLayout = "2006-01-02T15:04"
