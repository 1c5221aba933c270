package requisition

import (
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erp/chemstock/internal/domain/requisition"
	"github.com/erp/chemstock/internal/domain/shared"
)

// ItemRequest is one requested chemical
type ItemRequest struct {
	Chemical int64           `json:"chemical" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Notes    string          `json:"notes"`
}

// RequisitionRequest is the payload to create or update a requisition
type RequisitionRequest struct {
	TargetFacility int64              `json:"target_facility" validate:"required"`
	RequiredDate   shared.Date        `json:"required_date" validate:"required"`
	Comment        string             `json:"comment"`
	Items          []ItemRequest      `json:"items" validate:"min=1,dive"`
	Status         requisition.Status `json:"status,omitempty"`
}

// Filter narrows /requisitions/
type Filter struct {
	Status         requisition.Status
	TargetFacility int64
}

// Values encodes the filter as query parameters
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.TargetFacility > 0 {
		q.Set("target_facility", strconv.FormatInt(f.TargetFacility, 10))
	}
	return q
}

type statusPatch struct {
	Status requisition.Status `json:"status"`
}

type receiveItemRequest struct {
	ItemID        int64           `json:"item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	OperationDate string          `json:"operation_date"`
}

type revertItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// OperationDateLayout is the datetime-local format of receipts
const OperationDateLayout = "2006-01-02T15:04"
