package requisition

import (
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the workflow state of a requisition
type Status string

const (
	StatusDraft              Status = "draft"
	StatusSubmitted          Status = "submitted"
	StatusReviewing          Status = "reviewing"
	StatusNeedsRevision      Status = "needs_revision"
	StatusApproved           Status = "approved"
	StatusInProgress         Status = "in_progress"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
	StatusOverdue            Status = "overdue"
)

// AllStatuses lists every status in workflow order
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusReviewing,
	StatusNeedsRevision,
	StatusApproved,
	StatusInProgress,
	StatusPartiallyCompleted,
	StatusCompleted,
	StatusCancelled,
	StatusOverdue,
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusOverdue
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Label returns the display name
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Черновик"
	case StatusSubmitted:
		return "Подана"
	case StatusReviewing:
		return "На рассмотрении"
	case StatusNeedsRevision:
		return "На доработке"
	case StatusApproved:
		return "Утверждена"
	case StatusInProgress:
		return "В исполнении"
	case StatusPartiallyCompleted:
		return "Частично выполнена"
	case StatusCompleted:
		return "Выполнена"
	case StatusCancelled:
		return "Отменена"
	case StatusOverdue:
		return "Просрочена"
	}
	return "Неизвестно"
}

// AcceptsReceipts reports whether items may be received against the requisition
func (s Status) AcceptsReceipts() bool {
	return s == StatusInProgress || s == StatusPartiallyCompleted
}

// Item is one requested chemical
type Item struct {
	ID               int64           `json:"id,omitempty"`
	Chemical         *shared.Ref     `json:"chemical"`
	ChemicalName     string          `json:"chemical_name,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	Notes            string          `json:"notes"`
}

// Remaining returns the quantity still to be received, never negative
func (i *Item) Remaining() decimal.Decimal {
	rest := i.Quantity.Sub(i.ReceivedQuantity)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// IsFullyReceived reports received_quantity >= quantity
func (i *Item) IsFullyReceived() bool {
	return i.ReceivedQuantity.GreaterThanOrEqual(i.Quantity)
}

// Requisition is a supply request routed through the approval workflow
type Requisition struct {
	ID                 int64           `json:"id"`
	Status             Status          `json:"status"`
	TargetFacility     *shared.Ref     `json:"target_facility"`
	TargetFacilityName string          `json:"target_facility_name"`
	RequiredDate       shared.Date     `json:"required_date"`
	Comment            string          `json:"comment"`
	Items              []Item          `json:"items"`
	CreatedBy          *shared.Ref     `json:"created_by"`
	CreatedByName      string          `json:"created_by_name"`
	ApprovedBy         *shared.Ref     `json:"approved_by"`
	ApprovedAt         shared.DateTime `json:"approved_at"`
	SubmittedAt        shared.DateTime `json:"submitted_at"`
	CreatedAt          shared.DateTime `json:"created_at"`
}

// FullyReceived reports whether every item has received_quantity >= quantity
func (r *Requisition) FullyReceived() bool {
	for i := range r.Items {
		if !r.Items[i].IsFullyReceived() {
			return false
		}
	}
	return true
}

// PendingItems returns the items still awaiting receipt
func (r *Requisition) PendingItems() []Item {
	var out []Item
	for _, it := range r.Items {
		if !it.IsFullyReceived() {
			out = append(out, it)
		}
	}
	return out
}

// FindItem returns the item with the given id
func (r *Requisition) FindItem(id int64) (*Item, bool) {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// IsCreatedBy reports whether the viewer authored the requisition. The author
// is matched by id, or by username when the API serialized only the name.
func (r *Requisition) IsCreatedBy(viewer *identity.User) bool {
	if viewer == nil || r.CreatedBy == nil {
		return false
	}
	if r.CreatedBy.ID != 0 {
		return r.CreatedBy.ID == viewer.ID
	}
	return r.CreatedBy.Name != "" && r.CreatedBy.Name == viewer.Username
}
