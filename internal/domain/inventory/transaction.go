package inventory

import (
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a stock movement
type TransactionType string

const (
	TransactionTypeAdd      TransactionType = "add"
	TransactionTypeConsume  TransactionType = "consume"
	TransactionTypeTransfer TransactionType = "transfer"
)

// IsValid checks if the type is a valid TransactionType
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeAdd, TransactionTypeConsume, TransactionTypeTransfer:
		return true
	}
	return false
}

// Label returns the display name
func (t TransactionType) Label() string {
	switch t {
	case TransactionTypeAdd:
		return "Поступление"
	case TransactionTypeConsume:
		return "Списание"
	case TransactionTypeTransfer:
		return "Перемещение"
	}
	return string(t)
}

// NeedsSource reports whether the movement leaves a facility
func (t TransactionType) NeedsSource() bool {
	return t == TransactionTypeConsume || t == TransactionTypeTransfer
}

// NeedsDestination reports whether the movement enters a facility
func (t TransactionType) NeedsDestination() bool {
	return t == TransactionTypeAdd || t == TransactionTypeTransfer
}

// Transaction is one line of the stock journal
type Transaction struct {
	ID              int64           `json:"id"`
	OperationUUID   uuid.UUID       `json:"operation_uuid"`
	TransactionType TransactionType `json:"transaction_type"`
	Chemical        Chemical        `json:"chemical"`
	Quantity        decimal.Decimal `json:"quantity"`
	FromFacility    *shared.Ref     `json:"from_facility"`
	ToFacility      *shared.Ref     `json:"to_facility"`
	FromFacilityID  *int64          `json:"from_facility_id"`
	ToFacilityID    *int64          `json:"to_facility_id"`
	PerformedBy     *shared.Ref     `json:"performed_by"`
	Timestamp       shared.DateTime `json:"timestamp"`
	OperationDate   shared.DateTime `json:"operation_date"`
	DocumentName    string          `json:"document_name"`
	DocumentFile    *string         `json:"document_file"`
	Comment         string          `json:"comment"`
}

// SourceID returns the id of the facility stock left, 0 if none
func (t *Transaction) SourceID() int64 {
	if t.FromFacilityID != nil {
		return *t.FromFacilityID
	}
	if t.FromFacility != nil {
		return t.FromFacility.ID
	}
	return 0
}

// DestinationID returns the id of the facility stock entered, 0 if none
func (t *Transaction) DestinationID() int64 {
	if t.ToFacilityID != nil {
		return *t.ToFacilityID
	}
	if t.ToFacility != nil {
		return t.ToFacility.ID
	}
	return 0
}

// Cost returns quantity times the chemical price
func (t *Transaction) Cost() decimal.Decimal {
	return t.Quantity.Mul(t.Chemical.Price)
}
