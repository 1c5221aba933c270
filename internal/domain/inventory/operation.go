package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation is a batch of transactions entered together and undone as one unit
type Operation struct {
	UUID         uuid.UUID
	Transactions []Transaction
}

// Representative returns the first transaction, which carries the shared header
// fields (type, facilities, date, comment, document).
func (o *Operation) Representative() *Transaction {
	if len(o.Transactions) == 0 {
		return nil
	}
	return &o.Transactions[0]
}

// Type returns the movement type of the batch
func (o *Operation) Type() TransactionType {
	if rep := o.Representative(); rep != nil {
		return rep.TransactionType
	}
	return ""
}

// TotalCost sums the cost of every line
func (o *Operation) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Transactions {
		total = total.Add(o.Transactions[i].Cost())
	}
	return total
}

// GroupOperations groups transactions by operation_uuid, preserving the order in
// which each operation is first seen.
func GroupOperations(txs []Transaction) []Operation {
	index := make(map[uuid.UUID]int)
	ops := make([]Operation, 0)

	for _, tx := range txs {
		i, ok := index[tx.OperationUUID]
		if !ok {
			i = len(ops)
			index[tx.OperationUUID] = i
			ops = append(ops, Operation{UUID: tx.OperationUUID})
		}
		ops[i].Transactions = append(ops[i].Transactions, tx)
	}

	return ops
}

// OperationItem is one chemical line of a bulk operation
type OperationItem struct {
	ChemicalID int64           `json:"chemicalId"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// IsComplete reports whether the line has a chemical and a positive quantity
func (i OperationItem) IsComplete() bool {
	return i.ChemicalID > 0 && i.Quantity.IsPositive()
}

// CompleteItems drops lines with no chemical or a non-positive quantity
func CompleteItems(items []OperationItem) []OperationItem {
	out := make([]OperationItem, 0, len(items))
	for _, it := range items {
		if it.IsComplete() {
			out = append(out, it)
		}
	}
	return out
}
