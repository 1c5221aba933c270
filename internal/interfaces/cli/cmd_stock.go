package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	appinventory "github.com/erp/chemstock/internal/application/inventory"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/infrastructure/export"
	"github.com/erp/chemstock/internal/infrastructure/logger"
)

func init() {
	register(
		&command{path: "inventory list", summary: "Show stock levels", setup: inventoryList},
		&command{path: "transactions list", summary: "Show the movement journal", setup: transactionsList},
		&command{path: "transactions history", summary: "Show the movements of one chemical at one facility", setup: transactionsHistory},
		&command{path: "operations create", summary: "Record a stock movement", setup: operationsSave(false)},
		&command{path: "operations show", args: "<uuid>", summary: "Show the transactions of an operation", setup: operationsShow},
		&command{path: "operations edit", args: "<uuid>", summary: "Replace an operation", setup: operationsSave(true)},
		&command{path: "operations delete", args: "<uuid>", summary: "Delete an operation and revert its stock", setup: operationsDelete},
	)
}

// exportFlags write a report to an Excel file and optionally archive it
type exportFlags struct {
	xlsx    string
	archive bool
}

func (e *exportFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&e.xlsx, "xlsx", "", "Also export to this Excel file")
	fs.BoolVar(&e.archive, "archive", false, "Copy the exported file to archive storage")
}

func (e *exportFlags) check(a *App) error {
	if e.archive && a.archiver == nil {
		return errStorageDisabled
	}
	return nil
}

// write renders sheets into the xlsx file when requested
func (e *exportFlags) write(ctx context.Context, a *App, sheets ...export.Sheet) error {
	if e.xlsx == "" {
		return nil
	}
	data, err := export.Workbook(sheets...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.xlsx, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", e.xlsx, err)
	}
	fmt.Fprintf(a.stderr, "Exported to %s\n", e.xlsx)

	if e.archive {
		key, err := a.archiver.Archive(ctx, "exports", filepath.Base(e.xlsx), data, export.ContentType)
		if err != nil {
			return fmt.Errorf("archiving export: %w", err)
		}
		logger.L(ctx).Info("export archived", zap.String("key", key))
		fmt.Fprintf(a.stderr, "Archived as %s\n", key)
	}
	return nil
}

func stockTable(p *Printer, items []inventory.InventoryItem) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"FACILITY", "CHEMICAL", "QUANTITY", "UNIT", "VALUE"}
		for _, it := range items {
			qty := p.Quantity(it.Quantity)
			if it.IsNegative() {
				qty += " (!)"
			}
			t.Add(it.Facility.Name, it.Chemical.Name, qty, it.Chemical.UnitOfMeasurement,
				p.Money(it.Quantity.Mul(it.Chemical.Price)))
		}
	}
}

func inventoryList(fs *pflag.FlagSet) runFunc {
	var facility int64
	var all bool
	var ex exportFlags
	fs.Int64Var(&facility, "facility", 0, "Only this facility (engineers default to their own)")
	fs.BoolVar(&all, "all", false, "Include zero balances")
	ex.register(fs)

	return func(ctx context.Context, a *App, args []string) error {
		if err := ex.check(a); err != nil {
			return err
		}
		if facility == 0 {
			if u, err := a.viewer(ctx); err == nil && !u.IsStaff() {
				facility = u.FacilityID()
			}
		}
		items, err := a.stock.List(ctx, facility, all)
		if err != nil {
			return err
		}
		if err := ex.write(ctx, a, export.StockSheet(items)); err != nil {
			return err
		}
		return a.out.Print(items, stockTable(a.out, items))
	}
}

// transactionFlags build a TransactionFilter
type transactionFlags struct {
	facility     int64
	fromFacility int64
	toFacility   int64
	kind         string
	chemical     int64
	operation    string
	period       periodFlags
}

func (f *transactionFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.facility, "facility", 0, "Either side of the movement")
	fs.Int64Var(&f.fromFacility, "from", 0, "Source facility")
	fs.Int64Var(&f.toFacility, "to", 0, "Destination facility")
	fs.StringVar(&f.kind, "type", "", "Type: add, consume, transfer")
	fs.Int64Var(&f.chemical, "chemical", 0, "Chemical id")
	fs.StringVar(&f.operation, "operation", "", "Operation uuid")
	f.period.register(fs)
}

func (f *transactionFlags) filter(now time.Time) (appinventory.TransactionFilter, error) {
	filter := appinventory.TransactionFilter{
		Facility:     f.facility,
		FromFacility: f.fromFacility,
		ToFacility:   f.toFacility,
		Type:         inventory.TransactionType(f.kind),
		Chemical:     f.chemical,
	}
	if f.kind != "" && !filter.Type.IsValid() {
		return filter, common.NewValidationError("transaction_type", fmt.Sprintf("unknown type %q", f.kind))
	}
	if f.operation != "" {
		id, err := parseUUID(f.operation)
		if err != nil {
			return filter, err
		}
		filter.OperationUUID = id
	}
	start, end, err := f.period.resolve(now)
	if err != nil {
		return filter, err
	}
	filter.StartDate, filter.EndDate = start, end
	return filter, nil
}

func facilityLabel(r fmt.Stringer, id int64) string {
	if s := r.String(); s != "" {
		return s
	}
	if id > 0 {
		return "#" + strconv.FormatInt(id, 10)
	}
	return "-"
}

func transactionTable(p *Printer, txs []inventory.Transaction) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"DATE", "TYPE", "CHEMICAL", "QUANTITY", "FROM", "TO", "COST", "OPERATION"}
		for i := range txs {
			tx := &txs[i]
			t.Add(
				tx.OperationDate.Format("02.01.2006 15:04"),
				tx.TransactionType.Label(),
				tx.Chemical.Name,
				p.Quantity(tx.Quantity)+" "+tx.Chemical.UnitOfMeasurement,
				facilityLabel(tx.FromFacility, tx.SourceID()),
				facilityLabel(tx.ToFacility, tx.DestinationID()),
				p.Money(tx.Cost()),
				tx.OperationUUID.String()[:8],
			)
		}
	}
}

func operationTable(p *Printer, ops []inventory.Operation) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"OPERATION", "DATE", "TYPE", "ITEMS", "COST", "COMMENT"}
		for i := range ops {
			op := &ops[i]
			rep := op.Representative()
			if rep == nil {
				continue
			}
			t.Add(op.UUID.String(), rep.OperationDate.Format("02.01.2006 15:04"), op.Type().Label(),
				strconv.Itoa(len(op.Transactions)), p.Money(op.TotalCost()), orDash(rep.Comment))
		}
	}
}

func transactionsList(fs *pflag.FlagSet) runFunc {
	var flags transactionFlags
	var grouped bool
	flags.register(fs)
	fs.BoolVar(&grouped, "grouped", false, "Group transactions by operation")

	return func(ctx context.Context, a *App, args []string) error {
		filter, err := flags.filter(a.now())
		if err != nil {
			return err
		}
		if grouped {
			ops, err := a.transactions.Operations(ctx, filter)
			if err != nil {
				return err
			}
			return a.out.Print(ops, operationTable(a.out, ops))
		}
		txs, err := a.transactions.List(ctx, filter)
		if err != nil {
			return err
		}
		return a.out.Print(txs, transactionTable(a.out, txs))
	}
}

func transactionsHistory(fs *pflag.FlagSet) runFunc {
	var facility, chemical int64
	fs.Int64Var(&facility, "facility", 0, "Facility id")
	fs.Int64Var(&chemical, "chemical", 0, "Chemical id")

	return func(ctx context.Context, a *App, args []string) error {
		if facility == 0 || chemical == 0 {
			return common.NewValidationError("facility", "--facility and --chemical are required")
		}
		txs, err := a.transactions.History(ctx, facility, chemical)
		if err != nil {
			return err
		}
		return a.out.Print(txs, transactionTable(a.out, txs))
	}
}

func operationsShow(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "an operation uuid"); err != nil {
			return err
		}
		id, err := parseUUID(args[0])
		if err != nil {
			return err
		}
		op, err := a.operations.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(op.Transactions, transactionTable(a.out, op.Transactions))
	}
}

// parseOperationDate accepts YYYY-MM-DDTHH:MM or a bare date
func parseOperationDate(s string) (time.Time, error) {
	for _, layout := range []string{appinventory.OperationDateLayout, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, common.NewValidationError("operation_date", fmt.Sprintf("%q is not a date, expected YYYY-MM-DDTHH:MM", s))
}

func operationsSave(edit bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var kind, comment, date, document string
		var from, to int64
		var items []string
		fs.StringVar(&kind, "type", "", "Type: add, consume, transfer")
		fs.Int64Var(&from, "from", 0, "Source facility (consume, transfer)")
		fs.Int64Var(&to, "to", 0, "Destination facility (add, transfer)")
		fs.StringVar(&comment, "comment", "", "Comment")
		fs.StringVar(&date, "date", "", "Operation date, YYYY-MM-DDTHH:MM (default now)")
		fs.StringArrayVar(&items, "item", nil, "Line as CHEMICAL:QUANTITY, repeatable")
		if !edit {
			fs.StringVar(&document, "document", "", "Attach a document file")
		}

		return func(ctx context.Context, a *App, args []string) error {
			var req appinventory.OperationRequest
			var id uuid.UUID
			if edit {
				if err := argCount(args, 1, "an operation uuid"); err != nil {
					return err
				}
				parsed, err := parseUUID(args[0])
				if err != nil {
					return err
				}
				id = parsed
				op, err := a.operations.Get(ctx, parsed)
				if err != nil {
					return err
				}
				req = appinventory.FromTransactions(op)
			} else {
				req.OperationDate = a.now()
			}

			if fs.Changed("type") {
				req.Type = inventory.TransactionType(kind)
			}
			if fs.Changed("from") {
				req.FromFacility = optionalID(from)
			}
			if fs.Changed("to") {
				req.ToFacility = optionalID(to)
			}
			if fs.Changed("comment") {
				req.Comment = comment
			}
			if date != "" {
				t, err := parseOperationDate(date)
				if err != nil {
					return err
				}
				req.OperationDate = t
			}
			if len(items) > 0 {
				specs, err := parseItems(items)
				if err != nil {
					return err
				}
				req.Items = req.Items[:0]
				for _, s := range specs {
					req.Items = append(req.Items, inventory.OperationItem{ChemicalID: s.Chemical, Quantity: s.Quantity})
				}
			}

			if edit {
				if err := a.operations.Edit(ctx, id, req); err != nil {
					return err
				}
				a.out.Message("Operation %s updated.", args[0])
				return nil
			}

			var doc *appinventory.Document
			if document != "" {
				name, data, err := readFile(document)
				if err != nil {
					return err
				}
				doc = &appinventory.Document{Name: name, Data: data}
			}
			if err := a.operations.Create(ctx, req, doc); err != nil {
				return err
			}
			a.out.Message("Operation recorded: %s, %d line(s).", req.Type.Label(), len(req.Items))
			return nil
		}
	}
}

func operationsDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "an operation uuid"); err != nil {
			return err
		}
		id, err := parseUUID(args[0])
		if err != nil {
			return err
		}
		if err := a.operations.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("Operation %s deleted.", id)
		return nil
	}
}
