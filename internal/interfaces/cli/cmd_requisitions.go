package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/erp/chemstock/internal/application/common"
	apprequisition "github.com/erp/chemstock/internal/application/requisition"
	"github.com/erp/chemstock/internal/domain/requisition"
)

func init() {
	register(
		&command{path: "requisitions list", summary: "List requisitions", setup: requisitionsList},
		&command{path: "requisitions show", args: "<id>", summary: "Show a requisition with its items", setup: requisitionsShow},
		&command{path: "requisitions create", summary: "Create a requisition", setup: requisitionsSave(false)},
		&command{path: "requisitions update", args: "<id>", summary: "Edit a requisition", setup: requisitionsSave(true)},
		&command{path: "requisitions actions", args: "<id>", summary: "List the status changes open to you", setup: requisitionsActions},
		&command{path: "requisitions status", args: "<id> <status>", summary: "Change the status of a requisition", setup: requisitionsStatus},
		&command{path: "requisitions receive", args: "<id> <item-id> <quantity>", summary: "Record the receipt of an item", setup: requisitionsReceive},
		&command{path: "requisitions revert", args: "<item-id>", summary: "Undo the receipts of an item", setup: requisitionsRevert},
	)
}

func requisitionTable(reqs ...requisition.Requisition) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "STATUS", "FACILITY", "REQUIRED", "ITEMS", "AUTHOR", "CREATED"}
		for i := range reqs {
			r := &reqs[i]
			facility := r.TargetFacilityName
			if facility == "" {
				facility = r.TargetFacility.String()
			}
			t.Add(strconv.FormatInt(r.ID, 10), r.Status.Label(), orDash(facility), r.RequiredDate.String(),
				strconv.Itoa(len(r.Items)), orDash(r.CreatedByName), r.CreatedAt.String())
		}
	}
}

func requisitionDetail(p *Printer, r *requisition.Requisition) func(t *Table) {
	return func(t *Table) {
		requisitionTable(*r)(t)
		if r.Comment != "" {
			t.Add("")
			t.Add("Comment:", r.Comment)
		}
		t.Add("")
		t.Add("ITEM", "CHEMICAL", "ORDERED", "RECEIVED", "REMAINING", "NOTES")
		for i := range r.Items {
			it := &r.Items[i]
			name := it.ChemicalName
			if name == "" {
				name = it.Chemical.String()
			}
			t.Add(strconv.FormatInt(it.ID, 10), name,
				p.Quantity(it.Quantity)+" "+it.Unit,
				p.Quantity(it.ReceivedQuantity),
				p.Quantity(it.Remaining()),
				orDash(it.Notes))
		}
	}
}

func requisitionsList(fs *pflag.FlagSet) runFunc {
	var status string
	var facility int64
	fs.StringVar(&status, "status", "", "Only this status, e.g. submitted")
	fs.Int64Var(&facility, "facility", 0, "Only this target facility")

	return func(ctx context.Context, a *App, args []string) error {
		filter := apprequisition.Filter{Status: requisition.Status(status), TargetFacility: facility}
		if status != "" && !filter.Status.IsValid() {
			return common.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
		}
		list, err := a.requisitions.List(ctx, filter)
		if err != nil {
			return err
		}
		return a.out.Print(list, requisitionTable(list...))
	}
}

func requisitionsShow(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a requisition id")
		if err != nil {
			return err
		}
		r, err := a.requisitions.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(r, requisitionDetail(a.out, r))
	}
}

func requisitionsSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var facility int64
		var date, comment, status string
		var items []string
		fs.Int64Var(&facility, "facility", 0, "Target facility")
		fs.StringVar(&date, "date", "", "Required by, YYYY-MM-DD")
		fs.StringVar(&comment, "comment", "", "Comment")
		fs.StringArrayVar(&items, "item", nil, "Line as CHEMICAL:QUANTITY[:NOTES], repeatable")
		if !update {
			fs.StringVar(&status, "status", string(requisition.StatusDraft), "Initial status: draft or submitted")
		}

		return func(ctx context.Context, a *App, args []string) error {
			var req apprequisition.RequisitionRequest
			var id int64
			if update {
				var err error
				if id, err = idArg(args, 1, "a requisition id"); err != nil {
					return err
				}
				current, err := a.requisitions.Get(ctx, id)
				if err != nil {
					return err
				}
				req = requestFrom(current)
			} else {
				req.Status = requisition.Status(status)
			}

			if fs.Changed("facility") {
				req.TargetFacility = facility
			}
			if fs.Changed("comment") {
				req.Comment = comment
			}
			if date != "" {
				d, err := optionalDate(date, "required_date")
				if err != nil {
					return err
				}
				req.RequiredDate = d
			}
			if len(items) > 0 {
				specs, err := parseItems(items)
				if err != nil {
					return err
				}
				req.Items = nil
				for _, s := range specs {
					req.Items = append(req.Items, apprequisition.ItemRequest{Chemical: s.Chemical, Quantity: s.Quantity, Notes: s.Notes})
				}
			}

			var (
				r   *requisition.Requisition
				err error
			)
			if update {
				r, err = a.requisitions.Update(ctx, id, req)
			} else {
				r, err = a.requisitions.Create(ctx, req)
			}
			if err != nil {
				return err
			}
			return a.out.Print(r, requisitionDetail(a.out, r))
		}
	}
}

// requestFrom turns a loaded requisition back into an editable request
func requestFrom(r *requisition.Requisition) apprequisition.RequisitionRequest {
	req := apprequisition.RequisitionRequest{
		RequiredDate: r.RequiredDate,
		Comment:      r.Comment,
	}
	if r.TargetFacility != nil {
		req.TargetFacility = r.TargetFacility.ID
	}
	for _, it := range r.Items {
		item := apprequisition.ItemRequest{Quantity: it.Quantity, Notes: it.Notes}
		if it.Chemical != nil {
			item.Chemical = it.Chemical.ID
		}
		req.Items = append(req.Items, item)
	}
	return req
}

func requisitionsActions(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a requisition id")
		if err != nil {
			return err
		}
		viewer, err := a.viewer(ctx)
		if err != nil {
			return err
		}
		r, actions, err := a.requisitions.Actions(ctx, id, viewer)
		if err != nil {
			return err
		}
		return a.out.Print(actions, func(t *Table) {
			t.Header = []string{"STATUS", "ACTION", "AVAILABLE", "REASON"}
			for _, act := range actions {
				available := "yes"
				if act.Disabled {
					available = "no"
				}
				t.Add(string(act.Target), act.Label, available, orDash(act.Reason))
			}
			if len(actions) == 0 {
				t.Add("-", fmt.Sprintf("no actions in status %q", r.Status.Label()), "", "")
			}
		})
	}
}

func requisitionsStatus(fs *pflag.FlagSet) runFunc {
	var force bool
	fs.BoolVar(&force, "force", false, "Skip the local workflow check and let the server decide")

	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 2, "a requisition id and a status")
		if err != nil {
			return err
		}
		target := requisition.Status(args[1])
		if !target.IsValid() {
			return common.NewValidationError("status", fmt.Sprintf("unknown status %q", args[1]))
		}
		viewer, err := a.viewer(ctx)
		if err != nil {
			return err
		}
		r, err := a.requisitions.ChangeStatus(ctx, id, target, viewer, force)
		if err != nil {
			return err
		}
		return a.out.Print(r, func(t *Table) {
			t.Add(fmt.Sprintf("Requisition %d is now %s.", r.ID, r.Status.Label()))
		})
	}
}

func requisitionsReceive(fs *pflag.FlagSet) runFunc {
	var date string
	fs.StringVar(&date, "date", "", "Receipt date, YYYY-MM-DDTHH:MM (default now)")

	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 3, "a requisition id, an item id and a quantity")
		if err != nil {
			return err
		}
		itemID, err := parseID(args[1], "item_id")
		if err != nil {
			return err
		}
		qty, err := parseQuantity(args[2], "quantity")
		if err != nil {
			return err
		}
		when := a.now()
		if date != "" {
			if when, err = parseOperationDate(date); err != nil {
				return err
			}
		}
		if err := a.requisitions.ReceiveItem(ctx, id, itemID, qty, when); err != nil {
			return err
		}
		a.out.Message("Received %s of item %d on %s.", a.out.Quantity(qty), itemID, when.Format(time.DateTime))
		return nil
	}
}

func requisitionsRevert(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "an item id"); err != nil {
			return err
		}
		itemID, err := parseID(args[0], "item_id")
		if err != nil {
			return err
		}
		if err := a.requisitions.RevertItem(ctx, itemID); err != nil {
			return err
		}
		a.out.Message("Receipts of item %d reverted.", itemID)
		return nil
	}
}
