package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	appproject "github.com/erp/chemstock/internal/application/project"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/domain/shared"
)

func init() {
	register(
		&command{path: "projects list", summary: "List projects", setup: projectsList},
		&command{path: "projects get", args: "<id>", summary: "Show a project with its budget", setup: projectsGet},
		&command{path: "projects create", summary: "Create a project", setup: projectsSave(false)},
		&command{path: "projects update", args: "<id>", summary: "Update a project", setup: projectsSave(true)},
		&command{path: "projects delete", args: "<id>", summary: "Delete a project", setup: projectsDelete},

		&command{path: "well-closures list", summary: "List well closures", setup: closuresList},
		&command{path: "well-closures show", args: "<id>", summary: "Show a well closure", setup: closuresShow},
		&command{path: "well-closures create", summary: "Create a well closure", setup: closuresSave(false)},
		&command{path: "well-closures update", args: "<id>", summary: "Update a well closure", setup: closuresSave(true)},
		&command{path: "well-closures delete", args: "<id>", summary: "Delete a well closure", setup: closuresDelete},
		&command{path: "well-closures calculate", args: "<id>", summary: "Recalculate actual consumption and save", setup: closuresCalculate},
	)
}

func projectTable(projects ...project.Project) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "NAME", "FACILITY", "STATUS", "START", "END", "LINES"}
		for i := range projects {
			p := &projects[i]
			facility := p.FacilityName
			if facility == "" {
				facility = p.Facility.String()
			}
			t.Add(strconv.FormatInt(p.ID, 10), p.Name, orDash(facility), p.Status.Label(),
				p.StartDate.String(), p.EndDate.String(), strconv.Itoa(len(p.BudgetLines)))
		}
	}
}

func projectDetail(out *Printer, p *project.Project) func(t *Table) {
	return func(t *Table) {
		projectTable(*p)(t)
		if len(p.BudgetLines) == 0 {
			return
		}
		t.Add("")
		t.Add("CHEMICAL", "PLANNED")
		for _, line := range p.BudgetLines {
			name := line.ChemicalName
			if name == "" {
				name = line.Chemical.String()
			}
			t.Add(name, out.Quantity(line.PlannedQuantity))
		}
	}
}

func projectsList(fs *pflag.FlagSet) runFunc {
	var facility int64
	fs.Int64Var(&facility, "facility", 0, "Only projects of this facility")

	return func(ctx context.Context, a *App, args []string) error {
		list, err := a.projects.List(ctx, facility)
		if err != nil {
			return err
		}
		return a.out.Print(list, projectTable(list...))
	}
}

func projectsGet(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a project id")
		if err != nil {
			return err
		}
		p, err := a.projects.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(p, projectDetail(a.out, p))
	}
}

func projectsSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var name, status, start, end string
		var facility int64
		var lines []string
		fs.StringVar(&name, "name", "", "Project name")
		fs.Int64Var(&facility, "facility", 0, "Facility (well)")
		fs.StringVar(&status, "status", "", "Status: planned, active, completed")
		fs.StringVar(&start, "start", "", "Start date, YYYY-MM-DD")
		fs.StringVar(&end, "end", "", "End date, YYYY-MM-DD")
		fs.StringArrayVar(&lines, "line", nil, "Budget line as CHEMICAL:PLANNED_QUANTITY, repeatable")

		return func(ctx context.Context, a *App, args []string) error {
			var req appproject.ProjectRequest
			var id int64
			if update {
				var err error
				if id, err = idArg(args, 1, "a project id"); err != nil {
					return err
				}
				current, err := a.projects.Get(ctx, id)
				if err != nil {
					return err
				}
				req = appproject.ProjectRequest{
					Name:        current.Name,
					StartDate:   current.StartDate,
					EndDate:     current.EndDate,
					Status:      current.Status,
					BudgetLines: current.BudgetLines,
				}
				if current.Facility != nil {
					req.Facility = current.Facility.ID
				}
			}

			if fs.Changed("name") {
				req.Name = name
			}
			if fs.Changed("facility") {
				req.Facility = facility
			}
			if fs.Changed("status") {
				req.Status = project.Status(status)
			}
			var err error
			if start != "" {
				if req.StartDate, err = optionalDate(start, "start_date"); err != nil {
					return err
				}
			}
			if end != "" {
				if req.EndDate, err = optionalDate(end, "end_date"); err != nil {
					return err
				}
			}
			if len(lines) > 0 {
				specs, err := parseItems(lines)
				if err != nil {
					return err
				}
				req.BudgetLines = nil
				for _, s := range specs {
					req.BudgetLines = append(req.BudgetLines, project.BudgetLine{
						Chemical:        shared.NewRef(s.Chemical),
						PlannedQuantity: s.Quantity,
					})
				}
			}

			var p *project.Project
			if update {
				p, err = a.projects.Update(ctx, id, req)
			} else {
				p, err = a.projects.Create(ctx, req)
			}
			if err != nil {
				return err
			}
			return a.out.Print(p, projectDetail(a.out, p))
		}
	}
}

func projectsDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a project id")
		if err != nil {
			return err
		}
		if err := a.projects.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("Project %d deleted.", id)
		return nil
	}
}

func closureTable(closures ...project.WellClosure) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "WELL", "BUSH", "FACILITY", "STATUS", "START", "END", "ITEMS"}
		for i := range closures {
			c := &closures[i]
			t.Add(strconv.FormatInt(c.ID, 10), c.WellNumber, orDash(c.BushNumber), orDash(c.Facility.String()),
				c.Status.Label(), c.StartDate.String(), c.EndDate.String(), strconv.Itoa(len(c.Items)))
		}
	}
}

func closureDetail(out *Printer, c *project.WellClosure) func(t *Table) {
	return func(t *Table) {
		closureTable(*c)(t)
		if c.Comment != "" {
			t.Add("")
			t.Add("Comment:", c.Comment)
		}
		if len(c.Items) == 0 {
			return
		}
		t.Add("")
		t.Add("CHEMICAL", "ACTUAL", "CLOSED", "UNCLOSED", "UNIT")
		for i := range c.Items {
			it := &c.Items[i]
			name := it.ChemicalName
			if name == "" {
				name = it.Chemical.String()
			}
			t.Add(name, out.Quantity(it.ActualQuantity), out.Quantity(it.ClosedQuantity),
				out.Quantity(it.Unclosed()), orDash(it.UnitOfMeasurement))
		}
	}
}

// closureFilterFlags build a WellClosureFilter
type closureFilterFlags struct {
	status string
	bush   string
	well   string
	start  string
	end    string
}

func (f *closureFilterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.status, "status", "", "Status: open, partially_closed, closed")
	fs.StringVar(&f.bush, "bush", "", "Bush number")
	fs.StringVar(&f.well, "well", "", "Well number")
	fs.StringVar(&f.start, "start", "", "From date, YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "To date, YYYY-MM-DD")
}

func (f *closureFilterFlags) filter() (appproject.WellClosureFilter, error) {
	filter := appproject.WellClosureFilter{
		Status:     project.ClosureStatus(f.status),
		BushNumber: f.bush,
		WellNumber: f.well,
	}
	var err error
	if filter.StartDate, err = optionalDate(f.start, "start_date"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = optionalDate(f.end, "end_date"); err != nil {
		return filter, err
	}
	return filter, nil
}

func closuresList(fs *pflag.FlagSet) runFunc {
	var flags closureFilterFlags
	flags.register(fs)

	return func(ctx context.Context, a *App, args []string) error {
		filter, err := flags.filter()
		if err != nil {
			return err
		}
		list, err := a.closures.List(ctx, filter)
		if err != nil {
			return err
		}
		return a.out.Print(list, closureTable(list...))
	}
}

func closuresShow(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a well closure id")
		if err != nil {
			return err
		}
		c, err := a.closures.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(c, closureDetail(a.out, c))
	}
}

// setClosed sets the closed quantity of chemical, adding an item when missing
func setClosed(items []project.ClosureItem, spec itemSpec) []project.ClosureItem {
	for i := range items {
		if items[i].ChemicalID() == spec.Chemical {
			items[i].ClosedQuantity = spec.Quantity
			return items
		}
	}
	return append(items, project.ClosureItem{Chemical: shared.NewRef(spec.Chemical), ClosedQuantity: spec.Quantity})
}

func closuresSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var well, bush, status, start, end, comment string
		var facility int64
		var items []string
		var calculate bool
		fs.Int64Var(&facility, "facility", 0, "Facility whose consumption is closed")
		fs.StringVar(&well, "well", "", "Well number")
		fs.StringVar(&bush, "bush", "", "Bush number")
		fs.StringVar(&status, "status", "", "Status: open, partially_closed, closed")
		fs.StringVar(&start, "start", "", "Period start, YYYY-MM-DD")
		fs.StringVar(&end, "end", "", "Period end, YYYY-MM-DD")
		fs.StringVar(&comment, "comment", "", "Comment")
		fs.StringArrayVar(&items, "item", nil, "Closed quantity as CHEMICAL:QUANTITY, repeatable")
		fs.BoolVar(&calculate, "calculate", false, "Fill actual quantities from the facility consumption first")

		return func(ctx context.Context, a *App, args []string) error {
			var req appproject.WellClosureRequest
			var id int64
			if update {
				var err error
				if id, err = idArg(args, 1, "a well closure id"); err != nil {
					return err
				}
				current, err := a.closures.Get(ctx, id)
				if err != nil {
					return err
				}
				req = appproject.FromWellClosure(current)
			}

			if fs.Changed("facility") {
				req.Facility = optionalID(facility)
			}
			if fs.Changed("well") {
				req.WellNumber = well
			}
			if fs.Changed("bush") {
				req.BushNumber = bush
			}
			if fs.Changed("status") {
				req.Status = project.ClosureStatus(status)
			}
			if fs.Changed("comment") {
				req.Comment = comment
			}
			var err error
			if start != "" {
				if req.StartDate, err = optionalDate(start, "start_date"); err != nil {
					return err
				}
			}
			if end != "" {
				if req.EndDate, err = optionalDate(end, "end_date"); err != nil {
					return err
				}
			}

			if calculate {
				if req.Facility == nil {
					return fmt.Errorf("--calculate needs a facility")
				}
				req.Items, err = a.closures.CalculateActuals(ctx, appproject.ActualsRequest{
					FacilityID: *req.Facility,
					StartDate:  req.StartDate,
					EndDate:    req.EndDate,
				}, req.Items)
				if err != nil {
					return err
				}
			}

			specs, err := parseItems(items)
			if err != nil {
				return err
			}
			for _, s := range specs {
				req.Items = setClosed(req.Items, s)
			}

			var c *project.WellClosure
			if update {
				c, err = a.closures.Update(ctx, id, req)
			} else {
				c, err = a.closures.Create(ctx, req)
			}
			if err != nil {
				return err
			}
			return a.out.Print(c, closureDetail(a.out, c))
		}
	}
}

func closuresDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a well closure id")
		if err != nil {
			return err
		}
		if err := a.closures.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("Well closure %d deleted.", id)
		return nil
	}
}

func closuresCalculate(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		id, err := idArg(args, 1, "a well closure id")
		if err != nil {
			return err
		}
		c, err := a.closures.Recalculate(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(c, closureDetail(a.out, c))
	}
}
