package cli

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/erp/chemstock/internal/application/common"
	appreport "github.com/erp/chemstock/internal/application/report"
	"github.com/erp/chemstock/internal/domain/report"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/erp/chemstock/internal/infrastructure/export"
)

func init() {
	register(
		&command{path: "reports upload", summary: "Upload a daily drilling report", setup: reportsUpload},
		&command{path: "reports groups", summary: "List uploaded report groups", setup: reportsGroups},
		&command{path: "reports group", args: "<uuid>", summary: "Show the transactions created from a report", setup: reportsGroup},
		&command{path: "reports delete-group", args: "<uuid>", summary: "Delete a report group and its transactions", setup: reportsDeleteGroup},
		&command{path: "reports facility", summary: "Opening and closing balances of a facility", setup: reportsFacility},
		&command{path: "reports analytics", summary: "Plan versus actual consumption of projects", setup: reportsAnalytics},
		&command{path: "reports consumption", summary: "Consumption per chemical across facilities", setup: reportsConsumption},
	)
}

func reportsUpload(fs *pflag.FlagSet) runFunc {
	var projectID, facility int64
	var date, file string
	var archive bool
	fs.Int64Var(&projectID, "project", 0, "Project id")
	fs.Int64Var(&facility, "facility", 0, "Facility id")
	fs.StringVar(&date, "date", "", "Report date, YYYY-MM-DD (default today)")
	fs.StringVar(&file, "file", "", "Report file to upload")
	fs.BoolVar(&archive, "archive", false, "Copy the uploaded file to archive storage")

	return func(ctx context.Context, a *App, args []string) error {
		svc, err := a.reportService(archive)
		if err != nil {
			return err
		}
		req := appreport.UploadRequest{ProjectID: projectID, FacilityID: facility}
		if req.Date, err = optionalDate(date, "date"); err != nil {
			return err
		}
		if req.Date.IsZero() {
			req.Date = shared.NewDate(a.now())
		}
		if file == "" {
			return common.NewValidationError("file", "--file is required")
		}
		if req.FileName, req.Data, err = readFile(file); err != nil {
			return err
		}

		res, err := svc.UploadDailyReport(ctx, req)
		if err != nil {
			return err
		}
		return a.out.Print(res, func(t *Table) {
			t.Add(orDash(res.Message))
			if res.ArchiveKey != "" {
				t.Add("Archived as " + res.ArchiveKey)
			}
		})
	}
}

func reportsGroups(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		viewer, err := a.viewer(ctx)
		if err != nil {
			return err
		}
		groups, err := a.reports.ListGroups(ctx, viewer)
		if err != nil {
			return err
		}
		return a.out.Print(groups, func(t *Table) {
			t.Header = []string{"OPERATION", "DATE", "PROJECT", "FACILITY", "UPLOADER", "STATUS"}
			for _, g := range groups {
				status := g.Status.Label()
				if g.ErrorMessage != "" {
					status += ": " + g.ErrorMessage
				}
				t.Add(g.OperationUUID.String(), g.ReportDate.String(), orDash(g.ProjectName),
					orDash(g.FacilityName), orDash(g.Uploader), status)
			}
		})
	}
}

func reportsGroup(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a report group uuid"); err != nil {
			return err
		}
		id, err := parseUUID(args[0])
		if err != nil {
			return err
		}
		txs, err := a.reports.GroupTransactions(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(txs, transactionTable(a.out, txs))
	}
}

func reportsDeleteGroup(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a report group uuid"); err != nil {
			return err
		}
		id, err := parseUUID(args[0])
		if err != nil {
			return err
		}
		if err := a.reports.DeleteGroup(ctx, id); err != nil {
			return err
		}
		a.out.Message("Report group %s deleted.", id)
		return nil
	}
}

func reportsFacility(fs *pflag.FlagSet) runFunc {
	var facility, chemical int64
	var period periodFlags
	fs.Int64Var(&facility, "facility", 0, "Facility id")
	fs.Int64Var(&chemical, "chemical", 0, "Limit the report to one chemical")
	period.register(fs)

	return func(ctx context.Context, a *App, args []string) error {
		if facility == 0 {
			return common.NewValidationError("facility", "--facility is required")
		}
		start, end, err := period.resolve(a.now())
		if err != nil {
			return err
		}
		p := appreport.Period{Start: start, End: end}

		if chemical > 0 {
			r, err := a.reports.ChemicalPeriod(ctx, facility, chemical, p)
			if err != nil {
				return err
			}
			return a.out.Print(r, func(t *Table) {
				t.Add("Opening balance", a.out.Quantity(r.OpeningBalance))
				t.Add("Income", a.out.Quantity(r.TotalIncome))
				t.Add("Outcome", a.out.Quantity(r.TotalOutcome))
				t.Add("Closing balance", a.out.Quantity(r.ClosingBalance))
			})
		}

		r, err := a.reports.FacilityPeriod(ctx, facility, p)
		if err != nil {
			return err
		}
		return a.out.Print(r, func(t *Table) {
			t.Add("Period", fmt.Sprintf("%s .. %s", start, end))
			t.Add("Opening balance", a.out.Money(r.OpeningBalanceTotal))
			t.Add("Income", a.out.Money(r.TotalIncomePeriod))
			t.Add("Outcome", a.out.Money(r.TotalOutcomePeriod))
			t.Add("Closing balance", a.out.Money(r.ClosingBalanceTotal))
		})
	}
}

func reportsAnalytics(fs *pflag.FlagSet) runFunc {
	var projects []string
	var period periodFlags
	var ex exportFlags
	fs.StringArrayVar(&projects, "project", nil, "Project id, repeatable or comma separated")
	period.register(fs)
	ex.register(fs)

	return func(ctx context.Context, a *App, args []string) error {
		if err := ex.check(a); err != nil {
			return err
		}
		ids, err := parseIDs(projects, "project_ids")
		if err != nil {
			return err
		}
		start, end, err := period.resolve(a.now())
		if err != nil {
			return err
		}
		res, err := a.reports.ProjectAnalytics(ctx, appreport.AnalyticsRequest{ProjectIDs: ids, Start: start, End: end})
		if err != nil {
			return err
		}
		if err := ex.write(ctx, a, export.AnalyticsSheets(res)...); err != nil {
			return err
		}
		return a.out.Print(res, analyticsTable(a.out, res))
	}
}

func analyticsTable(p *Printer, res *report.ProjectAnalytics) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"PROJECT", "CHEMICAL", "PLANNED", "FACT PERIOD", "FACT TOTAL", "DEVIATION"}
		for _, pr := range res.ReportByProject {
			t.Add(pr.ProjectName, "", "", "", "", "")
			for _, row := range pr.PlanFact {
				deviation := p.Quantity(row.Deviation)
				if row.IsOverspent() {
					deviation += " (!)"
				}
				t.Add("", row.ChemicalName+", "+row.Unit, p.Quantity(row.PlannedQuantity),
					p.Quantity(row.FactPeriodQuantity), p.Quantity(row.FactTotalQuantity), deviation)
			}
			t.Add("", "cost", p.Money(pr.Summary.TotalPlannedCost), p.Money(pr.Summary.TotalFactCostPeriod),
				p.Money(pr.Summary.TotalFactCostAllTime), p.Money(pr.Summary.Deviation()))
		}
		t.Add("TOTAL", "cost", p.Money(res.GrandSummary.TotalPlannedCost), "", p.Money(res.GrandSummary.TotalFactCost), "")
	}
}

func reportsConsumption(fs *pflag.FlagSet) runFunc {
	var facilities []string
	var period periodFlags
	var ex exportFlags
	fs.StringArrayVar(&facilities, "facility", nil, "Facility id, repeatable or comma separated")
	period.register(fs)
	ex.register(fs)

	return func(ctx context.Context, a *App, args []string) error {
		if err := ex.check(a); err != nil {
			return err
		}
		ids, err := parseIDs(facilities, "facilities")
		if err != nil {
			return err
		}
		start, end, err := period.resolve(a.now())
		if err != nil {
			return err
		}
		rows, err := a.reports.Consumption(ctx, appreport.ConsumptionRequest{
			Facilities: ids,
			Period:     appreport.Period{Start: start, End: end},
		})
		if err != nil {
			return err
		}
		if err := ex.write(ctx, a, export.ConsumptionSheet(rows, start, end)); err != nil {
			return err
		}
		return a.out.Print(rows, func(t *Table) {
			t.Header = []string{"CHEMICAL", "QUANTITY", "UNIT"}
			for _, r := range rows {
				t.Add(r.Name, a.out.Quantity(r.TotalQuantity), r.Unit)
			}
		})
	}
}
