package report

import (
	"fmt"
	"time"

	"github.com/erp/chemstock/internal/domain/shared"
)

// QuickPeriods lists the preset period names accepted by QuickPeriod
var QuickPeriods = []string{"today", "yesterday", "week", "month", "quarter", "year"}

// QuickPeriod resolves a preset name to an inclusive date range ending today
// (yesterday for "yesterday").
func QuickPeriod(name string, now time.Time) (start, end shared.Date, err error) {
	today := shared.NewDate(now)
	end = today

	switch name {
	case "today":
		start = today
	case "yesterday":
		start = shared.NewDate(now.AddDate(0, 0, -1))
		end = start
	case "week":
		start = shared.NewDate(now.AddDate(0, 0, -6))
	case "month":
		start = shared.NewDate(now.AddDate(0, -1, 0))
	case "quarter":
		start = shared.NewDate(now.AddDate(0, -3, 0))
	case "year":
		start = shared.NewDate(now.AddDate(-1, 0, 0))
	default:
		return shared.Date{}, shared.Date{}, shared.NewDomainError(shared.ErrInvalidInput.Code,
			fmt.Sprintf("unknown period %q, expected one of %v", name, QuickPeriods))
	}
	return start, end, nil
}
