package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/report"
	"github.com/erp/chemstock/internal/domain/shared"
)

func argCount(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("expected %s", usage)
	}
	return nil
}

// idArg checks the argument count and parses the leading id
func idArg(args []string, n int, usage string) (int64, error) {
	if err := argCount(args, n, usage); err != nil {
		return 0, err
	}
	return parseID(args[0], "id")
}

func parseID(s, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError(field, fmt.Sprintf("%q is not a valid id", s))
	}
	return id, nil
}

func parseIDs(values []string, field string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := parseID(part, field)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, common.NewValidationError("uuid", fmt.Sprintf("%q is not a valid operation id", s))
	}
	return id, nil
}

func parseQuantity(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")))
	if err != nil {
		return decimal.Zero, common.NewValidationError(field, fmt.Sprintf("%q is not a number", s))
	}
	return d, nil
}

// optionalDate parses YYYY-MM-DD, the zero date for an empty string
func optionalDate(s, field string) (shared.Date, error) {
	if s == "" {
		return shared.Date{}, nil
	}
	d, err := shared.ParseDate(s)
	if err != nil {
		return shared.Date{}, common.NewValidationError(field, err.Error())
	}
	return d, nil
}

// optionalID returns a pointer to the parsed id, nil for zero
func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// itemSpec is a CHEMICAL:QUANTITY[:NOTES] pair given with --item
type itemSpec struct {
	Chemical int64
	Quantity decimal.Decimal
	Notes    string
}

func parseItems(values []string) ([]itemSpec, error) {
	items := make([]itemSpec, 0, len(values))
	for i, v := range values {
		field := fmt.Sprintf("items[%d]", i)
		parts := strings.SplitN(v, ":", 3)
		if len(parts) < 2 {
			return nil, common.NewValidationError(field, fmt.Sprintf("%q must be CHEMICAL:QUANTITY", v))
		}
		chemical, err := parseID(parts[0], field+".chemical")
		if err != nil {
			return nil, err
		}
		qty, err := parseQuantity(parts[1], field+".quantity")
		if err != nil {
			return nil, err
		}
		item := itemSpec{Chemical: chemical, Quantity: qty}
		if len(parts) == 3 {
			item.Notes = parts[2]
		}
		items = append(items, item)
	}
	return items, nil
}

// periodFlags select a date range either explicitly or by preset name
type periodFlags struct {
	start  string
	end    string
	period string
}

func (p *periodFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&p.start, "start", "", "Period start, YYYY-MM-DD")
	fs.StringVar(&p.end, "end", "", "Period end, YYYY-MM-DD")
	fs.StringVar(&p.period, "period", "", "Preset period: "+strings.Join(report.QuickPeriods, ", "))
}

// resolve returns the selected range. A preset wins over explicit dates.
func (p *periodFlags) resolve(now time.Time) (shared.Date, shared.Date, error) {
	if p.period != "" {
		return report.QuickPeriod(p.period, now)
	}
	start, err := optionalDate(p.start, "start_date")
	if err != nil {
		return shared.Date{}, shared.Date{}, err
	}
	end, err := optionalDate(p.end, "end_date")
	if err != nil {
		return shared.Date{}, shared.Date{}, err
	}
	return start, end, nil
}

func readFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return filepath.Base(path), data, nil
}
