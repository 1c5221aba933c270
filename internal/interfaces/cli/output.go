package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table is a rendered view of a result for the table format
type Table struct {
	Header []string
	Rows   [][]string
}

// Add appends a row
func (t *Table) Add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Printer writes command results in the selected format
type Printer struct {
	w      io.Writer
	format string
	ru     *message.Printer
}

// NewPrinter creates a printer for format (table, json or yaml)
func NewPrinter(w io.Writer, format string) *Printer {
	if format == "" {
		format = FormatTable
	}
	return &Printer{w: w, format: format, ru: message.NewPrinter(language.Russian)}
}

// Format returns the selected format
func (p *Printer) Format() string {
	return p.format
}

// Print writes data as JSON or YAML, or the table built by view otherwise.
// A nil view falls back to JSON.
func (p *Printer) Print(data any, view func(t *Table)) error {
	switch {
	case p.format == FormatJSON || (p.format == FormatTable && view == nil):
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case p.format == FormatYAML:
		return p.yaml(data)
	default:
		t := &Table{}
		view(t)
		return p.table(t)
	}
}

// Message prints a line of text, skipped for machine formats
func (p *Printer) Message(format string, args ...any) {
	if p.format != FormatTable {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

// yaml goes through JSON so that the API field names and the custom
// marshalers of decimals, dates and refs are kept.
func (p *Printer) yaml(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (p *Printer) table(t *Table) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	if len(t.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Money formats an amount with Russian digit grouping and two decimals
func (p *Printer) Money(d decimal.Decimal) string {
	return p.ru.Sprint(number.Decimal(d.InexactFloat64(), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Quantity formats an amount with Russian digit grouping and up to three decimals
func (p *Printer) Quantity(d decimal.Decimal) string {
	return p.ru.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(3)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
