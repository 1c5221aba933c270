// Package export renders reports as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the produced workbooks
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column is one column of a sheet
type Column struct {
	Label string
	Width float64
}

// Sheet is a titled table
type Sheet struct {
	Name     string
	Title    string
	Subtitle string
	Columns  []Column
	Rows     [][]interface{}
	Totals   []interface{} // optional last row, rendered bold
}

const headerRow = 4

var invalidSheetChars = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")

// Workbook renders the sheets into an xlsx file
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets to export")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	defaultSheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, s := range sheets {
		name := sheetName(s.Name, i)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("renaming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("creating sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, s, styles); err != nil {
			return nil, fmt.Errorf("writing sheet %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type styleSet struct {
	title, header, data, number, total int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "CCCCCC", Style: 1},
		{Type: "right", Color: "CCCCCC", Style: 1},
		{Type: "top", Color: "CCCCCC", Style: 1},
		{Type: "bottom", Color: "CCCCCC", Style: 1},
	}
	numFmt := "#,##0.00"

	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return s, err
	}
	if s.data, err = f.NewStyle(&excelize.Style{Border: border}); err != nil {
		return s, err
	}
	if s.number, err = f.NewStyle(&excelize.Style{Border: border, CustomNumFmt: &numFmt}); err != nil {
		return s, err
	}
	if s.total, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
		Border:       border,
		CustomNumFmt: &numFmt,
	}); err != nil {
		return s, err
	}
	return s, nil
}

func writeSheet(f *excelize.File, name string, s Sheet, st styleSet) error {
	if err := f.SetCellValue(name, "A1", s.Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", "A1", st.title); err != nil {
		return err
	}
	if s.Subtitle != "" {
		if err := f.SetCellValue(name, "A2", s.Subtitle); err != nil {
			return err
		}
	}

	for i, c := range s.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, c.Label); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, cell, cell, st.header); err != nil {
			return err
		}
		width := c.Width
		if width == 0 {
			width = 18
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}

	row := headerRow + 1
	for _, values := range s.Rows {
		if err := writeRow(f, name, row, values, st.data, st.number); err != nil {
			return err
		}
		row++
	}
	if len(s.Totals) > 0 {
		if err := writeRow(f, name, row, s.Totals, st.total, st.total); err != nil {
			return err
		}
	}

	if len(s.Columns) > 0 {
		return f.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      headerRow,
			TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}, textStyle, numberStyle int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		style := textStyle
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
			style = numberStyle
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// sheetName drops the characters Excel rejects and trims name to 31 characters
func sheetName(name string, i int) string {
	name = strings.TrimSpace(invalidSheetChars.Replace(name))
	if name == "" {
		return fmt.Sprintf("Sheet%d", i+1)
	}
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}
