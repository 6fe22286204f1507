// Package export writes lead tables to spreadsheet files.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/equestrolabs/leadgen-cli/internal/model"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// Sheet is one tab's worth of leads.
type Sheet struct {
	Tab   string
	Leads []model.Lead
}

// Workbook builds an xlsx file with one sheet per tab. Each sheet starts
// with the lead header row followed by one row per lead.
func Workbook(sheets ...Sheet) (*xlsx.File, error) {
	f := xlsx.NewFile()
	seen := map[string]bool{}
	for _, s := range sheets {
		name := SheetName(s.Tab)
		if seen[name] {
			return nil, eris.Errorf("export: duplicate sheet %q", name)
		}
		seen[name] = true

		sheet, err := f.AddSheet(name)
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %q", name)
		}
		addRow(sheet, model.Headers())
		for _, l := range s.Leads {
			addRow(sheet, l.Values())
		}
	}
	return f, nil
}

// WriteLeads writes sheets as xlsx to w.
func WriteLeads(w io.Writer, sheets ...Sheet) error {
	f, err := Workbook(sheets...)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// SaveLeads writes sheets as xlsx to path.
func SaveLeads(path string, sheets ...Sheet) error {
	f, err := Workbook(sheets...)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// SheetName turns a tab name into a valid sheet name.
func SheetName(tab string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(tab))
	if name == "" {
		name = "Leads"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// ReadLeads reads the leads in sheet tab of the xlsx file at path. The first
// row must be a header row; columns are matched by header name. An empty tab
// reads the first sheet.
func ReadLeads(path, tab string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open xlsx")
	}

	var sheet *xlsx.Sheet
	if tab == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.New("export: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	} else {
		s, ok := f.Sheet[SheetName(tab)]
		if !ok {
			return nil, eris.Errorf("export: sheet %q not found", tab)
		}
		sheet = s
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	headers := rowToStrings(sheet.Rows[0])
	var leads []model.Lead
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		leads = append(leads, model.LeadFromRow(headers, cells, i+2))
	}
	return leads, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
