package schemamap

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelProvider reads rename rules from a workbook. Every sheet is named after
// a dataset; column A holds the old field name and column B the new one. An
// optional first row whose column A reads like a header ("old", "old name",
// "source", "from") is skipped.
type ExcelProvider struct {
	file *excelize.File
}

// OpenExcel opens the workbook at path. The caller must Close it.
func OpenExcel(path string) (*ExcelProvider, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemamap: open workbook %s: %w", path, err)
	}
	return &ExcelProvider{file: f}, nil
}

// Close releases the workbook.
func (p *ExcelProvider) Close() error {
	if p == nil || p.file == nil {
		return nil
	}
	return p.file.Close()
}

// SheetNames implements Provider.
func (p *ExcelProvider) SheetNames() ([]string, error) {
	if p == nil || p.file == nil {
		return nil, fmt.Errorf("schemamap: workbook not open")
	}
	return p.file.GetSheetList(), nil
}

// PairsFor implements Provider. Rows with fewer than two non-empty cells are
// skipped.
func (p *ExcelProvider) PairsFor(sheet string) ([]Pair, error) {
	if p == nil || p.file == nil {
		return nil, fmt.Errorf("schemamap: workbook not open")
	}
	rows, err := p.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("schemamap: read sheet %q: %w", sheet, err)
	}
	pairs := make([]Pair, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		oldName := strings.TrimSpace(row[0])
		newName := strings.TrimSpace(row[1])
		if oldName == "" || newName == "" {
			continue
		}
		if i == 0 && isHeader(oldName) {
			continue
		}
		pairs = append(pairs, Pair{Old: oldName, New: newName})
	}
	return pairs, nil
}

func isHeader(cell string) bool {
	switch strings.ToLower(cell) {
	case "old", "old name", "old_name", "oldname", "source", "from", "original":
		return true
	}
	return false
}
