package writers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Compile-time check
var _ Writer = (*ExcelWriter)(nil)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	excelColWidth = 15
)

// ExcelWriter пишет каждую таблицу на отдельный лист одной книги.
// Книга сохраняется при Close.
type ExcelWriter struct {
	path  string
	label string
	file  *excelize.File

	headerStyle int
	sheets      map[string]int // лист -> следующая строка
	order       []string
	current     string
	headerRows  int
	written     int
}

// NewExcelWriter создает приемник для файла path
func NewExcelWriter(path, label string) (*ExcelWriter, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &ExcelWriter{
		path:        path,
		label:       label,
		file:        f,
		headerStyle: style,
		sheets:      make(map[string]int),
	}, nil
}

func (w *ExcelWriter) sheetName(table string) string {
	if table == "" {
		stem := strings.TrimSuffix(filepath.Base(w.label), filepath.Ext(w.label))
		if stem == "" || stem == "." {
			stem = defaultSheet
		}
		table = stem
	}
	return SanitizeSheetName(table)
}

func (w *ExcelWriter) StartTable(name string, title TitleKey) (bool, error) {
	sheet := w.sheetName(name)
	if _, ok := w.sheets[sheet]; !ok {
		if len(w.order) == 0 {
			// Первая таблица занимает лист по умолчанию
			if sheet != defaultSheet {
				if err := w.file.SetSheetName(defaultSheet, sheet); err != nil {
					return false, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
				}
			}
		} else {
			if _, err := w.file.NewSheet(sheet); err != nil {
				return false, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
			}
		}
		w.sheets[sheet] = 1
		w.order = append(w.order, sheet)
	}
	w.current = sheet
	w.headerRows = title.HeaderRows
	w.written = 0
	return true, nil
}

func (w *ExcelWriter) WriteRow(row []any) (bool, error) {
	if w.current == "" {
		return false, ErrNoTable
	}
	rowNum := w.sheets[w.current]
	for col, v := range row {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return false, err
		}
		if err := w.file.SetCellValue(w.current, cell, excelValue(v)); err != nil {
			return false, fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	if w.written < w.headerRows && len(row) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, rowNum)
		last, _ := excelize.CoordinatesToCellName(len(row), rowNum)
		if err := w.file.SetCellStyle(w.current, first, last, w.headerStyle); err != nil {
			return false, fmt.Errorf("failed to style header: %w", err)
		}
	}
	w.sheets[w.current] = rowNum + 1
	w.written++
	return true, nil
}

func (w *ExcelWriter) FinishTable() error {
	if w.current == "" {
		return ErrNoTable
	}
	if w.headerRows > 0 {
		if cols, err := w.file.GetCols(w.current); err == nil && len(cols) > 0 {
			last, _ := excelize.ColumnNumberToName(len(cols))
			w.file.SetColWidth(w.current, "A", last, excelColWidth)
		}
	}
	w.current = ""
	return nil
}

// Close сохраняет книгу
func (w *ExcelWriter) Close() error {
	defer w.file.Close()
	if len(w.order) == 0 {
		return nil
	}
	if idx, err := w.file.GetSheetIndex(w.order[0]); err == nil {
		w.file.SetActiveSheet(idx)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Sheets возвращает имена листов в порядке создания
func (w *ExcelWriter) Sheets() []string {
	return append([]string(nil), w.order...)
}

// SanitizeSheetName приводит имя к допустимому имени листа Excel
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return defaultSheet
	}
	return name
}

func excelValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string, int, int64, float64, float32:
		return x
	default:
		return CellString(v)
	}
}
