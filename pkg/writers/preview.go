package writers

import (
	"time"

	"github.com/ruslano69/spine-export/pkg/values"
)

// Compile-time check
var _ Writer = (*PreviewWriter)(nil)

// Table - таблица предпросмотра
type Table struct {
	Name string
	Rows [][]any
}

// PreviewWriter собирает таблицы в памяти.
// Ячейки приводятся к int64, float64, string, bool или nil.
type PreviewWriter struct {
	tables  []*Table
	index   map[string]*Table
	current *Table
}

// NewPreviewWriter создает пустой приемник
func NewPreviewWriter() *PreviewWriter {
	return &PreviewWriter{index: make(map[string]*Table)}
}

func (w *PreviewWriter) StartTable(name string, _ TitleKey) (bool, error) {
	t, ok := w.index[name]
	if !ok {
		t = &Table{Name: name}
		w.index[name] = t
		w.tables = append(w.tables, t)
	}
	w.current = t
	return true, nil
}

func (w *PreviewWriter) WriteRow(row []any) (bool, error) {
	if w.current == nil {
		return false, ErrNoTable
	}
	sanitized := make([]any, len(row))
	for i, cell := range row {
		sanitized[i] = Sanitize(cell)
	}
	w.current.Rows = append(w.current.Rows, sanitized)
	return true, nil
}

func (w *PreviewWriter) FinishTable() error {
	if w.current == nil {
		return ErrNoTable
	}
	w.current = nil
	return nil
}

func (w *PreviewWriter) Close() error { return nil }

// Tables возвращает таблицы в порядке первого появления
func (w *PreviewWriter) Tables() []Table {
	result := make([]Table, len(w.tables))
	for i, t := range w.tables {
		result[i] = *t
	}
	return result
}

// Table возвращает строки таблицы по имени
func (w *PreviewWriter) Table(name string) ([][]any, bool) {
	t, ok := w.index[name]
	if !ok {
		return nil, false
	}
	return t.Rows, true
}

// Sanitize приводит значение ячейки к простому типу
func Sanitize(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, string, bool:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case *values.Indexed:
		return values.TypeName(x)
	default:
		return CellString(v)
	}
}
