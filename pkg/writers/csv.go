package writers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check
var _ Writer = (*CSVWriter)(nil)

// CSVWriter пишет каждую таблицу в отдельный файл каталога.
// Безымянная таблица пишется в файл с именем метки вывода.
// Повторно открытая таблица дописывается в конец файла.
type CSVWriter struct {
	dir   string
	label string

	files   []string
	opened  map[string]bool
	file    *os.File
	buf     *bufio.Writer
	current *csv.Writer
}

// NewCSVWriter создает приемник. Каталог создается при необходимости.
func NewCSVWriter(dir, label string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVWriter{dir: dir, label: label, opened: make(map[string]bool)}, nil
}

func (w *CSVWriter) fileName(table string) string {
	if table == "" {
		name := w.label
		if name == "" {
			name = "export"
		}
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			name += ".csv"
		}
		return name
	}
	return sanitizeFileName(table) + ".csv"
}

func (w *CSVWriter) StartTable(name string, _ TitleKey) (bool, error) {
	if w.file != nil {
		if err := w.FinishTable(); err != nil {
			return false, err
		}
	}
	path := filepath.Join(w.dir, w.fileName(name))

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if w.opened[path] {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !w.opened[path] {
		w.opened[path] = true
		w.files = append(w.files, path)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.current = csv.NewWriter(w.buf)
	return true, nil
}

func (w *CSVWriter) WriteRow(row []any) (bool, error) {
	if w.current == nil {
		return false, ErrNoTable
	}
	record := make([]string, len(row))
	for i, cell := range row {
		record[i] = CellString(cell)
	}
	if err := w.current.Write(record); err != nil {
		return false, fmt.Errorf("failed to write row: %w", err)
	}
	return true, nil
}

func (w *CSVWriter) FinishTable() error {
	if w.current == nil {
		return ErrNoTable
	}
	w.current.Flush()
	err := w.current.Error()
	if err == nil {
		err = w.buf.Flush()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file, w.buf, w.current = nil, nil, nil
	return err
}

func (w *CSVWriter) Close() error {
	if w.current != nil {
		return w.FinishTable()
	}
	return nil
}

// Files возвращает пути записанных файлов в порядке создания
func (w *CSVWriter) Files() []string {
	return append([]string(nil), w.files...)
}

// sanitizeFileName заменяет символы, недопустимые в именах файлов
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
