package writers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Compile-time check
var _ Writer = (*GDXWriter)(nil)

// ErrNoGAMS - путь к установке GAMS не задан или неверен
var ErrNoGAMS = errors.New("GAMS installation not found")

// Runner запускает программу. Подменяется в тестах.
type Runner func(ctx context.Context, dir, program string, args ...string) error

// ExecRunner запускает программу через os/exec
func ExecRunner(ctx context.Context, dir, program string, args ...string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", filepath.Base(program), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// GDXWriter собирает таблицы и записывает их символами GAMS в файл .gdx.
// Таблица со строковыми колонками становится множеством, таблица с числовой
// последней колонкой - параметром. Запись выполняется при Close.
type GDXWriter struct {
	gams    string
	out     string
	label   string
	run     Runner
	symbols []*gdxSymbol
	index   map[string]*gdxSymbol
	current *gdxSymbol
	skip    int
}

type gdxSymbol struct {
	name string
	rows [][]any
}

// GAMSExecutable возвращает путь к программе gams в каталоге установки
func GAMSExecutable(dir string) (string, error) {
	if dir == "" {
		return "", ErrNoGAMS
	}
	name := "gams"
	if runtime.GOOS == "windows" {
		name = "gams.exe"
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoGAMS, path)
	}
	return path, nil
}

// NewGDXWriter создает приемник. run == nil - ExecRunner.
func NewGDXWriter(gamsDir, out, label string, run Runner) (*GDXWriter, error) {
	gams, err := GAMSExecutable(gamsDir)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run = ExecRunner
	}
	return &GDXWriter{gams: gams, out: out, label: label, run: run, index: make(map[string]*gdxSymbol)}, nil
}

var gamsIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SymbolName приводит имя таблицы к идентификатору GAMS
func SymbolName(table string) string {
	name := gamsIdentifier.ReplaceAllString(table, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "s_" + name
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func (w *GDXWriter) StartTable(name string, title TitleKey) (bool, error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(w.label), filepath.Ext(w.label))
	}
	symbol := SymbolName(name)
	s, ok := w.index[symbol]
	if !ok {
		s = &gdxSymbol{name: symbol}
		w.index[symbol] = s
		w.symbols = append(w.symbols, s)
	}
	w.current = s
	// Заголовки в GDX не сохраняются
	w.skip = title.HeaderRows
	return true, nil
}

func (w *GDXWriter) WriteRow(row []any) (bool, error) {
	if w.current == nil {
		return false, ErrNoTable
	}
	if w.skip > 0 {
		w.skip--
		return true, nil
	}
	w.current.rows = append(w.current.rows, append([]any(nil), row...))
	return true, nil
}

func (w *GDXWriter) FinishTable() error {
	if w.current == nil {
		return ErrNoTable
	}
	w.current = nil
	return nil
}

// Close генерирует программу GAMS и запускает ее для получения .gdx
func (w *GDXWriter) Close() error {
	if len(w.symbols) == 0 {
		return nil
	}
	dir, err := os.MkdirTemp("", "spine-export-gdx")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	program := filepath.Join(dir, "export.gms")
	if err := os.WriteFile(program, []byte(w.Program()), 0o644); err != nil {
		return fmt.Errorf("failed to write GAMS program: %w", err)
	}
	out, err := filepath.Abs(w.out)
	if err != nil {
		return err
	}
	if err := w.run(context.Background(), dir, w.gams, program, "gdx="+out, "lo=0"); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.out, err)
	}
	return nil
}

// Program возвращает текст программы GAMS, объявляющей все символы
func (w *GDXWriter) Program() string {
	var b bytes.Buffer
	for _, s := range w.symbols {
		writeSymbol(&b, s)
	}
	return b.String()
}

func writeSymbol(b *bytes.Buffer, s *gdxSymbol) {
	width := 0
	for _, row := range s.rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		fmt.Fprintf(b, "Set %s / /;\n", s.name)
		return
	}

	parameter := width > 1
	for _, row := range s.rows {
		if len(row) < width || !isNumber(row[width-1]) {
			parameter = false
			break
		}
	}

	dims := width
	keyword := "Set"
	if parameter {
		dims = width - 1
		keyword = "Parameter"
	}
	domain := strings.TrimSuffix(strings.Repeat("*,", dims), ",")
	fmt.Fprintf(b, "%s %s(%s) /\n", keyword, s.name, domain)
	for _, row := range s.rows {
		keys := make([]string, dims)
		for i := 0; i < dims; i++ {
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			keys[i] = quoteLabel(CellString(cell))
		}
		if parameter {
			fmt.Fprintf(b, "  %s %s\n", strings.Join(keys, "."), CellString(row[width-1]))
		} else {
			fmt.Fprintf(b, "  %s\n", strings.Join(keys, "."))
		}
	}
	b.WriteString("/;\n")
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	}
	return false
}

func quoteLabel(s string) string {
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}
