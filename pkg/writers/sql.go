package writers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/values"
)

// Compile-time check
var _ Writer = (*SQLWriter)(nil)

// SQLWriter пишет каждую таблицу в отдельную таблицу базы данных.
// Имена колонок берутся из последней строки заголовка, иначе column_N.
// Типы колонок определяются по первой строке данных.
type SQLWriter struct {
	ctx     context.Context
	db      *sql.DB
	dialect source.Dialect
	owned   bool

	// OverwriteExisting - пересоздать существующие таблицы (DROP + CREATE)
	OverwriteExisting bool

	created map[string][]string // таблица -> колонки
	table   string
	header  []any
	skip    int
	rows    [][]any
	tables  []string
}

// OpenSQLWriter открывает базу по описанию
func OpenSQLWriter(ctx context.Context, d source.Descriptor, overwrite bool) (*SQLWriter, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output descriptor: %w", err)
	}
	db, err := sql.Open(d.Dialect.DriverName(), d.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open output database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to output database: %w", err)
	}
	w := NewSQLWriter(ctx, db, d.Dialect, overwrite)
	w.owned = true
	return w, nil
}

// NewSQLWriter оборачивает открытое подключение. Close не закрывает db.
func NewSQLWriter(ctx context.Context, db *sql.DB, dialect source.Dialect, overwrite bool) *SQLWriter {
	return &SQLWriter{
		ctx:               ctx,
		db:                db,
		dialect:           dialect,
		OverwriteExisting: overwrite,
		created:           make(map[string][]string),
	}
}

func (w *SQLWriter) StartTable(name string, title TitleKey) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("SQL output requires a table name")
	}
	w.table = name
	w.header = nil
	w.skip = title.HeaderRows
	w.rows = nil
	return true, nil
}

func (w *SQLWriter) WriteRow(row []any) (bool, error) {
	if w.table == "" {
		return false, ErrNoTable
	}
	if w.skip > 0 {
		w.skip--
		w.header = row
		return true, nil
	}
	w.rows = append(w.rows, append([]any(nil), row...))
	return true, nil
}

func (w *SQLWriter) FinishTable() error {
	if w.table == "" {
		return ErrNoTable
	}
	defer func() { w.table, w.rows, w.header = "", nil, nil }()

	columns, ok := w.created[w.table]
	if !ok {
		columns = w.columnNames()
		if len(columns) == 0 {
			return nil
		}
		if err := w.createTable(columns); err != nil {
			return err
		}
		w.created[w.table] = columns
		w.tables = append(w.tables, w.table)
	}
	return w.insert(columns)
}

func (w *SQLWriter) columnNames() []string {
	width := len(w.header)
	for _, row := range w.rows {
		if len(row) > width {
			width = len(row)
		}
	}
	names := make([]string, width)
	seen := make(map[string]bool)
	for i := range names {
		var name string
		if i < len(w.header) {
			name = CellString(w.header[i])
		}
		if name == "" || seen[name] {
			name = "column_" + strconv.Itoa(i+1)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

func (w *SQLWriter) createTable(columns []string) error {
	d := w.dialect
	if w.OverwriteExisting {
		if _, err := w.db.ExecContext(w.ctx, dropTableStatement(d, w.table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", w.table, err)
		}
	}
	var first []any
	if len(w.rows) > 0 {
		first = w.rows[0]
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		var sample any
		if i < len(first) {
			sample = first[i]
		}
		defs[i] = d.Quote(c) + " " + SQLType(d, sample)
	}
	if _, err := w.db.ExecContext(w.ctx, createTableStatement(d, w.table, defs)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	return nil
}

func dropTableStatement(d source.Dialect, table string) string {
	if d == source.DialectMSSQL {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
			strings.ReplaceAll(table, "'", "''"), d.Quote(table))
	}
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

func createTableStatement(d source.Dialect, table string, defs []string) string {
	body := strings.Join(defs, ", ")
	if d == source.DialectMSSQL {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
			strings.ReplaceAll(table, "'", "''"), d.Quote(table), body)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(table), body)
}

func (w *SQLWriter) insert(columns []string) error {
	if len(w.rows) == 0 {
		return nil
	}
	d := w.dialect
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(w.table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := w.db.BeginTx(w.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prepared, err := tx.PrepareContext(w.ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", w.table, err)
	}
	defer prepared.Close()

	args := make([]any, len(columns))
	for _, row := range w.rows {
		for i := range args {
			args[i] = nil
			if i < len(row) {
				args[i] = sqlValue(row[i])
			}
		}
		if _, err := prepared.ExecContext(w.ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", w.table, err)
		}
	}
	return tx.Commit()
}

func (w *SQLWriter) Close() error {
	if w.owned {
		return w.db.Close()
	}
	return nil
}

// Tables возвращает созданные таблицы
func (w *SQLWriter) Tables() []string {
	return append([]string(nil), w.tables...)
}

// SQLType возвращает тип колонки для значения в диалекте
func SQLType(d source.Dialect, v any) string {
	switch v.(type) {
	case int, int64, bool:
		if d == source.DialectSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case float64, float32:
		switch d {
		case source.DialectPostgreSQL:
			return "DOUBLE PRECISION"
		case source.DialectMySQL:
			return "DOUBLE"
		case source.DialectMSSQL:
			return "FLOAT"
		}
		return "REAL"
	case time.Time:
		switch d {
		case source.DialectPostgreSQL:
			return "TIMESTAMP"
		case source.DialectMSSQL:
			return "DATETIME2"
		}
		return "DATETIME"
	}
	switch d {
	case source.DialectMySQL:
		return "TEXT"
	case source.DialectMSSQL:
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, string, time.Time:
		return x
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case *values.Indexed:
		return values.TypeName(x)
	default:
		return CellString(v)
	}
}
