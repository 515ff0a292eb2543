package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ruslano69/spine-export/pkg/values"
)

// CurrentSchemaVersion - версия схемы, которую создает CreateSchema
const CurrentSchemaVersion = "spine_export_0001"

type columnKind int

const (
	colID columnKind = iota
	colRef
	colInt
	colText
	colBlob
)

type columnDef struct {
	name string
	kind columnKind
}

type tableDef struct {
	name    string
	columns []columnDef
}

var schemaTables = []tableDef{
	{"alembic_version", []columnDef{{"version_num", colText}}},
	{"entity_class", []columnDef{{"id", colID}, {"name", colText}, {"description", colText}}},
	{"entity_class_dimension", []columnDef{{"entity_class_id", colRef}, {"dimension_id", colRef}, {"position", colInt}}},
	{"entity", []columnDef{{"id", colID}, {"class_id", colRef}, {"name", colText}, {"description", colText}}},
	{"entity_element", []columnDef{{"entity_id", colRef}, {"element_id", colRef}, {"position", colInt}}},
	{"entity_group", []columnDef{{"entity_class_id", colRef}, {"entity_id", colRef}, {"member_id", colRef}}},
	{"parameter_definition", []columnDef{
		{"id", colID}, {"entity_class_id", colRef}, {"name", colText}, {"default_value", colBlob},
		{"default_type", colText}, {"parameter_value_list_id", colRef}, {"description", colText},
	}},
	{"parameter_value", []columnDef{
		{"id", colID}, {"parameter_definition_id", colRef}, {"entity_id", colRef},
		{"alternative_id", colRef}, {"value", colBlob}, {"type", colText},
	}},
	{"alternative", []columnDef{{"id", colID}, {"name", colText}, {"description", colText}}},
	{"scenario", []columnDef{{"id", colID}, {"name", colText}, {"description", colText}, {"active", colInt}}},
	{"scenario_alternative", []columnDef{{"scenario_id", colRef}, {"alternative_id", colRef}, {"rank", colInt}}},
	{"parameter_value_list", []columnDef{{"id", colID}, {"name", colText}}},
	{"list_value", []columnDef{{"parameter_value_list_id", colRef}, {"index", colInt}, {"value", colBlob}, {"type", colText}}},
}

func columnType(d Dialect, kind columnKind) string {
	switch kind {
	case colID:
		return "BIGINT NOT NULL PRIMARY KEY"
	case colRef:
		return "BIGINT"
	case colInt:
		return "INTEGER"
	case colText:
		switch d {
		case DialectMySQL:
			return "VARCHAR(255)"
		case DialectMSSQL:
			return "NVARCHAR(255)"
		}
		return "TEXT"
	case colBlob:
		switch d {
		case DialectPostgreSQL:
			return "BYTEA"
		case DialectMySQL:
			return "LONGBLOB"
		case DialectMSSQL:
			return "VARBINARY(MAX)"
		}
		return "BLOB"
	}
	return "TEXT"
}

// CreateSchema создает таблицы схемы в пустой базе и записывает версию
func CreateSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, t := range schemaTables {
		cols := make([]string, len(t.columns))
		for i, c := range t.columns {
			cols[i] = d.Quote(c.name) + " " + columnType(d, c.kind)
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(t.name), strings.Join(cols, ", "))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	return insertRows(ctx, db, d, "alembic_version", [][]any{{CurrentSchemaVersion}})
}

// Populate записывает содержимое базы в памяти в SQL базу со схемой CreateSchema
func Populate(ctx context.Context, db *sql.DB, d Dialect, m *Memory) error {
	tables := map[string][][]any{}
	add := func(table string, row ...any) {
		tables[table] = append(tables[table], row)
	}

	for _, c := range m.Classes {
		add("entity_class", c.ID, c.Name, c.Description)
		for i, dim := range c.DimensionIDs {
			add("entity_class_dimension", c.ID, dim, i)
		}
	}
	for _, e := range m.EntityList {
		add("entity", e.ID, e.ClassID, e.Name, e.Description)
		for i, el := range e.ElementIDs {
			add("entity_element", e.ID, el, i)
		}
	}
	for _, g := range m.Groups {
		add("entity_group", g.ClassID, g.GroupID, g.MemberID)
	}
	for _, def := range m.Definitions {
		blob, typ, err := values.Marshal(def.DefaultValue)
		if err != nil {
			return fmt.Errorf("parameter definition %s: %w", def.Name, err)
		}
		add("parameter_definition", def.ID, def.ClassID, def.Name, blob, nullString(typ),
			sql.NullInt64{Int64: def.ValueListID, Valid: def.ValueListID != 0}, def.Description)
	}
	for _, v := range m.Values {
		blob, typ, err := values.Marshal(v.Value)
		if err != nil {
			return fmt.Errorf("parameter value %d: %w", v.ID, err)
		}
		add("parameter_value", v.ID, v.DefinitionID, v.EntityID, v.AlternativeID, blob, nullString(typ))
	}
	for _, a := range m.AlternativeList {
		add("alternative", a.ID, a.Name, a.Description)
	}
	for _, s := range m.ScenarioList {
		active := 0
		if s.Active {
			active = 1
		}
		add("scenario", s.ID, s.Name, s.Description, active)
	}
	for _, sa := range m.ScenarioAlternations {
		add("scenario_alternative", sa.ScenarioID, sa.AlternativeID, sa.Rank)
	}
	for _, l := range m.Lists {
		add("parameter_value_list", l.ID, l.Name)
	}
	for _, lv := range m.ListItems {
		blob, typ, err := values.Marshal(lv.Value)
		if err != nil {
			return fmt.Errorf("list value %d/%d: %w", lv.ListID, lv.Index, err)
		}
		add("list_value", lv.ListID, lv.Index, blob, nullString(typ))
	}

	for _, t := range schemaTables {
		if err := insertRows(ctx, db, d, t.name, tables[t.name]); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(ctx context.Context, db *sql.DB, d Dialect, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	var def tableDef
	for _, t := range schemaTables {
		if t.name == table {
			def = t
		}
	}
	cols := make([]string, len(def.columns))
	marks := make([]string, len(def.columns))
	for i, c := range def.columns {
		cols[i] = d.Quote(c.name)
		marks[i] = d.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer prepared.Close()

	for _, row := range rows {
		if _, err := prepared.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
