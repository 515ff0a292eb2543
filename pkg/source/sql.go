package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/ruslano69/spine-export/pkg/values"
)

// Compile-time check
var _ Source = (*SQLSource)(nil)

// SQLSource читает базу данных со схемой spine
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
	owned   bool
}

// OpenSQL открывает базу по описанию и проверяет версию схемы.
// Пустой requiredVersion отключает проверку.
func OpenSQL(ctx context.Context, d Descriptor, requiredVersion string) (*SQLSource, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database descriptor: %w", err)
	}
	db, err := sql.Open(d.Dialect.DriverName(), d.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &SQLSource{db: db, dialect: d.Dialect, owned: true}
	if requiredVersion != "" {
		if err := s.CheckVersion(ctx, requiredVersion); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLSource оборачивает уже открытое подключение. Close не закрывает db.
func NewSQLSource(db *sql.DB, d Dialect) *SQLSource {
	return &SQLSource{db: db, dialect: d}
}

// CheckVersion сравнивает версию схемы из alembic_version с ожидаемой
func (s *SQLSource) CheckVersion(ctx context.Context, want string) error {
	var got string
	query := fmt.Sprintf("SELECT %s FROM %s", s.dialect.Quote("version_num"), s.dialect.Quote("alembic_version"))
	if err := s.db.QueryRowContext(ctx, query).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: no version recorded", ErrVersionMismatch)
		}
		return fmt.Errorf("%w: %v", ErrVersionMismatch, err)
	}
	if got != want {
		return fmt.Errorf("%w: database is at %s, expected %s", ErrVersionMismatch, got, want)
	}
	return nil
}

// Close закрывает подключение, если оно было открыто через OpenSQL
func (s *SQLSource) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *SQLSource) selectAll(ctx context.Context, table string, columns []string, orderBy ...string) (*sql.Rows, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.dialect.Quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), s.dialect.Quote(table))
	if len(orderBy) > 0 {
		order := make([]string, len(orderBy))
		for i, c := range orderBy {
			order[i] = s.dialect.Quote(c)
		}
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

func (s *SQLSource) EntityClasses(ctx context.Context) ([]EntityClass, error) {
	rows, err := s.selectAll(ctx, "entity_class", []string{"id", "name", "description"}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []EntityClass
	index := map[int64]int{}
	for rows.Next() {
		var c EntityClass
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan entity class: %w", err)
		}
		c.Description = description.String
		index[c.ID] = len(classes)
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dims, err := s.selectAll(ctx, "entity_class_dimension", []string{"entity_class_id", "dimension_id"}, "entity_class_id", "position")
	if err != nil {
		return nil, err
	}
	defer dims.Close()
	for dims.Next() {
		var classID, dimensionID int64
		if err := dims.Scan(&classID, &dimensionID); err != nil {
			return nil, fmt.Errorf("failed to scan class dimension: %w", err)
		}
		if i, ok := index[classID]; ok {
			classes[i].DimensionIDs = append(classes[i].DimensionIDs, dimensionID)
		}
	}
	return classes, dims.Err()
}

func (s *SQLSource) Entities(ctx context.Context) ([]Entity, error) {
	rows, err := s.selectAll(ctx, "entity", []string{"id", "class_id", "name", "description"}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	index := map[int64]int{}
	for rows.Next() {
		var e Entity
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.ClassID, &e.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Description = description.String
		index[e.ID] = len(entities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	elements, err := s.selectAll(ctx, "entity_element", []string{"entity_id", "element_id"}, "entity_id", "position")
	if err != nil {
		return nil, err
	}
	defer elements.Close()
	for elements.Next() {
		var entityID, elementID int64
		if err := elements.Scan(&entityID, &elementID); err != nil {
			return nil, fmt.Errorf("failed to scan entity element: %w", err)
		}
		if i, ok := index[entityID]; ok {
			entities[i].ElementIDs = append(entities[i].ElementIDs, elementID)
		}
	}
	return entities, elements.Err()
}

func (s *SQLSource) EntityGroups(ctx context.Context) ([]EntityGroup, error) {
	rows, err := s.selectAll(ctx, "entity_group", []string{"entity_class_id", "entity_id", "member_id"}, "entity_id", "member_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []EntityGroup
	for rows.Next() {
		var g EntityGroup
		if err := rows.Scan(&g.ClassID, &g.GroupID, &g.MemberID); err != nil {
			return nil, fmt.Errorf("failed to scan entity group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLSource) ParameterDefinitions(ctx context.Context) ([]ParameterDefinition, error) {
	rows, err := s.selectAll(ctx, "parameter_definition", []string{
		"id", "entity_class_id", "name", "default_value", "default_type", "parameter_value_list_id", "description",
	}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var definitions []ParameterDefinition
	for rows.Next() {
		var d ParameterDefinition
		var blob []byte
		var typ, description sql.NullString
		var listID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.ClassID, &d.Name, &blob, &typ, &listID, &description); err != nil {
			return nil, fmt.Errorf("failed to scan parameter definition: %w", err)
		}
		if d.DefaultValue, err = values.Parse(blob, typ.String); err != nil {
			return nil, fmt.Errorf("default value of %s: %w", d.Name, err)
		}
		d.ValueListID = listID.Int64
		d.Description = description.String
		definitions = append(definitions, d)
	}
	return definitions, rows.Err()
}

func (s *SQLSource) ParameterValues(ctx context.Context) ([]ParameterValue, error) {
	rows, err := s.selectAll(ctx, "parameter_value", []string{
		"id", "parameter_definition_id", "entity_id", "alternative_id", "value", "type",
	}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ParameterValue
	for rows.Next() {
		var v ParameterValue
		var blob []byte
		var typ sql.NullString
		if err := rows.Scan(&v.ID, &v.DefinitionID, &v.EntityID, &v.AlternativeID, &blob, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan parameter value: %w", err)
		}
		if v.Value, err = values.Parse(blob, typ.String); err != nil {
			return nil, fmt.Errorf("parameter value %d: %w", v.ID, err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *SQLSource) Alternatives(ctx context.Context) ([]Alternative, error) {
	rows, err := s.selectAll(ctx, "alternative", []string{"id", "name", "description"}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Alternative
	for rows.Next() {
		var a Alternative
		var description sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan alternative: %w", err)
		}
		a.Description = description.String
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *SQLSource) Scenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.selectAll(ctx, "scenario", []string{"id", "name", "description", "active"}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Scenario
	for rows.Next() {
		var sc Scenario
		var description sql.NullString
		var active sql.NullInt64
		if err := rows.Scan(&sc.ID, &sc.Name, &description, &active); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		sc.Description = description.String
		sc.Active = active.Int64 != 0
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (s *SQLSource) ScenarioAlternatives(ctx context.Context) ([]ScenarioAlternative, error) {
	rows, err := s.selectAll(ctx, "scenario_alternative", []string{"scenario_id", "alternative_id", "rank"}, "scenario_id", "rank")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScenarioAlternative
	for rows.Next() {
		var sa ScenarioAlternative
		if err := rows.Scan(&sa.ScenarioID, &sa.AlternativeID, &sa.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan scenario alternative: %w", err)
		}
		result = append(result, sa)
	}
	return result, rows.Err()
}

func (s *SQLSource) ParameterValueLists(ctx context.Context) ([]ParameterValueList, error) {
	rows, err := s.selectAll(ctx, "parameter_value_list", []string{"id", "name"}, "id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ParameterValueList
	for rows.Next() {
		var l ParameterValueList
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("failed to scan value list: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *SQLSource) ListValues(ctx context.Context) ([]ListValue, error) {
	rows, err := s.selectAll(ctx, "list_value", []string{"parameter_value_list_id", "index", "value", "type"},
		"parameter_value_list_id", "index")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ListValue
	for rows.Next() {
		var lv ListValue
		var blob []byte
		var typ sql.NullString
		if err := rows.Scan(&lv.ListID, &lv.Index, &blob, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan list value: %w", err)
		}
		if lv.Value, err = values.Parse(blob, typ.String); err != nil {
			return nil, fmt.Errorf("list value %d/%d: %w", lv.ListID, lv.Index, err)
		}
		result = append(result, lv)
	}
	return result, rows.Err()
}
