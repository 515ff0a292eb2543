package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/values"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// recorder - приемник, запоминающий таблицы в памяти
type recorder struct {
	tables  map[string][][]any
	order   []string
	titles  map[string]writers.TitleKey
	current string
	// stopAfter > 0 - WriteRow возвращает false после stopAfter строк
	stopAfter int
	finished  int
	failOn    string
}

func newRecorder() *recorder {
	return &recorder{tables: map[string][][]any{}, titles: map[string]writers.TitleKey{}}
}

func (r *recorder) StartTable(name string, title writers.TitleKey) (bool, error) {
	if name == r.failOn {
		return false, errors.New("disk full")
	}
	if _, ok := r.tables[name]; !ok {
		r.order = append(r.order, name)
		r.tables[name] = nil
	}
	r.titles[name] = title
	r.current = name
	return true, nil
}

func (r *recorder) WriteRow(row []any) (bool, error) {
	r.tables[r.current] = append(r.tables[r.current], row)
	if r.stopAfter > 0 && len(r.tables[r.current]) >= r.stopAfter {
		return false, nil
	}
	return true, nil
}

func (r *recorder) FinishTable() error {
	r.finished++
	return nil
}

func (r *recorder) Close() error { return nil }

// entitiesDB - два класса, две альтернативы, параметры узлов
func entitiesDB() *source.Memory {
	db := source.NewMemory()
	db.AddEntityClass("unit")
	db.AddEntityClass("node")
	db.AddEntity("unit", "u1")
	db.AddEntity("unit", "u2")
	db.AddEntity("node", "n1")
	db.AddAlternative("Base", "base alternative")
	db.AddAlternative("High", "")
	return db
}

// pivotDB - класс node с сущностями o1, o2 и параметрами p, q
func pivotDB() *source.Memory {
	db := source.NewMemory()
	db.AddEntityClass("node")
	db.AddEntity("node", "o1")
	db.AddEntity("node", "o2")
	db.AddParameterDefinition("node", "p", nil)
	db.AddParameterDefinition("node", "q", nil)
	db.AddAlternative("Base", "")
	db.AddParameterValue("node", "o1", "p", "Base", 1.0)
	db.AddParameterValue("node", "o1", "q", "Base", 2.0)
	db.AddParameterValue("node", "o2", "p", "Base", 3.0)
	return db
}

func run(t *testing.T, db *source.Memory, job Job, opts Options) *recorder {
	t.Helper()
	rec := newRecorder()
	if err := Run(context.Background(), db, rec, []Job{job}, opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return rec
}

func rows(cells ...[]any) [][]any { return cells }

func TestRun_EntityClassesAndEntities(t *testing.T) {
	job := Job{
		Name:         "entities",
		DefaultTable: "entities",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			mapping.New(mapping.KindEntity, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, entitiesDB(), job, Options{})

	want := rows([]any{"unit", "u1"}, []any{"unit", "u2"}, []any{"node", "n1"})
	if got := rec.tables["entities"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if rec.titles["entities"].HeaderRows != 0 {
		t.Errorf("HeaderRows = %d, want 0", rec.titles["entities"].HeaderRows)
	}
	if rec.finished != 1 {
		t.Errorf("FinishTable calls = %d, want 1", rec.finished)
	}
}

func TestRun_PivotTable(t *testing.T) {
	job := Job{
		Name: "pivot",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.TableName),
			mapping.New(mapping.KindEntity, mapping.PivotRow(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Column(0)),
			mapping.New(mapping.KindParameterValue, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, pivotDB(), job, Options{})

	want := rows(
		[]any{nil, "o1", "o2"},
		[]any{"p", 1.0, 3.0},
		[]any{"q", 2.0, nil},
	)
	if got := rec.tables["node"]; !reflect.DeepEqual(got, want) {
		t.Errorf("pivot rows = %v, want %v", got, want)
	}
	if rec.titles["node"].HeaderRows != 1 {
		t.Errorf("HeaderRows = %d, want 1", rec.titles["node"].HeaderRows)
	}
}

func TestRun_PivotGroupFunctions(t *testing.T) {
	root := func() *mapping.Node {
		return mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.TableName),
			mapping.New(mapping.KindEntity, mapping.PivotRow(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Hidden),
			mapping.New(mapping.KindParameterValue, mapping.Column(0)),
		)
	}

	tests := []struct {
		name    string
		groupFn string
		want    []any
	}{
		{"sum", GroupSum, []any{3.0, 3.0}},
		{"max", GroupMax, []any{2.0, 3.0}},
		{"mean", GroupMean, []any{1.5, 3.0}},
		{"one or none", GroupOneOrNone, []any{nil, 3.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := Job{Name: "grouped", Root: root(), GroupFn: tt.groupFn, HighlightDimension: -1}
			rec := run(t, pivotDB(), job, Options{})
			got := rec.tables["node"]
			if len(got) != 2 {
				t.Fatalf("rows = %v, want header and one data row", got)
			}
			if !reflect.DeepEqual(got[1], tt.want) {
				t.Errorf("data row = %v, want %v", got[1], tt.want)
			}
		})
	}
}

func TestRun_PivotCollisionDropsRow(t *testing.T) {
	db := source.NewMemory()
	db.AddEntityClass("node")
	db.AddEntity("node", "o1")
	db.AddParameterDefinition("node", "p", nil)
	db.AddParameterDefinition("node", "q", nil)
	db.AddAlternative("Base", "")
	db.AddAlternative("Alt", "")
	db.AddParameterValue("node", "o1", "p", "Base", 1.0)
	db.AddParameterValue("node", "o1", "p", "Alt", 2.0)
	db.AddParameterValue("node", "o1", "q", "Base", 5.0)

	// Альтернатива скрыта: два значения p попадают в одну ячейку
	job := Job{
		Name:         "collision",
		DefaultTable: "t",
		GroupFn:      GroupNone,
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Hidden),
			mapping.New(mapping.KindEntity, mapping.PivotRow(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Column(0)),
			mapping.New(mapping.KindAlternative, mapping.Hidden),
			mapping.New(mapping.KindParameterValue, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})

	want := rows(
		[]any{nil, "o1"},
		[]any{"q", 5.0},
	)
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestJobsFor_DefaultTable(t *testing.T) {
	tests := []struct {
		format specification.OutputFormat
		want   string
	}{
		{specification.FormatCSV, ""},
		{specification.FormatExcel, ""},
		{specification.FormatSQL, "units"},
		{specification.FormatGDX, "units"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			spec := specification.New("jobs", tt.format)
			entry, err := specification.NewEntry(mapping.TypeEntities)
			if err != nil {
				t.Fatalf("NewEntry: %v", err)
			}
			if err := spec.Add("units", entry); err != nil {
				t.Fatalf("Add: %v", err)
			}
			jobs := JobsFor(spec)
			if len(jobs) != 1 {
				t.Fatalf("jobs = %d, want 1", len(jobs))
			}
			if jobs[0].DefaultTable != tt.want {
				t.Errorf("DefaultTable = %q, want %q", jobs[0].DefaultTable, tt.want)
			}
		})
	}
	if got := JobFor("units", &specification.Entry{}).DefaultTable; got != "units" {
		t.Errorf("JobFor DefaultTable = %q, want units", got)
	}
}

func TestRun_GroupFunctionError(t *testing.T) {
	db := pivotDB()
	db.AddParameterValue("node", "o2", "q", "Base", "text")
	job := Job{
		Name:    "grouped",
		GroupFn: GroupSum,
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.TableName),
			mapping.New(mapping.KindEntity, mapping.PivotRow(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Hidden),
			mapping.New(mapping.KindParameterValue, mapping.Column(0)),
		),
		HighlightDimension: -1,
	}
	err := Run(context.Background(), db, newRecorder(), []Job{job}, Options{})
	var groupErr *GroupError
	if !errors.As(err, &groupErr) {
		t.Fatalf("Run() error = %v, want *GroupError", err)
	}
	if groupErr.Function != GroupSum {
		t.Errorf("Function = %q, want %q", groupErr.Function, GroupSum)
	}
}

func TestRun_MaxRows(t *testing.T) {
	job := Job{
		Name:         "entities",
		DefaultTable: "entities",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			mapping.New(mapping.KindEntity, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, entitiesDB(), job, Options{MaxRows: 2})
	if got := len(rec.tables["entities"]); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

func TestRun_MaxTables(t *testing.T) {
	job := Job{
		Name: "per class",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.TableName),
			mapping.New(mapping.KindEntity, mapping.Column(0)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, entitiesDB(), job, Options{MaxTables: 1})
	if !reflect.DeepEqual(rec.order, []string{"unit"}) {
		t.Errorf("tables = %v, want [unit]", rec.order)
	}
}

func TestRun_Filters(t *testing.T) {
	entity := mapping.New(mapping.KindEntity, mapping.Column(1))
	entity.Filter = "^u"
	job := Job{
		Name:         "filtered",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			entity,
		),
		HighlightDimension: -1,
	}
	rec := run(t, entitiesDB(), job, Options{})
	want := rows([]any{"unit", "u1"}, []any{"unit", "u2"})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_IgnorableNode(t *testing.T) {
	db := entitiesDB()
	db.AddEntityClass("empty")

	entity := mapping.New(mapping.KindEntity, mapping.Column(1))
	entity.Ignorable = true
	job := Job{
		Name:         "ignorable",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			entity,
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})

	// Класс без сущностей выводится с пустой ячейкой
	want := rows(
		[]any{"unit", "u1"},
		[]any{"unit", "u2"},
		[]any{"node", "n1"},
		[]any{"empty", nil},
	)
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_HeaderNode(t *testing.T) {
	class := mapping.New(mapping.KindEntityClass, mapping.Column(0))
	class.Header = "class"
	job := Job{
		Name:         "header",
		DefaultTable: "t",
		Root: mapping.Chain(
			class,
			mapping.New(mapping.KindEntity, mapping.Column(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Header),
			mapping.New(mapping.KindParameterValue, mapping.Column(2)),
		),
		HighlightDimension: -1,
	}
	db := pivotDB()
	// Только параметр p, чтобы заголовок был однозначным
	db.Values = db.Values[:1]
	rec := run(t, db, job, Options{})

	want := rows(
		[]any{"class", "", "p"},
		[]any{"node", "o1", 1.0},
	)
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if rec.titles["t"].HeaderRows != 1 {
		t.Errorf("HeaderRows = %d, want 1", rec.titles["t"].HeaderRows)
	}
}

func TestRun_AlwaysExportHeader(t *testing.T) {
	build := func(always bool) Job {
		entity := mapping.New(mapping.KindEntity, mapping.Column(1))
		entity.Filter = "^none$"
		entity.Header = "entity"
		return Job{
			Name:               "header only",
			DefaultTable:       "t",
			AlwaysExportHeader: always,
			Root: mapping.Chain(
				mapping.New(mapping.KindEntityClass, mapping.Column(0)),
				entity,
			),
			HighlightDimension: -1,
		}
	}

	rec := run(t, entitiesDB(), build(false), Options{})
	if len(rec.order) != 0 {
		t.Errorf("empty table written without AlwaysExportHeader: %v", rec.order)
	}

	rec = run(t, entitiesDB(), build(true), Options{})
	want := rows([]any{"", "entity"})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_MultidimensionalEntities(t *testing.T) {
	db := entitiesDB()
	db.AddEntityClass("unit__node", "unit", "node")
	db.AddEntity("unit__node", "", "u1", "n1")

	job := Job{
		Name:         "relationships",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			mapping.New(mapping.KindDimension, mapping.Column(1)),
			mapping.New(mapping.KindDimension, mapping.Column(2)),
			mapping.New(mapping.KindEntity, mapping.Column(3)),
			mapping.New(mapping.KindElement, mapping.Column(4)),
			mapping.New(mapping.KindElement, mapping.Column(5)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})
	want := rows([]any{"unit__node", "unit", "node", "u1__n1", "u1", "n1"})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_HighlightDimension(t *testing.T) {
	db := entitiesDB()
	db.AddEntityClass("unit__node", "unit", "node")
	db.AddEntity("unit__node", "", "u1", "n1")
	db.AddParameterDefinition("node", "capacity", nil)
	db.AddParameterValue("node", "n1", "capacity", "Base", 5.0)

	class := mapping.New(mapping.KindEntityClass, mapping.Column(0))
	class.Filter = "__"
	job := Job{
		Name:         "highlight",
		DefaultTable: "t",
		Root: mapping.Chain(
			class,
			mapping.New(mapping.KindEntity, mapping.Column(1)),
			mapping.New(mapping.KindParameterDefinition, mapping.Column(2)),
			mapping.New(mapping.KindParameterValue, mapping.Column(3)),
		),
		HighlightDimension: 1,
	}
	rec := run(t, db, job, Options{})
	want := rows([]any{"unit__node", "u1__n1", "capacity", 5.0})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_AlternativesAndIndexedValues(t *testing.T) {
	db := entitiesDB()
	db.AddParameterDefinition("unit", "profile", nil)
	db.AddParameterValue("unit", "u1", "profile", "High", values.NewArray(2.0, 4.0))

	job := Job{
		Name:         "values",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Hidden),
			mapping.New(mapping.KindEntity, mapping.Column(0)),
			mapping.New(mapping.KindParameterDefinition, mapping.Column(1)),
			mapping.New(mapping.KindAlternative, mapping.Column(2)),
			mapping.New(mapping.KindParameterValueType, mapping.Column(3)),
			mapping.New(mapping.KindParameterValueIndex, mapping.Column(4)),
			mapping.New(mapping.KindExpandedValue, mapping.Column(5)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})
	// Альтернатива Base не содержит значений и пропускается
	want := rows(
		[]any{"u1", "profile", "High", "array", int64(0), 2.0},
		[]any{"u1", "profile", "High", "array", int64(1), 4.0},
	)
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_IndexedLeafOutputsTypeName(t *testing.T) {
	db := entitiesDB()
	db.AddParameterDefinition("unit", "profile", nil)
	db.AddParameterValue("unit", "u1", "profile", "Base", values.NewArray(2.0))

	job := Job{
		Name:         "leaf",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Hidden),
			mapping.New(mapping.KindEntity, mapping.Column(0)),
			mapping.New(mapping.KindParameterDefinition, mapping.Hidden),
			mapping.New(mapping.KindParameterValue, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})
	want := rows([]any{"u1", "array"})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_Scenarios(t *testing.T) {
	db := entitiesDB()
	db.AddScenario("s1", true, "first")
	db.AddScenarioAlternative("s1", "High", 2)
	db.AddScenarioAlternative("s1", "Base", 1)

	job := Job{
		Name:         "scenarios",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindScenario, mapping.Column(0)),
			mapping.New(mapping.KindScenarioAlternative, mapping.Column(1)),
			mapping.New(mapping.KindScenarioBeforeAlternative, mapping.Column(2)),
		),
		HighlightDimension: -1,
	}
	rec := run(t, db, job, Options{})
	want := rows([]any{"s1", "Base", "High"}, []any{"s1", "High", ""})
	if got := rec.tables["t"]; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRun_WriterStopsTable(t *testing.T) {
	job := Job{
		Name:         "entities",
		DefaultTable: "t",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			mapping.New(mapping.KindEntity, mapping.Column(1)),
		),
		HighlightDimension: -1,
	}
	rec := newRecorder()
	rec.stopAfter = 1
	if err := Run(context.Background(), entitiesDB(), rec, []Job{job}, Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(rec.tables["t"]); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
	if rec.finished != 1 {
		t.Errorf("FinishTable must be called after stop, calls = %d", rec.finished)
	}
}

func TestRun_WriterErrors(t *testing.T) {
	job := Job{
		Name: "per class",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.TableName),
			mapping.New(mapping.KindEntity, mapping.Column(0)),
		),
		HighlightDimension: -1,
	}

	rec := newRecorder()
	rec.failOn = "unit"
	err := Run(context.Background(), entitiesDB(), rec, []Job{job}, Options{})
	var writerErr *WriterError
	if !errors.As(err, &writerErr) || writerErr.Table != "unit" {
		t.Fatalf("Run() error = %v, want *WriterError for table unit", err)
	}
	if len(rec.order) != 0 {
		t.Errorf("tables after fatal writer error = %v", rec.order)
	}

	// С ContinueOnWriterError таблица пропускается, остальные пишутся
	rec = newRecorder()
	rec.failOn = "unit"
	err = Run(context.Background(), entitiesDB(), rec, []Job{job}, Options{ContinueOnWriterError: true})
	if !errors.As(err, &writerErr) {
		t.Fatalf("Run() error = %v, want joined *WriterError", err)
	}
	if !reflect.DeepEqual(rec.order, []string{"node"}) {
		t.Errorf("tables = %v, want [node]", rec.order)
	}
}

func TestRun_InvalidMapping(t *testing.T) {
	job := Job{
		Name: "broken",
		Root: mapping.Chain(
			mapping.New(mapping.KindEntityClass, mapping.Column(0)),
			mapping.New(mapping.KindEntity, mapping.Column(0)),
		),
		HighlightDimension: -1,
	}
	err := Run(context.Background(), entitiesDB(), newRecorder(), []Job{job}, Options{})
	var mappingErr *MappingError
	if !errors.As(err, &mappingErr) {
		t.Fatalf("Run() error = %v, want *MappingError", err)
	}

	job.Root = mapping.Chain(mapping.New(mapping.KindEntityClass, mapping.Column(0)))
	job.GroupFn = "median"
	if err := Run(context.Background(), entitiesDB(), newRecorder(), []Job{job}, Options{}); !errors.As(err, &mappingErr) {
		t.Errorf("unknown group function: error = %v, want *MappingError", err)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := Job{
		Name:         "entities",
		DefaultTable: "t",
		Root:         mapping.Chain(mapping.New(mapping.KindEntityClass, mapping.Column(0))),
	}
	if err := Run(ctx, entitiesDB(), newRecorder(), []Job{job}, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestGroupFunctions(t *testing.T) {
	names := GroupFunctions()
	if names[0] != GroupNone {
		t.Errorf("first group function = %q, want %q", names[0], GroupNone)
	}
	if GroupLabel(GroupSum) != "Sum" {
		t.Errorf("GroupLabel(sum) = %q", GroupLabel(GroupSum))
	}
	if _, err := LookupGroupFunction(""); err != nil {
		t.Errorf("empty name must resolve to no_group: %v", err)
	}
	if _, err := noGroup([]any{1.0, 2.0}); !errors.Is(err, ErrCollision) {
		t.Errorf("noGroup collision error = %v, want ErrCollision", err)
	}
}
