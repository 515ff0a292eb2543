package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/spine-export/pkg/editor"
	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

func registerDB(t *testing.T, name string) string {
	t.Helper()
	db := source.NewMemory()
	db.AddEntityClass("unit")
	db.AddEntity("unit", "u1")
	db.AddEntity("unit", "u2")
	db.AddEntity("unit", "u3")
	source.RegisterMemory(name, db)
	t.Cleanup(func() { source.UnregisterMemory(name) })
	return "memory://" + name
}

func newEditor(t *testing.T) (*editor.Editor, string) {
	t.Helper()
	ed := editor.New(specification.New("preview", specification.FormatCSV), nil, nil)
	name, err := ed.NewMapping(mapping.TypeEntities)
	require.NoError(t, err)
	return ed, name
}

func wait(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

func TestOrchestrator_InitialPreview(t *testing.T) {
	url := registerDB(t, "initial")
	ed, name := newEditor(t)

	o := New(ed, []string{url}, Options{})
	defer o.Close()
	wait(t, o)

	tables, ok := o.Tables(url, name)
	require.True(t, ok)
	require.Len(t, tables, 1)
	assert.Equal(t, name, tables[0].Name)
	assert.Equal(t, [][]any{{"unit", "u1"}, {"unit", "u2"}, {"unit", "u3"}}, tables[0].Rows)
	assert.Equal(t, 0, o.Pending())
}

func TestOrchestrator_StaleResultsDropped(t *testing.T) {
	url := registerDB(t, "stale")
	ed, name := newEditor(t)

	var updates int
	o := New(ed, []string{url}, Options{
		Workers:  1,
		OnUpdate: func(string, string, []writers.Table) { updates++ },
	})
	defer o.Close()

	// Две быстрые правки до обработки завершений
	require.NoError(t, ed.SetUseFixedTableName(name, true))
	require.NoError(t, ed.SetFixedTableName(name, "units"))
	assert.Equal(t, 3, o.Pending())

	wait(t, o)
	assert.Equal(t, 1, updates, "only the latest worker is applied")

	tables, ok := o.Tables(url, name)
	require.True(t, ok)
	require.Len(t, tables, 1)
	assert.Equal(t, "units", tables[0].Name)
}

// gatedOpener задерживает первое открытие базы до закрытия release
type gatedOpener struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedOpener() *gatedOpener {
	return &gatedOpener{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedOpener) Open(ctx context.Context, cfg source.Config) (source.Source, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return source.Default().Open(ctx, cfg)
}

func TestOrchestrator_LatestWinsOutOfOrder(t *testing.T) {
	url := registerDB(t, "out_of_order")
	ed, name := newEditor(t)
	gate := newGatedOpener()

	var applied []string
	o := New(ed, []string{url}, Options{
		Workers: 2,
		Opener:  gate,
		OnUpdate: func(_, _ string, tables []writers.Table) {
			applied = append(applied, tables[0].Name)
		},
	})
	defer o.Close()

	// Работник A (начальный предпросмотр) застрял в открытии базы
	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("initial worker did not start")
	}

	// Работник B отправлен позже и завершается раньше A
	require.NoError(t, ed.SetUseFixedTableName(name, true))
	require.NoError(t, ed.SetFixedTableName(name, "units"))
	require.Eventually(t, func() bool {
		o.ProcessPending()
		return o.Pending() == 1
	}, 5*time.Second, 5*time.Millisecond)

	tables, ok := o.Tables(url, name)
	require.True(t, ok)
	assert.Equal(t, "units", tables[0].Name)

	// Позднее завершение A устарело и не затирает результат B
	close(gate.release)
	wait(t, o)

	tables, ok = o.Tables(url, name)
	require.True(t, ok)
	require.Len(t, tables, 1)
	assert.Equal(t, "units", tables[0].Name)
	assert.Equal(t, [][]any{{"unit", "u1"}, {"unit", "u2"}, {"unit", "u3"}}, tables[0].Rows)
	assert.Equal(t, []string{"units"}, applied)
}

func TestOrchestrator_UnchangedMappingNotRecomputed(t *testing.T) {
	url := registerDB(t, "unchanged")
	ed, name := newEditor(t)

	o := New(ed, []string{url}, Options{})
	defer o.Close()
	wait(t, o)

	o.Refresh(name)
	assert.Equal(t, 0, o.Pending())

	// Отмена возвращает прежний отпечаток, но он отличается от последнего отправленного
	require.NoError(t, ed.SetAlwaysExportHeader(name, false))
	require.True(t, ed.Undo())
	assert.Equal(t, 2, o.Pending())
	wait(t, o)
}

func TestOrchestrator_Bounds(t *testing.T) {
	url := registerDB(t, "bounds")
	ed, name := newEditor(t)

	o := New(ed, []string{url}, Options{})
	defer o.Close()
	wait(t, o)

	o.SetBounds(0, 2)
	wait(t, o)
	tables, _ := o.Tables(url, name)
	require.Len(t, tables, 1)
	assert.Len(t, tables[0].Rows, 2)
}

func TestOrchestrator_ErrorTable(t *testing.T) {
	ed, name := newEditor(t)

	o := New(ed, []string{"memory://missing"}, Options{})
	defer o.Close()
	wait(t, o)

	tables, ok := o.Tables("memory://missing", name)
	require.True(t, ok)
	require.Len(t, tables, 1)
	assert.Equal(t, ErrorTable, tables[0].Name)
	require.Len(t, tables[0].Rows, 1)
	assert.Contains(t, tables[0].Rows[0][0], "missing")
}

func TestOrchestrator_DisableAndRename(t *testing.T) {
	url := registerDB(t, "rename")
	ed, name := newEditor(t)

	o := New(ed, []string{url}, Options{})
	defer o.Close()
	wait(t, o)

	require.NoError(t, ed.SetMappingEnabled(name, false))
	_, ok := o.Tables(url, name)
	assert.False(t, ok, "disabled mapping keeps its preview")

	require.NoError(t, ed.SetMappingEnabled(name, true))
	require.NoError(t, ed.RenameMapping(name, "units"))
	wait(t, o)
	_, ok = o.Tables(url, name)
	assert.False(t, ok)
	_, ok = o.Tables(url, "units")
	assert.True(t, ok)
}

func TestOrchestrator_Close(t *testing.T) {
	url := registerDB(t, "close")
	ed, name := newEditor(t)

	o := New(ed, []string{url}, Options{})
	o.Close()
	o.Close()

	assert.Equal(t, 0, o.Pending())
	// После Close события редактора не порождают работников
	require.NoError(t, ed.SetAlwaysExportHeader(name, false))
	assert.Equal(t, 0, o.Pending())
}
