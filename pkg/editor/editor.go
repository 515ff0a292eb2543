// Package editor - редактирование спецификации экспорта с отменой правок.
//
// Каждая правка выполняется командой в стеке undo. Команды заменяют
// маппинг целиком, поэтому отмена всегда возвращает точное прежнее
// состояние. Слушатели получают событие после каждого применения и отмены.
package editor

import (
	"errors"
	"fmt"

	"github.com/ruslano69/spine-export/pkg/engine"
	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/undo"
)

var (
	// ErrNoMapping - маппинг не найден
	ErrNoMapping = errors.New("no such mapping")
	// ErrNoHighlightDimension - тип маппинга не имеет выделенного измерения
	ErrNoHighlightDimension = errors.New("mapping type has no highlight dimension")
)

// Editor владеет спецификацией, настройками вывода и стеком отмены.
// Не безопасен для конкурентного использования.
type Editor struct {
	spec     *specification.Specification
	stack    *undo.Stack
	settings *ExporterSettings
	current  string

	listeners     map[int]Listener
	listenerOrder []int
	nextListener  int
}

// New создает редактор. Пустые stack и settings заменяются новыми.
func New(spec *specification.Specification, stack *undo.Stack, settings *ExporterSettings) *Editor {
	if stack == nil {
		stack = undo.NewStack(undo.DefaultLimit)
	}
	if settings == nil {
		settings = NewExporterSettings()
	}
	e := &Editor{
		spec:      spec,
		stack:     stack,
		settings:  settings,
		listeners: make(map[int]Listener),
	}
	if names := spec.Names(); len(names) > 0 {
		e.current = names[0]
	}
	return e
}

func (e *Editor) Specification() *specification.Specification { return e.spec }
func (e *Editor) Stack() *undo.Stack                           { return e.stack }
func (e *Editor) Settings() *ExporterSettings                  { return e.settings }

// Current - имя выбранного маппинга ("" если спецификация пуста)
func (e *Editor) Current() string { return e.current }

// SetCurrent выбирает маппинг
func (e *Editor) SetCurrent(name string) error {
	if !e.spec.Has(name) {
		return fmt.Errorf("%w: %s", ErrNoMapping, name)
	}
	e.current = name
	return nil
}

func (e *Editor) afterRemove(name string) {
	if e.current != name {
		return
	}
	e.current = ""
	if names := e.spec.Names(); len(names) > 0 {
		e.current = names[0]
	}
}

// Entry возвращает копию маппинга
func (e *Editor) Entry(name string) (*specification.Entry, error) {
	entry, err := e.entry(name)
	if err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

func (e *Editor) entry(name string) (*specification.Entry, error) {
	entry := e.spec.Entry(name)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMapping, name)
	}
	return entry, nil
}

// Undo отменяет последнюю команду
func (e *Editor) Undo() bool { return e.stack.Undo() }

// Redo повторяет отмененную команду
func (e *Editor) Redo() error { return e.stack.Redo() }

// UniqueName возвращает base, либо base с первым свободным номером
func (e *Editor) UniqueName(base string) string {
	if !e.spec.Has(base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s (%d)", base, i)
		if !e.spec.Has(name) {
			return name
		}
	}
}

// NewMapping добавляет маппинг типа t в конец спецификации и выбирает его
func (e *Editor) NewMapping(t mapping.Type) (string, error) {
	entry, err := specification.NewEntry(t)
	if err != nil {
		return "", err
	}
	name := e.UniqueName("Mapping")
	return name, e.AddMapping(name, entry)
}

// AddMapping добавляет готовый маппинг в конец спецификации
func (e *Editor) AddMapping(name string, entry *specification.Entry) error {
	if e.spec.Has(name) {
		return fmt.Errorf("%w: %s", specification.ErrDuplicateName, name)
	}
	if err := mapping.Validate(entry.Root); err != nil {
		return err
	}
	return e.stack.Push(&addMappingCommand{ed: e, name: name, entry: entry.Clone(), at: e.spec.Len()})
}

// DeleteMapping удаляет маппинг
func (e *Editor) DeleteMapping(name string) error {
	if _, err := e.entry(name); err != nil {
		return err
	}
	return e.stack.Push(&deleteMappingCommand{ed: e, name: name})
}

// RenameMapping переименовывает маппинг; имя должно быть свободно
func (e *Editor) RenameMapping(oldName, newName string) error {
	if _, err := e.entry(oldName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if newName == "" || e.spec.Has(newName) {
		return fmt.Errorf("%w: %q", specification.ErrDuplicateName, newName)
	}
	return e.stack.Push(&renameMappingCommand{ed: e, old: oldName, new: newName})
}

// MoveMapping переносит маппинг на позицию to в порядке записи
func (e *Editor) MoveMapping(name string, to int) error {
	from := e.spec.Index(name)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNoMapping, name)
	}
	if to < 0 || to >= e.spec.Len() {
		return fmt.Errorf("move %s: index %d out of range", name, to)
	}
	if to == from {
		return nil
	}
	return e.stack.Push(&moveMappingCommand{ed: e, name: name, from: from, to: to})
}

// ChangeOutputFormat меняет формат вывода спецификации
func (e *Editor) ChangeOutputFormat(f specification.OutputFormat) error {
	if _, err := specification.ParseOutputFormat(string(f)); err != nil {
		return err
	}
	if e.spec.OutputFormat == f {
		return nil
	}
	return e.stack.Push(&outputFormatCommand{ed: e, old: e.spec.OutputFormat, format: f})
}

// ChangeOutLabel меняет метку вывода входной базы.
// Последовательные правки одной базы отменяются за один шаг.
func (e *Editor) ChangeOutLabel(url, label string) error {
	old := e.settings.Label(url)
	if old == label {
		return nil
	}
	return e.stack.Push(&outLabelCommand{ed: e, url: url, old: old, label: label})
}

// ChangeOutputURL задает выходную базу для формата SQL; nil удаляет ее
func (e *Editor) ChangeOutputURL(url string, d *source.Descriptor) error {
	var old *source.Descriptor
	if cur, ok := e.settings.OutputURL(url); ok {
		old = &cur
	}
	var next *source.Descriptor
	if d != nil {
		c := *d
		next = &c
	}
	cmd := &outputURLCommand{ed: e, url: url, old: old, new: next}
	if cmd.Obsolete() {
		return nil
	}
	return e.stack.Push(cmd)
}

// SealOutLabel завершает серию правок метки вывода
func (e *Editor) SealOutLabel() error { return e.stack.Push(undo.Seal(idOutLabel)) }

// SealOutputURL завершает серию правок выходной базы
func (e *Editor) SealOutputURL() error { return e.stack.Push(undo.Seal(idOutputURL)) }

// SealFixedTableName завершает серию правок фиксированного имени таблицы
func (e *Editor) SealFixedTableName() error { return e.stack.Push(undo.Seal(idFixedTableName)) }

// makeUpdate строит команду, применяющую mutate к копии before.
// Результат проверяется до попадания в стек.
func (e *Editor) makeUpdate(name, text string, before *specification.Entry, mutate func(*specification.Entry) error, kinds ...EventKind) (*entryCommand, error) {
	after := before.Clone()
	if err := mutate(after); err != nil {
		return nil, err
	}
	if err := mapping.Validate(after.Root); err != nil {
		return nil, err
	}
	return &entryCommand{
		ed:     e,
		name:   name,
		text:   text,
		kinds:  kinds,
		before: before.Clone(),
		after:  after,
		id:     noMergeID,
	}, nil
}

func (e *Editor) push(cmd *entryCommand) error {
	if cmd.Obsolete() {
		return nil
	}
	return e.stack.Push(cmd)
}

func (e *Editor) update(name, text string, mutate func(*specification.Entry) error, kinds ...EventKind) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	cmd, err := e.makeUpdate(name, text, cur, mutate, kinds...)
	if err != nil {
		return err
	}
	return e.push(cmd)
}

// SetMappingEnabled включает или выключает маппинг
func (e *Editor) SetMappingEnabled(name string, enabled bool) error {
	return e.update(name, "toggle mapping", func(en *specification.Entry) error {
		en.Enabled = enabled
		return nil
	}, EnabledChanged)
}

// SetAllMappingsEnabled включает или выключает все маппинги одним шагом отмены
func (e *Editor) SetAllMappingsEnabled(enabled bool) error {
	e.stack.BeginMacro("toggle all mappings")
	for _, name := range e.spec.Names() {
		if err := e.SetMappingEnabled(name, enabled); err != nil {
			e.stack.EndMacro()
			return err
		}
	}
	return e.stack.EndMacro()
}

// SetMappingType перестраивает цепочку по шаблону нового типа.
// Фиксированное имя таблицы и размерности сохраняются.
func (e *Editor) SetMappingType(name string, t mapping.Type) error {
	return e.update(name, "change mapping type", func(en *specification.Entry) error {
		if en.Type == t {
			return nil
		}
		root, err := mapping.Reshape(en.Root, t)
		if err != nil {
			return err
		}
		en.Root = root
		en.Type = t
		en.UseFixedTableName = mapping.HasFixedTableName(root)
		if t.HasHighlightDimension() {
			en.HighlightDimension = clampHighlight(en.HighlightDimension, en.EntityDimensions())
		} else {
			en.HighlightDimension = specification.NoHighlightDimension
		}
		return nil
	}, TypeChanged, RootChanged, HighlightDimensionChanged)
}

// SetAlwaysExportHeader - выводить ли заголовок для пустых таблиц
func (e *Editor) SetAlwaysExportHeader(name string, always bool) error {
	return e.update(name, "change always export header", func(en *specification.Entry) error {
		en.AlwaysExportHeader = always
		return nil
	}, AlwaysExportHeaderChanged)
}

// SetGroupFunction задает групповую функцию pivot таблиц
func (e *Editor) SetGroupFunction(name, fn string) error {
	if _, err := engine.LookupGroupFunction(fn); err != nil {
		return err
	}
	return e.update(name, "change group function", func(en *specification.Entry) error {
		en.GroupFn = fn
		return nil
	}, GroupFunctionChanged)
}

// SetUseFixedTableName включает фиксированное имя таблицы.
// При включении имя по умолчанию - имя маппинга.
func (e *Editor) SetUseFixedTableName(name string, use bool) error {
	return e.update(name, "toggle fixed table name", func(en *specification.Entry) error {
		if use {
			if !mapping.HasFixedTableName(en.Root) {
				en.Root = mapping.WrapFixedTableName(en.Root, name)
			}
		} else {
			en.Root = mapping.UnwrapFixedTableName(en.Root)
		}
		en.UseFixedTableName = use
		return nil
	}, FixedTableNameChanged, RootChanged)
}

// SetFixedTableName задает фиксированное имя таблицы.
// Правки до SealFixedTableName сливаются в один шаг отмены.
func (e *Editor) SetFixedTableName(name, tableName string) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	cmd, err := e.makeUpdate(name, "change fixed table name", cur, func(en *specification.Entry) error {
		en.Root = mapping.WrapFixedTableName(en.Root, tableName)
		en.UseFixedTableName = true
		return nil
	}, FixedTableNameChanged)
	if err != nil {
		return err
	}
	cmd.id, cmd.accepts = idFixedTableName, true
	return e.push(cmd)
}

func (e *Editor) clearFixedTableName(name string, before *specification.Entry) (*entryCommand, error) {
	cmd, err := e.makeUpdate(name, "clear fixed table name", before, func(en *specification.Entry) error {
		en.Root = mapping.UnwrapFixedTableName(en.Root)
		en.UseFixedTableName = false
		return nil
	}, FixedTableNameChanged, RootChanged)
	if err != nil {
		return nil, err
	}
	cmd.id, cmd.accepts, cmd.once = idMappingPositions, true, true
	return cmd, nil
}

// ClearFixedTableName отключает фиксированное имя таблицы.
// Следующая за ней правка позиций отменяется вместе с ней.
func (e *Editor) ClearFixedTableName(name string) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	cmd, err := e.clearFixedTableName(name, cur)
	if err != nil {
		return err
	}
	return e.push(cmd)
}

func (e *Editor) positionsCommand(name string, before *specification.Entry, positions []mapping.Position) (*entryCommand, error) {
	cmd, err := e.makeUpdate(name, "change positions", before, func(en *specification.Entry) error {
		return mapping.SetPositions(visibleRoot(en.Root), positions)
	}, RootChanged)
	if err != nil {
		return nil, err
	}
	cmd.id = idMappingPositions
	return cmd, nil
}

// SetMappingPositions задает позиции видимых узлов маппинга по порядку
func (e *Editor) SetMappingPositions(name string, positions []mapping.Position) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	cmd, err := e.positionsCommand(name, cur, positions)
	if err != nil {
		return err
	}
	return e.push(cmd)
}

// setPositionsClearingFixedName снимает фиксированное имя и задает позиции
// одним шагом отмены
func (e *Editor) setPositionsClearingFixedName(name string, positions []mapping.Position) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	unfix, err := e.clearFixedTableName(name, cur)
	if err != nil {
		return err
	}
	set, err := e.positionsCommand(name, unfix.after, positions)
	if err != nil {
		return err
	}
	if err := e.stack.Push(unfix); err != nil {
		return err
	}
	return e.stack.Push(set)
}

// SetEntityDimensions меняет число измерений класса.
// Выделенное измерение остается в пределах новой размерности.
func (e *Editor) SetEntityDimensions(name string, d int) error {
	return e.update(name, "change dimensions", func(en *specification.Entry) error {
		root, err := mapping.SetEntityDimensions(en.Root, d)
		if err != nil {
			return err
		}
		en.Root = root
		if en.Type.HasHighlightDimension() {
			en.HighlightDimension = clampHighlight(en.HighlightDimension, d)
		}
		return nil
	}, RootChanged, HighlightDimensionChanged)
}

// SetParameterDimensions меняет число индексов значений параметра
func (e *Editor) SetParameterDimensions(name string, d int) error {
	return e.update(name, "change parameter dimensions", func(en *specification.Entry) error {
		root, err := mapping.SetParameterDimensions(en.Root, d)
		if err != nil {
			return err
		}
		en.Root = root
		return nil
	}, RootChanged)
}

// SetDefaultValueDimensions меняет число индексов значений по умолчанию
func (e *Editor) SetDefaultValueDimensions(name string, d int) error {
	return e.update(name, "change default value dimensions", func(en *specification.Entry) error {
		root, err := mapping.SetParameterDefaultValueDimensions(en.Root, d)
		if err != nil {
			return err
		}
		en.Root = root
		return nil
	}, RootChanged)
}

// SetHighlightDimension выбирает измерение класса, параметры которого
// экспортирует маппинг
func (e *Editor) SetHighlightDimension(name string, d int) error {
	cur, err := e.entry(name)
	if err != nil {
		return err
	}
	if !cur.Type.HasHighlightDimension() {
		return fmt.Errorf("%w: %s", ErrNoHighlightDimension, cur.Type)
	}
	return e.update(name, "change highlight dimension", func(en *specification.Entry) error {
		en.HighlightDimension = clampHighlight(d, en.EntityDimensions())
		return nil
	}, HighlightDimensionChanged)
}

// CompactMapping убирает пропуски в номерах колонок и pivot строк
func (e *Editor) CompactMapping(name string) error {
	return e.update(name, "compact mapping", func(en *specification.Entry) error {
		en.Root = mapping.Compact(en.Root)
		return nil
	}, RootChanged)
}

// setNodeProperty меняет свойство видимого узла row
func (e *Editor) setNodeProperty(name string, row int, text string, set func(*mapping.Node) error) error {
	return e.update(name, text, func(en *specification.Entry) error {
		nodes := mapping.Flatten(visibleRoot(en.Root))
		if row < 0 || row >= len(nodes) {
			return fmt.Errorf("row %d out of range", row)
		}
		return set(nodes[row])
	}, RootChanged)
}

// visibleRoot - начало цепочки без фиксированного имени таблицы
func visibleRoot(root *mapping.Node) *mapping.Node {
	if mapping.HasFixedTableName(root) {
		return root.Child
	}
	return root
}

func clampHighlight(h, dims int) int {
	switch {
	case dims <= 0 || h < 0:
		return 0
	case h >= dims:
		return dims - 1
	}
	return h
}
