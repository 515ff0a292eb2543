package editor

import (
	"fmt"

	"github.com/ruslano69/spine-export/pkg/mapping"
)

// Row - строка табличного представления маппинга (один видимый узел)
type Row struct {
	Label    string
	Position mapping.Position
	Pivoted  bool
	Nullable bool
	Header   string
	Filter   string
}

// HeaderEditable - заголовок не редактируется у узла на позиции заголовка колонки
func (r Row) HeaderEditable() bool { return r.Position != mapping.Header }

// PositionText - текст колонки Position
func (r Row) PositionText() string { return PositionText(r.Position) }

// EditOperation - правка одной строки таблицы
type EditOperation interface {
	editOperation()
}

type (
	SetPosition struct{ Position mapping.Position }
	SetPivoted  struct{ Pivoted bool }
	SetNullable struct{ Nullable bool }
	SetHeader   struct{ Header string }
	SetFilter   struct{ Filter string }
)

func (SetPosition) editOperation() {}
func (SetPivoted) editOperation()  {}
func (SetNullable) editOperation() {}
func (SetHeader) editOperation()   {}
func (SetFilter) editOperation()   {}

// MappingTableModel - табличное представление маппинга.
// Фиксированное имя таблицы в строки не входит.
type MappingTableModel struct {
	ed          *Editor
	name        string
	unsubscribe func()
}

// MappingTable возвращает модель для маппинга name.
// Модель следует за переименованием; Close отключает ее от редактора.
func (e *Editor) MappingTable(name string) (*MappingTableModel, error) {
	if _, err := e.entry(name); err != nil {
		return nil, err
	}
	m := &MappingTableModel{ed: e, name: name}
	m.unsubscribe = e.Subscribe(func(ev Event) {
		if ev.Kind == MappingRenamed && ev.OldName == m.name {
			m.name = ev.Mapping
		}
	})
	return m, nil
}

// Name - имя маппинга модели
func (m *MappingTableModel) Name() string { return m.name }

// Close отключает модель от событий редактора
func (m *MappingTableModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *MappingTableModel) nodes() ([]*mapping.Node, error) {
	entry, err := m.ed.entry(m.name)
	if err != nil {
		return nil, err
	}
	return mapping.Flatten(visibleRoot(entry.Root)), nil
}

// Rows возвращает строки в порядке цепочки
func (m *MappingTableModel) Rows() ([]Row, error) {
	nodes, err := m.nodes()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(nodes))
	seen := make(map[mapping.Kind]int)
	for i, n := range nodes {
		label := n.Kind.Label()
		if n.Kind.IsIndexed() {
			seen[n.Kind]++
			label = fmt.Sprintf("%s %d", label, seen[n.Kind])
		}
		rows[i] = Row{
			Label:    label,
			Position: n.Position,
			Pivoted:  n.Position.IsPivoted(),
			Nullable: n.Ignorable,
			Header:   n.Header,
			Filter:   n.Filter,
		}
	}
	return rows, nil
}

// SetPositionText разбирает ввод пользователя и задает позицию строки
func (m *MappingTableModel) SetPositionText(row int, text string) error {
	nodes, err := m.nodes()
	if err != nil {
		return err
	}
	if row < 0 || row >= len(nodes) {
		return fmt.Errorf("row %d out of range", row)
	}
	p, err := ParsePositionText(text, nodes[row].Position.IsPivoted())
	if err != nil {
		return err
	}
	return m.Apply(row, SetPosition{Position: p})
}

// Apply применяет правку к строке row
func (m *MappingTableModel) Apply(row int, op EditOperation) error {
	nodes, err := m.nodes()
	if err != nil {
		return err
	}
	if row < 0 || row >= len(nodes) {
		return fmt.Errorf("row %d out of range", row)
	}
	switch op := op.(type) {
	case SetPosition:
		return m.setPosition(nodes, row, op.Position)
	case SetPivoted:
		return m.setPosition(nodes, row, TogglePivot(nodes[row].Position, op.Pivoted))
	case SetNullable:
		return m.ed.setNodeProperty(m.name, row, "change nullable", func(n *mapping.Node) error {
			n.Ignorable = op.Nullable
			return nil
		})
	case SetHeader:
		if nodes[row].Position == mapping.Header {
			return fmt.Errorf("row %d: header is not editable at column header position", row)
		}
		return m.ed.setNodeProperty(m.name, row, "change header", func(n *mapping.Node) error {
			n.Header = op.Header
			return nil
		})
	case SetFilter:
		if err := mapping.ValidateFilter(op.Filter); err != nil {
			return err
		}
		return m.ed.setNodeProperty(m.name, row, "change filter", func(n *mapping.Node) error {
			n.Filter = op.Filter
			return nil
		})
	}
	return fmt.Errorf("unsupported edit operation %T", op)
}

func (m *MappingTableModel) setPosition(nodes []*mapping.Node, row int, p mapping.Position) error {
	positions := make([]mapping.Position, len(nodes))
	for i, n := range nodes {
		positions[i] = n.Position
	}
	proposed := ProposePositions(positions, row, p, len(nodes)-1)

	entry, err := m.ed.entry(m.name)
	if err != nil {
		return err
	}
	if p == mapping.TableName && mapping.HasFixedTableName(entry.Root) {
		return m.ed.setPositionsClearingFixedName(m.name, proposed)
	}
	return m.ed.SetMappingPositions(m.name, proposed)
}

// SetMappingProperty применяет правку строки row маппинга name
func (e *Editor) SetMappingProperty(name string, row int, op EditOperation) error {
	if _, err := e.entry(name); err != nil {
		return err
	}
	m := &MappingTableModel{ed: e, name: name}
	return m.Apply(row, op)
}
