// Package specification описывает спецификацию экспорта: упорядоченный
// набор именованных маппингов и формат вывода.
//
// Порядок маппингов - это порядок записи таблиц, он сохраняется при
// сериализации в JSON и YAML.
package specification

import (
	"errors"
	"fmt"

	"github.com/ruslano69/spine-export/pkg/mapping"
)

// DefaultGroupFn - имя групповой функции по умолчанию
const DefaultGroupFn = "no_group"

// NoHighlightDimension - значение HighlightDimension для типов без выделенного измерения
const NoHighlightDimension = -1

var (
	// ErrDuplicateName - маппинг с таким именем уже существует
	ErrDuplicateName = errors.New("mapping name already in use")
	// ErrUnknownMapping - маппинг не найден
	ErrUnknownMapping = errors.New("no such mapping")
)

// Entry - маппинг и его настройки
type Entry struct {
	Root               *mapping.Node
	Type               mapping.Type
	Enabled            bool
	AlwaysExportHeader bool
	UseFixedTableName  bool
	GroupFn            string
	HighlightDimension int
}

// NewEntry создает включенный маппинг по шаблону типа
func NewEntry(t mapping.Type) (*Entry, error) {
	root, err := mapping.NewTemplate(t)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Root:               root,
		Type:               t,
		Enabled:            true,
		AlwaysExportHeader: true,
		GroupFn:            DefaultGroupFn,
		HighlightDimension: NoHighlightDimension,
	}
	if t.HasHighlightDimension() {
		e.HighlightDimension = 0
	}
	return e, nil
}

// Clone возвращает глубокую копию
func (e *Entry) Clone() *Entry {
	c := *e
	c.Root = mapping.Clone(e.Root)
	return &c
}

// Equal сравнивает маппинги структурно
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Type == other.Type &&
		e.Enabled == other.Enabled &&
		e.AlwaysExportHeader == other.AlwaysExportHeader &&
		e.UseFixedTableName == other.UseFixedTableName &&
		e.GroupFn == other.GroupFn &&
		e.HighlightDimension == other.HighlightDimension &&
		mapping.Equal(e.Root, other.Root)
}

// EntityDimensions возвращает число измерений класса в маппинге
func (e *Entry) EntityDimensions() int {
	return mapping.Count(e.Root, mapping.KindDimension)
}

// ProducesMultipleTables - маппинг может распределять строки по нескольким таблицам
func (e *Entry) ProducesMultipleTables() bool {
	return e.UseFixedTableName || mapping.HasTableNameNode(e.Root)
}

// Specification - упорядоченный набор маппингов
type Specification struct {
	Name         string
	Description  string
	OutputFormat OutputFormat

	names   []string
	entries map[string]*Entry
}

// New создает пустую спецификацию
func New(name string, format OutputFormat) *Specification {
	return &Specification{
		Name:         name,
		OutputFormat: format,
		entries:      make(map[string]*Entry),
	}
}

// Names возвращает имена маппингов в порядке записи
func (s *Specification) Names() []string {
	return append([]string(nil), s.names...)
}

// Len возвращает число маппингов
func (s *Specification) Len() int {
	return len(s.names)
}

// IsEmpty - в спецификации нет маппингов
func (s *Specification) IsEmpty() bool {
	return len(s.names) == 0
}

// Has проверяет наличие маппинга
func (s *Specification) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Entry возвращает маппинг по имени или nil
func (s *Specification) Entry(name string) *Entry {
	return s.entries[name]
}

// Index возвращает позицию маппинга или -1
func (s *Specification) Index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Add добавляет маппинг в конец
func (s *Specification) Add(name string, e *Entry) error {
	return s.Insert(len(s.names), name, e)
}

// Insert вставляет маппинг в позицию at
func (s *Specification) Insert(at int, name string, e *Entry) error {
	if name == "" {
		return fmt.Errorf("mapping name is empty")
	}
	if s.Has(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	if at < 0 || at > len(s.names) {
		at = len(s.names)
	}
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}
	s.names = append(s.names, "")
	copy(s.names[at+1:], s.names[at:])
	s.names[at] = name
	s.entries[name] = e
	return nil
}

// Remove удаляет маппинг и возвращает его с прежней позицией
func (s *Specification) Remove(name string) (*Entry, int, error) {
	at := s.Index(name)
	if at < 0 {
		return nil, -1, fmt.Errorf("%w: %s", ErrUnknownMapping, name)
	}
	e := s.entries[name]
	delete(s.entries, name)
	s.names = append(s.names[:at], s.names[at+1:]...)
	return e, at, nil
}

// Rename переименовывает маппинг, сохраняя его позицию
func (s *Specification) Rename(oldName, newName string) error {
	at := s.Index(oldName)
	if at < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMapping, oldName)
	}
	if oldName == newName {
		return nil
	}
	if newName == "" {
		return fmt.Errorf("mapping name is empty")
	}
	if s.Has(newName) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, newName)
	}
	s.entries[newName] = s.entries[oldName]
	delete(s.entries, oldName)
	s.names[at] = newName
	return nil
}

// Move перемещает маппинг в позицию to
func (s *Specification) Move(name string, to int) error {
	e, _, err := s.Remove(name)
	if err != nil {
		return err
	}
	return s.Insert(to, name, e)
}

// PlanItem - элемент плана записи
type PlanItem struct {
	Name  string
	Entry *Entry
}

// WritePlan возвращает включенные маппинги в порядке записи
func (s *Specification) WritePlan() []PlanItem {
	var plan []PlanItem
	for _, name := range s.names {
		if e := s.entries[name]; e.Enabled {
			plan = append(plan, PlanItem{Name: name, Entry: e})
		}
	}
	return plan
}

// IsExportingMultipleFiles - экспорт создает несколько файлов на одну метку вывода
func (s *Specification) IsExportingMultipleFiles() bool {
	if !s.OutputFormat.IsMultiFileCapable() {
		return false
	}
	for _, item := range s.WritePlan() {
		if item.Entry.ProducesMultipleTables() {
			return true
		}
	}
	return false
}

// Equal сравнивает формат вывода и набор маппингов
func (s *Specification) Equal(other *Specification) bool {
	if s.OutputFormat != other.OutputFormat || len(s.names) != len(other.names) {
		return false
	}
	for i, name := range s.names {
		if other.names[i] != name || !s.entries[name].Equal(other.entries[name]) {
			return false
		}
	}
	return true
}

// Clone возвращает глубокую копию
func (s *Specification) Clone() *Specification {
	c := New(s.Name, s.OutputFormat)
	c.Description = s.Description
	for _, name := range s.names {
		c.names = append(c.names, name)
		c.entries[name] = s.entries[name].Clone()
	}
	return c
}
