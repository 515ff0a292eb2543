// Package source предоставляет доступ к базе данных сущностей и параметров.
//
// Source возвращает типизированные строки в порядке возрастания id.
// Движок экспорта работает не с Source напрямую, а с индексированным
// снимком Snapshot, который строится функцией Load.
//
// Реализации:
//   - Memory: база в памяти (тесты, предпросмотр)
//   - SQLSource: база со схемой spine в SQLite, PostgreSQL, MySQL или MS SQL
//
// Источники открываются по URL через реестр (см. Register и Open).
package source

import (
	"context"
	"errors"
)

// ErrVersionMismatch - версия схемы базы данных не поддерживается
var ErrVersionMismatch = errors.New("database schema version mismatch")

// EntityClass - класс сущностей. DimensionIDs не пуст для многомерных классов.
type EntityClass struct {
	ID           int64
	Name         string
	Description  string
	DimensionIDs []int64
}

// Entity - сущность. ElementIDs соответствуют измерениям класса.
type Entity struct {
	ID          int64
	ClassID     int64
	Name        string
	Description string
	ElementIDs  []int64
}

// EntityGroup - членство сущности MemberID в группе GroupID
type EntityGroup struct {
	ClassID  int64
	GroupID  int64
	MemberID int64
}

// ParameterDefinition - определение параметра класса
type ParameterDefinition struct {
	ID           int64
	ClassID      int64
	Name         string
	DefaultValue any
	ValueListID  int64 // 0 - список не задан
	Description  string
}

// ParameterValue - значение параметра сущности в альтернативе
type ParameterValue struct {
	ID            int64
	DefinitionID  int64
	EntityID      int64
	AlternativeID int64
	Value         any
}

// Alternative - альтернатива
type Alternative struct {
	ID          int64
	Name        string
	Description string
}

// Scenario - сценарий
type Scenario struct {
	ID          int64
	Name        string
	Description string
	Active      bool
}

// ScenarioAlternative - альтернатива сценария с рангом
type ScenarioAlternative struct {
	ScenarioID    int64
	AlternativeID int64
	Rank          int
}

// ParameterValueList - список допустимых значений
type ParameterValueList struct {
	ID   int64
	Name string
}

// ListValue - элемент списка значений
type ListValue struct {
	ListID int64
	Index  int
	Value  any
}

// Source - источник данных для экспорта
type Source interface {
	EntityClasses(ctx context.Context) ([]EntityClass, error)
	Entities(ctx context.Context) ([]Entity, error)
	EntityGroups(ctx context.Context) ([]EntityGroup, error)
	ParameterDefinitions(ctx context.Context) ([]ParameterDefinition, error)
	ParameterValues(ctx context.Context) ([]ParameterValue, error)
	Alternatives(ctx context.Context) ([]Alternative, error)
	Scenarios(ctx context.Context) ([]Scenario, error)
	ScenarioAlternatives(ctx context.Context) ([]ScenarioAlternative, error)
	ParameterValueLists(ctx context.Context) ([]ParameterValueList, error)
	ListValues(ctx context.Context) ([]ListValue, error)
	Close() error
}
