package source

import (
	"context"
	"fmt"
	"strings"
)

// Compile-time check
var _ Source = (*Memory)(nil)

// Memory - база данных в памяти.
// Методы Add* адресуют объекты по именам и присваивают id по порядку добавления.
type Memory struct {
	Classes              []EntityClass
	EntityList           []Entity
	Groups               []EntityGroup
	Definitions          []ParameterDefinition
	Values               []ParameterValue
	AlternativeList      []Alternative
	ScenarioList         []Scenario
	ScenarioAlternations []ScenarioAlternative
	Lists                []ParameterValueList
	ListItems            []ListValue

	nextID int64
}

// NewMemory создает пустую базу
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// AddEntityClass добавляет класс. Для многомерного класса dimensions - имена классов измерений.
func (m *Memory) AddEntityClass(name string, dimensions ...string) int64 {
	class := EntityClass{ID: m.id(), Name: name}
	for _, d := range dimensions {
		class.DimensionIDs = append(class.DimensionIDs, m.classID(d))
	}
	m.Classes = append(m.Classes, class)
	return class.ID
}

// AddEntity добавляет сущность. Для многомерного класса elements - имена элементов,
// а пустое name заменяется на имена элементов через "__".
func (m *Memory) AddEntity(className, name string, elements ...string) int64 {
	classID := m.classID(className)
	entity := Entity{ID: m.id(), ClassID: classID, Name: name}
	var class *EntityClass
	for i := range m.Classes {
		if m.Classes[i].ID == classID {
			class = &m.Classes[i]
		}
	}
	for i, e := range elements {
		entity.ElementIDs = append(entity.ElementIDs, m.entityID(class.DimensionIDs[i], e))
	}
	if entity.Name == "" {
		entity.Name = strings.Join(elements, "__")
	}
	m.EntityList = append(m.EntityList, entity)
	return entity.ID
}

// AddEntityGroup добавляет member в группу group класса className
func (m *Memory) AddEntityGroup(className, group, member string) {
	classID := m.classID(className)
	m.Groups = append(m.Groups, EntityGroup{
		ClassID:  classID,
		GroupID:  m.entityID(classID, group),
		MemberID: m.entityID(classID, member),
	})
}

// AddParameterDefinition добавляет определение параметра
func (m *Memory) AddParameterDefinition(className, name string, defaultValue any) int64 {
	def := ParameterDefinition{ID: m.id(), ClassID: m.classID(className), Name: name, DefaultValue: defaultValue}
	m.Definitions = append(m.Definitions, def)
	return def.ID
}

// SetValueList связывает определение параметра со списком значений
func (m *Memory) SetValueList(className, definition, list string) {
	classID := m.classID(className)
	for i := range m.Definitions {
		if m.Definitions[i].ClassID == classID && m.Definitions[i].Name == definition {
			m.Definitions[i].ValueListID = m.listID(list)
			return
		}
	}
	panic(fmt.Sprintf("unknown parameter definition %s.%s", className, definition))
}

// AddAlternative добавляет альтернативу
func (m *Memory) AddAlternative(name, description string) int64 {
	alt := Alternative{ID: m.id(), Name: name, Description: description}
	m.AlternativeList = append(m.AlternativeList, alt)
	return alt.ID
}

// AddParameterValue добавляет значение параметра
func (m *Memory) AddParameterValue(className, entity, definition, alternative string, value any) {
	classID := m.classID(className)
	defID := int64(0)
	for _, d := range m.Definitions {
		if d.ClassID == classID && d.Name == definition {
			defID = d.ID
		}
	}
	if defID == 0 {
		panic(fmt.Sprintf("unknown parameter definition %s.%s", className, definition))
	}
	m.Values = append(m.Values, ParameterValue{
		ID:            m.id(),
		DefinitionID:  defID,
		EntityID:      m.entityID(classID, entity),
		AlternativeID: m.alternativeID(alternative),
		Value:         value,
	})
}

// AddScenario добавляет сценарий
func (m *Memory) AddScenario(name string, active bool, description string) int64 {
	s := Scenario{ID: m.id(), Name: name, Active: active, Description: description}
	m.ScenarioList = append(m.ScenarioList, s)
	return s.ID
}

// AddScenarioAlternative добавляет альтернативу в сценарий с рангом rank
func (m *Memory) AddScenarioAlternative(scenario, alternative string, rank int) {
	var scenarioID int64
	for _, s := range m.ScenarioList {
		if s.Name == scenario {
			scenarioID = s.ID
		}
	}
	if scenarioID == 0 {
		panic(fmt.Sprintf("unknown scenario %s", scenario))
	}
	m.ScenarioAlternations = append(m.ScenarioAlternations, ScenarioAlternative{
		ScenarioID:    scenarioID,
		AlternativeID: m.alternativeID(alternative),
		Rank:          rank,
	})
}

// AddValueList добавляет список значений
func (m *Memory) AddValueList(name string, items ...any) int64 {
	list := ParameterValueList{ID: m.id(), Name: name}
	m.Lists = append(m.Lists, list)
	for i, v := range items {
		m.ListItems = append(m.ListItems, ListValue{ListID: list.ID, Index: i, Value: v})
	}
	return list.ID
}

func (m *Memory) classID(name string) int64 {
	for _, c := range m.Classes {
		if c.Name == name {
			return c.ID
		}
	}
	panic(fmt.Sprintf("unknown entity class %s", name))
}

func (m *Memory) entityID(classID int64, name string) int64 {
	for _, e := range m.EntityList {
		if e.ClassID == classID && e.Name == name {
			return e.ID
		}
	}
	panic(fmt.Sprintf("unknown entity %s in class %d", name, classID))
}

func (m *Memory) alternativeID(name string) int64 {
	for _, a := range m.AlternativeList {
		if a.Name == name {
			return a.ID
		}
	}
	panic(fmt.Sprintf("unknown alternative %s", name))
}

func (m *Memory) listID(name string) int64 {
	for _, l := range m.Lists {
		if l.Name == name {
			return l.ID
		}
	}
	panic(fmt.Sprintf("unknown value list %s", name))
}

func (m *Memory) EntityClasses(ctx context.Context) ([]EntityClass, error) {
	return append([]EntityClass(nil), m.Classes...), ctx.Err()
}

func (m *Memory) Entities(ctx context.Context) ([]Entity, error) {
	return append([]Entity(nil), m.EntityList...), ctx.Err()
}

func (m *Memory) EntityGroups(ctx context.Context) ([]EntityGroup, error) {
	return append([]EntityGroup(nil), m.Groups...), ctx.Err()
}

func (m *Memory) ParameterDefinitions(ctx context.Context) ([]ParameterDefinition, error) {
	return append([]ParameterDefinition(nil), m.Definitions...), ctx.Err()
}

func (m *Memory) ParameterValues(ctx context.Context) ([]ParameterValue, error) {
	return append([]ParameterValue(nil), m.Values...), ctx.Err()
}

func (m *Memory) Alternatives(ctx context.Context) ([]Alternative, error) {
	return append([]Alternative(nil), m.AlternativeList...), ctx.Err()
}

func (m *Memory) Scenarios(ctx context.Context) ([]Scenario, error) {
	return append([]Scenario(nil), m.ScenarioList...), ctx.Err()
}

func (m *Memory) ScenarioAlternatives(ctx context.Context) ([]ScenarioAlternative, error) {
	return append([]ScenarioAlternative(nil), m.ScenarioAlternations...), ctx.Err()
}

func (m *Memory) ParameterValueLists(ctx context.Context) ([]ParameterValueList, error) {
	return append([]ParameterValueList(nil), m.Lists...), ctx.Err()
}

func (m *Memory) ListValues(ctx context.Context) ([]ListValue, error) {
	return append([]ListValue(nil), m.ListItems...), ctx.Err()
}

// Close ничего не делает
func (m *Memory) Close() error {
	return nil
}
