package source

import (
	"context"
	"fmt"
	"sort"
)

// Snapshot - индексированная копия содержимого источника
type Snapshot struct {
	Classes              []EntityClass
	Entities             []Entity
	Definitions          []ParameterDefinition
	Values               []ParameterValue
	Alternatives         []Alternative
	Scenarios            []Scenario
	Lists                []ParameterValueList
	Groups               []EntityGroup
	ScenarioAlternatives []ScenarioAlternative
	ListValues           []ListValue

	classByID         map[int64]*EntityClass
	entityByID        map[int64]*Entity
	alternativeByID   map[int64]*Alternative
	listByID          map[int64]*ParameterValueList
	entitiesByClass   map[int64][]*Entity
	definitionsByCls  map[int64][]*ParameterDefinition
	valuesByDef       map[int64][]*ParameterValue
	listValuesByList  map[int64][]*ListValue
	altsByScenario    map[int64][]*ScenarioAlternative
	groupsByClass     map[int64][]int64
	membersByGroup    map[int64][]int64
	alternativesInUse map[int64]bool
}

// Load читает все таблицы источника и строит индексы
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	s := &Snapshot{}
	var err error
	if s.Classes, err = src.EntityClasses(ctx); err != nil {
		return nil, fmt.Errorf("failed to read entity classes: %w", err)
	}
	if s.Entities, err = src.Entities(ctx); err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}
	if s.Groups, err = src.EntityGroups(ctx); err != nil {
		return nil, fmt.Errorf("failed to read entity groups: %w", err)
	}
	if s.Definitions, err = src.ParameterDefinitions(ctx); err != nil {
		return nil, fmt.Errorf("failed to read parameter definitions: %w", err)
	}
	if s.Values, err = src.ParameterValues(ctx); err != nil {
		return nil, fmt.Errorf("failed to read parameter values: %w", err)
	}
	if s.Alternatives, err = src.Alternatives(ctx); err != nil {
		return nil, fmt.Errorf("failed to read alternatives: %w", err)
	}
	if s.Scenarios, err = src.Scenarios(ctx); err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	if s.ScenarioAlternatives, err = src.ScenarioAlternatives(ctx); err != nil {
		return nil, fmt.Errorf("failed to read scenario alternatives: %w", err)
	}
	if s.Lists, err = src.ParameterValueLists(ctx); err != nil {
		return nil, fmt.Errorf("failed to read parameter value lists: %w", err)
	}
	if s.ListValues, err = src.ListValues(ctx); err != nil {
		return nil, fmt.Errorf("failed to read list values: %w", err)
	}
	s.index()
	return s, nil
}

func (s *Snapshot) index() {
	sort.SliceStable(s.Classes, func(i, j int) bool { return s.Classes[i].ID < s.Classes[j].ID })
	sort.SliceStable(s.Entities, func(i, j int) bool { return s.Entities[i].ID < s.Entities[j].ID })
	sort.SliceStable(s.Definitions, func(i, j int) bool { return s.Definitions[i].ID < s.Definitions[j].ID })
	sort.SliceStable(s.Values, func(i, j int) bool { return s.Values[i].ID < s.Values[j].ID })
	sort.SliceStable(s.Alternatives, func(i, j int) bool { return s.Alternatives[i].ID < s.Alternatives[j].ID })
	sort.SliceStable(s.Scenarios, func(i, j int) bool { return s.Scenarios[i].ID < s.Scenarios[j].ID })
	sort.SliceStable(s.Lists, func(i, j int) bool { return s.Lists[i].ID < s.Lists[j].ID })

	s.classByID = make(map[int64]*EntityClass, len(s.Classes))
	for i := range s.Classes {
		s.classByID[s.Classes[i].ID] = &s.Classes[i]
	}
	s.entityByID = make(map[int64]*Entity, len(s.Entities))
	s.entitiesByClass = make(map[int64][]*Entity)
	for i := range s.Entities {
		e := &s.Entities[i]
		s.entityByID[e.ID] = e
		s.entitiesByClass[e.ClassID] = append(s.entitiesByClass[e.ClassID], e)
	}
	s.definitionsByCls = make(map[int64][]*ParameterDefinition)
	for i := range s.Definitions {
		d := &s.Definitions[i]
		s.definitionsByCls[d.ClassID] = append(s.definitionsByCls[d.ClassID], d)
	}
	s.valuesByDef = make(map[int64][]*ParameterValue)
	s.alternativesInUse = make(map[int64]bool)
	for i := range s.Values {
		v := &s.Values[i]
		s.valuesByDef[v.DefinitionID] = append(s.valuesByDef[v.DefinitionID], v)
		s.alternativesInUse[v.AlternativeID] = true
	}
	s.alternativeByID = make(map[int64]*Alternative, len(s.Alternatives))
	for i := range s.Alternatives {
		s.alternativeByID[s.Alternatives[i].ID] = &s.Alternatives[i]
	}
	s.listByID = make(map[int64]*ParameterValueList, len(s.Lists))
	for i := range s.Lists {
		s.listByID[s.Lists[i].ID] = &s.Lists[i]
	}
	s.listValuesByList = make(map[int64][]*ListValue)
	for i := range s.ListValues {
		lv := &s.ListValues[i]
		s.listValuesByList[lv.ListID] = append(s.listValuesByList[lv.ListID], lv)
	}
	for _, items := range s.listValuesByList {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	}
	s.altsByScenario = make(map[int64][]*ScenarioAlternative)
	for i := range s.ScenarioAlternatives {
		sa := &s.ScenarioAlternatives[i]
		s.altsByScenario[sa.ScenarioID] = append(s.altsByScenario[sa.ScenarioID], sa)
	}
	for _, items := range s.altsByScenario {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Rank < items[j].Rank })
	}
	s.groupsByClass = make(map[int64][]int64)
	s.membersByGroup = make(map[int64][]int64)
	for _, g := range s.Groups {
		if len(s.membersByGroup[g.GroupID]) == 0 {
			s.groupsByClass[g.ClassID] = append(s.groupsByClass[g.ClassID], g.GroupID)
		}
		s.membersByGroup[g.GroupID] = append(s.membersByGroup[g.GroupID], g.MemberID)
	}
	for classID, groups := range s.groupsByClass {
		sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
		s.groupsByClass[classID] = groups
	}
}

// Class возвращает класс по id или nil
func (s *Snapshot) Class(id int64) *EntityClass {
	return s.classByID[id]
}

// Entity возвращает сущность по id или nil
func (s *Snapshot) Entity(id int64) *Entity {
	return s.entityByID[id]
}

// Alternative возвращает альтернативу по id или nil
func (s *Snapshot) Alternative(id int64) *Alternative {
	return s.alternativeByID[id]
}

// List возвращает список значений по id или nil
func (s *Snapshot) List(id int64) *ParameterValueList {
	return s.listByID[id]
}

// EntitiesOf возвращает сущности класса в порядке id
func (s *Snapshot) EntitiesOf(classID int64) []*Entity {
	return s.entitiesByClass[classID]
}

// DefinitionsOf возвращает определения параметров класса
func (s *Snapshot) DefinitionsOf(classID int64) []*ParameterDefinition {
	return s.definitionsByCls[classID]
}

// ValuesOf возвращает значения параметра. Нулевые entityID и alternativeID не ограничивают выборку.
func (s *Snapshot) ValuesOf(definitionID, entityID, alternativeID int64) []*ParameterValue {
	all := s.valuesByDef[definitionID]
	if entityID == 0 && alternativeID == 0 {
		return all
	}
	var selected []*ParameterValue
	for _, v := range all {
		if entityID != 0 && v.EntityID != entityID {
			continue
		}
		if alternativeID != 0 && v.AlternativeID != alternativeID {
			continue
		}
		selected = append(selected, v)
	}
	return selected
}

// AlternativeInUse - альтернатива содержит хотя бы одно значение параметра
func (s *Snapshot) AlternativeInUse(id int64) bool {
	return s.alternativesInUse[id]
}

// GroupsOf возвращает id групповых сущностей класса
func (s *Snapshot) GroupsOf(classID int64) []int64 {
	return s.groupsByClass[classID]
}

// MembersOf возвращает id членов группы
func (s *Snapshot) MembersOf(groupID int64) []int64 {
	return s.membersByGroup[groupID]
}

// AlternativesOf возвращает альтернативы сценария по возрастанию ранга
func (s *Snapshot) AlternativesOf(scenarioID int64) []*ScenarioAlternative {
	return s.altsByScenario[scenarioID]
}

// ListValuesOf возвращает элементы списка по возрастанию индекса
func (s *Snapshot) ListValuesOf(listID int64) []*ListValue {
	return s.listValuesByList[listID]
}
