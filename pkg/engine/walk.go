package engine

import (
	"context"
	"errors"
	"regexp"
	"sort"

	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/values"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// cursor - текущее положение обхода базы. Копируется по значению на каждом шаге.
type cursor struct {
	class       *source.EntityClass
	dimensions  int
	entity      *source.Entity
	elements    int
	group       *source.Entity
	definition  *source.ParameterDefinition
	list        *source.ParameterValueList
	alternative *source.Alternative
	scenario    *source.Scenario
	rankPos     int

	value         any
	valueLoaded   bool
	defaultValue  any
	defaultLoaded bool
}

type item struct {
	value any
	next  cursor
}

// walker обходит базу по цепочке узлов nodes[0..last]
type walker struct {
	ctx       context.Context
	snap      *source.Snapshot
	nodes     []*mapping.Node
	last      int
	filters   []*regexp.Regexp
	highlight int

	valueContext   bool
	dimensionCount int

	// Ограничение на имя таблицы: узел tableIndex должен дать tableName
	tableIndex int
	tableName  string
}

func newWalker(ctx context.Context, snap *source.Snapshot, nodes []*mapping.Node, last, highlight int) (*walker, error) {
	w := &walker{
		ctx:        ctx,
		snap:       snap,
		nodes:      nodes,
		last:       last,
		filters:    make([]*regexp.Regexp, len(nodes)),
		highlight:  highlight,
		tableIndex: -1,
	}
	for i, n := range nodes {
		if n.Filter != "" {
			re, err := regexp.Compile(n.Filter)
			if err != nil {
				return nil, &mapping.FilterError{Filter: n.Filter, Err: err}
			}
			w.filters[i] = re
		}
		switch n.Kind {
		case mapping.KindParameterValue, mapping.KindExpandedValue, mapping.KindParameterValueType,
			mapping.KindParameterValueIndex, mapping.KindIndexName:
			w.valueContext = true
		case mapping.KindDimension:
			w.dimensionCount++
		}
	}
	return w, nil
}

// walk вызывает emit для каждой строки. ignored - строка прошла через пропущенный узел.
func (w *walker) walk(emit func(cells []any, ignored bool) error) error {
	cells := make([]any, len(w.nodes))
	return w.step(0, cursor{rankPos: -1}, cells, false, emit)
}

func (w *walker) step(i int, cur cursor, cells []any, ignored bool, emit func([]any, bool) error) error {
	if i > w.last {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		row := make([]any, len(cells))
		copy(row, cells)
		return emit(row, ignored)
	}

	node := w.nodes[i]
	produced := w.produce(node, cur)
	emitted := false
	for _, it := range produced {
		if i == w.tableIndex && writers.CellString(it.value) != w.tableName {
			continue
		}
		value, rowIgnored := it.value, ignored
		if re := w.filters[i]; re != nil && !re.MatchString(writers.CellString(value)) {
			if !node.Ignorable {
				continue
			}
			value, rowIgnored = nil, true
		}
		emitted = true
		cells[i] = value
		if err := w.step(i+1, it.next, cells, rowIgnored, emit); err != nil {
			return err
		}
	}
	if !emitted && node.Ignorable && i != w.tableIndex {
		cells[i] = nil
		return w.step(i+1, cur, cells, true, emit)
	}
	return nil
}

// produce возвращает значения узла для текущего положения
func (w *walker) produce(node *mapping.Node, cur cursor) []item {
	s := w.snap
	switch node.Kind {
	case mapping.KindFixedValue:
		return []item{{value: node.Value, next: cur}}

	case mapping.KindEntityClass:
		var items []item
		for i := range s.Classes {
			c := &s.Classes[i]
			if w.dimensionCount > 0 && len(c.DimensionIDs) != w.dimensionCount {
				continue
			}
			next := cursor{rankPos: -1, class: c, scenario: cur.scenario, alternative: cur.alternative}
			items = append(items, item{value: c.Name, next: next})
		}
		return items

	case mapping.KindDimension:
		if cur.class == nil || cur.dimensions >= len(cur.class.DimensionIDs) {
			return nil
		}
		dim := s.Class(cur.class.DimensionIDs[cur.dimensions])
		if dim == nil {
			return nil
		}
		next := cur
		next.dimensions++
		return []item{{value: dim.Name, next: next}}

	case mapping.KindEntity:
		if cur.class == nil {
			return nil
		}
		var items []item
		for _, e := range s.EntitiesOf(cur.class.ID) {
			if w.valueContext && cur.definition != nil && !w.hasValues(cur.definition, e, cur.alternative) {
				continue
			}
			next := cur
			next.entity = e
			next.elements = 0
			next.value, next.valueLoaded = nil, false
			items = append(items, item{value: e.Name, next: next})
		}
		return items

	case mapping.KindElement:
		if cur.entity == nil || cur.elements >= len(cur.entity.ElementIDs) {
			return nil
		}
		element := s.Entity(cur.entity.ElementIDs[cur.elements])
		if element == nil {
			return nil
		}
		next := cur
		next.elements++
		return []item{{value: element.Name, next: next}}

	case mapping.KindEntityGroup:
		if cur.class == nil {
			return nil
		}
		var items []item
		for _, id := range s.GroupsOf(cur.class.ID) {
			if g := s.Entity(id); g != nil {
				next := cur
				next.group = g
				items = append(items, item{value: g.Name, next: next})
			}
		}
		return items

	case mapping.KindEntityGroupEntity:
		if cur.group == nil {
			return nil
		}
		var items []item
		for _, id := range s.MembersOf(cur.group.ID) {
			if m := s.Entity(id); m != nil {
				next := cur
				next.entity = m
				items = append(items, item{value: m.Name, next: next})
			}
		}
		return items

	case mapping.KindParameterDefinition:
		if cur.class == nil {
			return nil
		}
		classID := cur.class.ID
		if w.highlight >= 0 && w.highlight < len(cur.class.DimensionIDs) {
			classID = cur.class.DimensionIDs[w.highlight]
		}
		var items []item
		for _, d := range s.DefinitionsOf(classID) {
			if w.valueContext && cur.entity != nil && !w.hasValues(d, cur.entity, cur.alternative) {
				continue
			}
			next := cur
			next.definition = d
			next.list = nil
			next.value, next.valueLoaded = nil, false
			next.defaultValue, next.defaultLoaded = nil, false
			items = append(items, item{value: d.Name, next: next})
		}
		return items

	case mapping.KindParameterDefaultValueType:
		if cur.definition == nil {
			return nil
		}
		return []item{{value: values.TypeName(cur.currentDefault()), next: cur}}

	case mapping.KindDefaultValueIndexName:
		if cur.definition == nil {
			return nil
		}
		dv := cur.currentDefault()
		if !values.IsIndexed(dv) {
			return nil
		}
		return []item{{value: values.IndexName(dv), next: cur}}

	case mapping.KindParameterDefaultValueIndex:
		if cur.definition == nil {
			return nil
		}
		var items []item
		for _, e := range values.Entries(cur.currentDefault()) {
			next := cur
			next.defaultValue, next.defaultLoaded = e.Value, true
			items = append(items, item{value: e.Index, next: next})
		}
		return items

	case mapping.KindParameterDefaultValue, mapping.KindExpandedDefaultValue:
		if cur.definition == nil {
			return nil
		}
		return []item{{value: leafValue(cur.currentDefault()), next: cur}}

	case mapping.KindParameterValueList:
		var lists []*source.ParameterValueList
		if cur.definition != nil {
			if l := s.List(cur.definition.ValueListID); l != nil {
				lists = append(lists, l)
			}
		} else {
			for i := range s.Lists {
				lists = append(lists, &s.Lists[i])
			}
		}
		items := make([]item, 0, len(lists))
		for _, l := range lists {
			next := cur
			next.list = l
			items = append(items, item{value: l.Name, next: next})
		}
		return items

	case mapping.KindParameterValueListValue:
		if cur.list == nil {
			return nil
		}
		var items []item
		for _, lv := range s.ListValuesOf(cur.list.ID) {
			items = append(items, item{value: leafValue(lv.Value), next: cur})
		}
		return items

	case mapping.KindAlternative:
		var items []item
		for _, a := range w.alternatives(cur) {
			next := cur
			next.alternative = a
			next.value, next.valueLoaded = nil, false
			items = append(items, item{value: a.Name, next: next})
		}
		return items

	case mapping.KindAlternativeDescription:
		if cur.alternative == nil {
			return nil
		}
		return []item{{value: cur.alternative.Description, next: cur}}

	case mapping.KindScenario:
		items := make([]item, 0, len(s.Scenarios))
		for i := range s.Scenarios {
			sc := &s.Scenarios[i]
			next := cur
			next.scenario = sc
			next.rankPos = -1
			items = append(items, item{value: sc.Name, next: next})
		}
		return items

	case mapping.KindScenarioDescription:
		if cur.scenario == nil {
			return nil
		}
		return []item{{value: cur.scenario.Description, next: cur}}

	case mapping.KindScenarioActiveFlag:
		if cur.scenario == nil {
			return nil
		}
		return []item{{value: cur.scenario.Active, next: cur}}

	case mapping.KindScenarioAlternative:
		if cur.scenario == nil {
			return nil
		}
		var items []item
		for k, sa := range s.AlternativesOf(cur.scenario.ID) {
			a := s.Alternative(sa.AlternativeID)
			if a == nil {
				continue
			}
			next := cur
			next.alternative = a
			next.rankPos = k
			items = append(items, item{value: a.Name, next: next})
		}
		return items

	case mapping.KindScenarioBeforeAlternative:
		if cur.scenario == nil || cur.rankPos < 0 {
			return nil
		}
		ranked := s.AlternativesOf(cur.scenario.ID)
		before := ""
		if cur.rankPos+1 < len(ranked) {
			if a := s.Alternative(ranked[cur.rankPos+1].AlternativeID); a != nil {
				before = a.Name
			}
		}
		return []item{{value: before, next: cur}}

	case mapping.KindParameterValue, mapping.KindExpandedValue:
		v, ok := w.currentValue(cur)
		if !ok {
			return nil
		}
		return []item{{value: leafValue(v), next: cur}}

	case mapping.KindParameterValueType:
		v, ok := w.currentValue(cur)
		if !ok {
			return nil
		}
		return []item{{value: values.TypeName(v), next: cur}}

	case mapping.KindIndexName:
		v, ok := w.currentValue(cur)
		if !ok || !values.IsIndexed(v) {
			return nil
		}
		return []item{{value: values.IndexName(v), next: cur}}

	case mapping.KindParameterValueIndex:
		v, ok := w.currentValue(cur)
		if !ok {
			return nil
		}
		var items []item
		for _, e := range values.Entries(v) {
			next := cur
			next.value, next.valueLoaded = e.Value, true
			items = append(items, item{value: e.Index, next: next})
		}
		return items
	}
	return nil
}

// alternatives возвращает альтернативы для узла Alternative.
// В контексте значений остаются только альтернативы, содержащие значения.
func (w *walker) alternatives(cur cursor) []*source.Alternative {
	s := w.snap
	var result []*source.Alternative
	if !w.valueContext {
		for i := range s.Alternatives {
			result = append(result, &s.Alternatives[i])
		}
		return result
	}
	if cur.definition != nil && cur.entity != nil {
		seen := map[int64]bool{}
		for _, v := range s.ValuesOf(cur.definition.ID, w.valueEntityID(cur.entity), 0) {
			if a := s.Alternative(v.AlternativeID); a != nil && !seen[a.ID] {
				seen[a.ID] = true
				result = append(result, a)
			}
		}
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
		return result
	}
	for i := range s.Alternatives {
		if s.AlternativeInUse(s.Alternatives[i].ID) {
			result = append(result, &s.Alternatives[i])
		}
	}
	return result
}

// valueEntityID - сущность, которой принадлежат значения параметров.
// При выделенном измерении это соответствующий элемент многомерной сущности.
func (w *walker) valueEntityID(e *source.Entity) int64 {
	if w.highlight >= 0 && w.highlight < len(e.ElementIDs) {
		return e.ElementIDs[w.highlight]
	}
	return e.ID
}

func (w *walker) hasValues(d *source.ParameterDefinition, e *source.Entity, a *source.Alternative) bool {
	var altID int64
	if a != nil {
		altID = a.ID
	}
	return len(w.snap.ValuesOf(d.ID, w.valueEntityID(e), altID)) > 0
}

// currentValue возвращает значение параметра (или его часть после индексов)
func (w *walker) currentValue(cur cursor) (any, bool) {
	if cur.valueLoaded {
		return cur.value, true
	}
	if cur.definition == nil || cur.entity == nil {
		return nil, false
	}
	var altID int64
	if cur.alternative != nil {
		altID = cur.alternative.ID
	}
	found := w.snap.ValuesOf(cur.definition.ID, w.valueEntityID(cur.entity), altID)
	if len(found) == 0 {
		return nil, false
	}
	return found[0].Value, true
}

func (c cursor) currentDefault() any {
	if c.defaultLoaded {
		return c.defaultValue
	}
	return c.definition.DefaultValue
}

// leafValue - скаляр как есть, для индексированного значения - имя типа
func leafValue(v any) any {
	if values.IsIndexed(v) {
		return values.TypeName(v)
	}
	return v
}

// tableNames возвращает имена таблиц в порядке появления, не более limit (0 - без ограничения)
func (w *walker) tableNames(tableIndex, limit int) ([]string, error) {
	prefix := *w
	prefix.last = tableIndex
	prefix.tableIndex = -1

	var names []string
	seen := map[string]bool{}
	err := prefix.walk(func(cells []any, _ bool) error {
		if cells[tableIndex] == nil {
			return nil
		}
		name := writers.CellString(cells[tableIndex])
		if seen[name] {
			return nil
		}
		if limit > 0 && len(names) >= limit {
			return errStopWalk
		}
		seen[name] = true
		names = append(names, name)
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, err
	}
	return names, nil
}

var errStopWalk = errors.New("stop walk")
