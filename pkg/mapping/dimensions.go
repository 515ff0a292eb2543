package mapping

import "fmt"

// SetEntityDimensions изменяет количество узлов Dimension и Element до d.
// Новые узлы вставляются после последнего существующего узла того же типа
// (или после EntityClass / Entity) и получают свободные колонки справа.
// Позиции сохранившихся узлов не меняются. Исходная цепочка не изменяется.
func SetEntityDimensions(root *Node, d int) (*Node, error) {
	if d < 0 {
		return nil, ErrNegativeDimensions
	}
	nodes := Flatten(Clone(root))
	if Find(root, KindEntityClass) == nil {
		return nil, &ShapeError{Index: -1, Reason: "mapping has no entity class"}
	}

	nodes = trimKind(nodes, KindDimension, d)
	nodes = trimKind(nodes, KindElement, d)

	next := maxColumnOf(nodes) + 1
	nodes = growKind(nodes, KindDimension, KindEntityClass, d, func() Position {
		p := Column(next)
		next++
		return p
	})
	if containsKind(nodes, KindEntity) {
		nodes = growKind(nodes, KindElement, KindEntity, d, func() Position {
			p := Column(next)
			next++
			return p
		})
	}
	return Unflatten(nodes), nil
}

// SetParameterDimensions задает количество индексов значения параметра.
// d == 0: лист ParameterValue, d > 0: пары IndexName/ParameterValueIndex и лист ExpandedValue.
func SetParameterDimensions(root *Node, d int) (*Node, error) {
	return setIndexDimensions(root, d, KindIndexName, KindParameterValueIndex, KindParameterValue, KindExpandedValue)
}

// SetParameterDefaultValueDimensions - то же для значения по умолчанию
func SetParameterDefaultValueDimensions(root *Node, d int) (*Node, error) {
	return setIndexDimensions(root, d, KindDefaultValueIndexName, KindParameterDefaultValueIndex,
		KindParameterDefaultValue, KindExpandedDefaultValue)
}

func setIndexDimensions(root *Node, d int, nameKind, indexKind, scalarLeaf, expandedLeaf Kind) (*Node, error) {
	if d < 0 {
		return nil, ErrNegativeDimensions
	}
	nodes := Flatten(Clone(root))
	leafIndex := -1
	for i, n := range nodes {
		if n.Kind == scalarLeaf || n.Kind == expandedLeaf {
			leafIndex = i
		}
	}
	if leafIndex < 0 {
		return nil, &ShapeError{Index: -1, Reason: fmt.Sprintf("mapping has no %s", scalarLeaf.Label())}
	}
	leaf := nodes[leafIndex]

	nodes = trimKind(nodes, nameKind, d)
	nodes = trimKind(nodes, indexKind, d)

	current := countKind(nodes, indexKind)
	if d > current {
		// Если значение было последней колонкой, новые индексы занимают его место,
		// а значение сдвигается вправо
		maxColumn := maxColumnOf(nodes)
		next := maxColumn + 1
		valueLast := leaf.Position.IsRegular() && leaf.Position.ColumnIndex() == maxColumn
		if valueLast {
			next = maxColumn
		}
		var inserted []*Node
		for i := current; i < d; i++ {
			inserted = append(inserted, New(nameKind, Hidden), New(indexKind, Column(next)))
			next++
		}
		if valueLast {
			leaf.Position = Column(next)
		}
		at := indexOf(nodes, leaf)
		nodes = insertAt(nodes, at, inserted...)
	}

	if d == 0 {
		leaf.Kind = scalarLeaf
	} else {
		leaf.Kind = expandedLeaf
	}
	return Unflatten(nodes), nil
}

// UpgradeIndexNames вставляет скрытые узлы IndexName / DefaultValueIndexName
// перед индексными узлами, у которых их нет (спецификации старого формата).
func UpgradeIndexNames(root *Node) *Node {
	nodes := Flatten(Clone(root))
	upgraded := make([]*Node, 0, len(nodes))
	for i, n := range nodes {
		var nameKind Kind
		switch n.Kind {
		case KindParameterValueIndex:
			nameKind = KindIndexName
		case KindParameterDefaultValueIndex:
			nameKind = KindDefaultValueIndexName
		default:
			upgraded = append(upgraded, n)
			continue
		}
		if i == 0 || nodes[i-1].Kind != nameKind {
			upgraded = append(upgraded, New(nameKind, Hidden))
		}
		upgraded = append(upgraded, n)
	}
	return Unflatten(upgraded)
}

// trimKind оставляет только первые keep узлов заданного типа
func trimKind(nodes []*Node, kind Kind, keep int) []*Node {
	result := nodes[:0:0]
	seen := 0
	for _, n := range nodes {
		if n.Kind == kind {
			seen++
			if seen > keep {
				continue
			}
		}
		result = append(result, n)
	}
	return result
}

// growKind добавляет узлы kind до количества want после последнего узла этого типа
// или, если их нет, после узла anchor
func growKind(nodes []*Node, kind, anchor Kind, want int, nextPosition func() Position) []*Node {
	current := countKind(nodes, kind)
	if current >= want {
		return nodes
	}
	at := -1
	for i, n := range nodes {
		if n.Kind == kind || (at < 0 && n.Kind == anchor) {
			at = i
		}
	}
	if at < 0 {
		return nodes
	}
	var inserted []*Node
	for i := current; i < want; i++ {
		inserted = append(inserted, New(kind, nextPosition()))
	}
	return insertAt(nodes, at+1, inserted...)
}

func insertAt(nodes []*Node, at int, inserted ...*Node) []*Node {
	result := make([]*Node, 0, len(nodes)+len(inserted))
	result = append(result, nodes[:at]...)
	result = append(result, inserted...)
	return append(result, nodes[at:]...)
}

func indexOf(nodes []*Node, target *Node) int {
	for i, n := range nodes {
		if n == target {
			return i
		}
	}
	return len(nodes)
}

func countKind(nodes []*Node, kind Kind) int {
	count := 0
	for _, n := range nodes {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

func containsKind(nodes []*Node, kind Kind) bool {
	return countKind(nodes, kind) > 0
}

func maxColumnOf(nodes []*Node) int {
	maxColumn := -1
	for _, n := range nodes {
		if c := n.Position.ColumnIndex(); c > maxColumn {
			maxColumn = c
		}
	}
	return maxColumn
}
