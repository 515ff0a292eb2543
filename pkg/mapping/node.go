package mapping

import "regexp"

// Node - узел цепочки маппинга root → child → ... → leaf
type Node struct {
	Kind      Kind
	Position  Position
	Header    string // Текст заголовка колонки
	Filter    string // Регулярное выражение для фильтрации значений (пусто = без фильтра)
	Ignorable bool   // Узел может быть пропущен, если не дает значений
	Value     string // Значение для FixedValue
	Child     *Node
}

// New создает узел с заданным типом и позицией
func New(kind Kind, pos Position) *Node {
	return &Node{Kind: kind, Position: pos}
}

// NewFixedValue создает узел FixedValue
func NewFixedValue(value string, pos Position) *Node {
	return &Node{Kind: KindFixedValue, Position: pos, Value: value}
}

// Chain связывает узлы в цепочку в заданном порядке и возвращает корень
func Chain(nodes ...*Node) *Node {
	return Unflatten(nodes)
}

// Flatten возвращает узлы цепочки начиная с корня
func Flatten(root *Node) []*Node {
	var nodes []*Node
	for n := root; n != nil; n = n.Child {
		nodes = append(nodes, n)
	}
	return nodes
}

// Unflatten восстанавливает цепочку из списка и возвращает корень
func Unflatten(nodes []*Node) *Node {
	if len(nodes) == 0 {
		return nil
	}
	for i := 0; i < len(nodes)-1; i++ {
		nodes[i].Child = nodes[i+1]
	}
	nodes[len(nodes)-1].Child = nil
	return nodes[0]
}

// Leaf возвращает последний узел цепочки
func Leaf(root *Node) *Node {
	if root == nil {
		return nil
	}
	n := root
	for n.Child != nil {
		n = n.Child
	}
	return n
}

// Count возвращает количество узлов заданного типа
func Count(root *Node, kind Kind) int {
	count := 0
	for n := root; n != nil; n = n.Child {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

// Has проверяет наличие узла заданного типа
func Has(root *Node, kind Kind) bool {
	for n := root; n != nil; n = n.Child {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// Find возвращает первый узел заданного типа или nil
func Find(root *Node, kind Kind) *Node {
	for n := root; n != nil; n = n.Child {
		if n.Kind == kind {
			return n
		}
	}
	return nil
}

// Clone возвращает глубокую копию цепочки
func Clone(root *Node) *Node {
	nodes := Flatten(root)
	copies := make([]*Node, len(nodes))
	for i, n := range nodes {
		c := *n
		copies[i] = &c
	}
	return Unflatten(copies)
}

// Equal сравнивает две цепочки структурно
func Equal(a, b *Node) bool {
	for a != nil && b != nil {
		if a.Kind != b.Kind || a.Position != b.Position || a.Header != b.Header ||
			a.Filter != b.Filter || a.Ignorable != b.Ignorable || a.Value != b.Value {
			return false
		}
		a, b = a.Child, b.Child
	}
	return a == nil && b == nil
}

// ValueIndex возвращает индекс последнего узла с позицией, отличной от Hidden.
// Узлы после него не влияют на вывод. Возвращает -1, если все узлы скрыты.
func ValueIndex(nodes []*Node) int {
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Position.Tag() != TagHidden {
			return i
		}
	}
	return -1
}

// Positions возвращает позиции всех узлов цепочки
func Positions(root *Node) []Position {
	var positions []Position
	for n := root; n != nil; n = n.Child {
		positions = append(positions, n.Position)
	}
	return positions
}

// SetPositions присваивает позиции узлам по порядку.
// Длина списка должна совпадать с длиной цепочки.
func SetPositions(root *Node, positions []Position) error {
	nodes := Flatten(root)
	if len(nodes) != len(positions) {
		return &ShapeError{Index: -1, Reason: "position count does not match mapping length"}
	}
	for i, n := range nodes {
		n.Position = positions[i]
	}
	return nil
}

// IsPivoted - хотя бы один узел кроме листа имеет pivot позицию
func IsPivoted(root *Node) bool {
	nodes := Flatten(root)
	last := ValueIndex(nodes)
	for i := 0; i < last; i++ {
		if nodes[i].Position.IsPivoted() {
			return true
		}
	}
	return false
}

// HasFixedTableName - цепочка начинается с FixedValue на позиции TableName
func HasFixedTableName(root *Node) bool {
	return root != nil && root.Kind == KindFixedValue && root.Position == TableName
}

// FixedTableName возвращает фиксированное имя таблицы, если оно задано
func FixedTableName(root *Node) (string, bool) {
	if !HasFixedTableName(root) {
		return "", false
	}
	return root.Value, true
}

// HasTableNameNode - в цепочке есть узел на позиции TableName, не являющийся FixedValue
func HasTableNameNode(root *Node) bool {
	for n := root; n != nil; n = n.Child {
		if n.Position == TableName && n.Kind != KindFixedValue {
			return true
		}
	}
	return false
}

// WrapFixedTableName добавляет в начало цепочки FixedValue с позицией TableName.
// Прочие узлы на позиции TableName становятся скрытыми.
func WrapFixedTableName(root *Node, name string) *Node {
	if HasFixedTableName(root) {
		root.Value = name
		return root
	}
	for n := root; n != nil; n = n.Child {
		if n.Position == TableName {
			n.Position = Hidden
		}
	}
	fixed := NewFixedValue(name, TableName)
	fixed.Child = root
	return fixed
}

// UnwrapFixedTableName удаляет FixedValue из начала цепочки
func UnwrapFixedTableName(root *Node) *Node {
	if !HasFixedTableName(root) {
		return root
	}
	child := root.Child
	root.Child = nil
	return child
}

// ValidateFilter проверяет, что фильтр является корректным регулярным выражением
func ValidateFilter(filter string) error {
	if filter == "" {
		return nil
	}
	if _, err := regexp.Compile(filter); err != nil {
		return &FilterError{Filter: filter, Err: err}
	}
	return nil
}
