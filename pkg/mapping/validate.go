package mapping

import "fmt"

// Validate проверяет инварианты цепочки:
//   - не более одного узла на позиции TableName (FixedValue в корне занимает этот слот)
//   - уникальность колонок и pivot строк
//   - не более одного узла Header, не на классах/сущностях; он задает заголовок
//     колонки значения-листа и поэтому должен стоять до листа, а лист - в колонке
//   - корректность регулярных выражений фильтров
func Validate(root *Node) error {
	if root == nil {
		return &ShapeError{Index: -1, Reason: "mapping is empty"}
	}

	seen := make(map[Position]int)
	tableName := -1
	header := -1
	nodes := Flatten(root)

	for i, n := range nodes {
		if n.Kind >= kindCount {
			return &ShapeError{Index: i, Reason: fmt.Sprintf("unknown kind %d", n.Kind)}
		}
		switch n.Position.Tag() {
		case TagTableName:
			if tableName >= 0 {
				return &ShapeError{Index: i, Reason: fmt.Sprintf("table name already taken by node %d", tableName)}
			}
			tableName = i
		case TagHeader:
			if header >= 0 {
				return &ShapeError{Index: i, Reason: fmt.Sprintf("header already taken by node %d", header)}
			}
			if n.Kind.IsEntityLike() {
				return &ShapeError{Index: i, Reason: n.Kind.Label() + " cannot be used as column header"}
			}
			header = i
		case TagColumn, TagPivotRow:
			if prev, ok := seen[n.Position]; ok {
				return &ShapeError{Index: i, Reason: fmt.Sprintf("position %s collides with node %d", n.Position, prev)}
			}
			seen[n.Position] = i
		}
		if n.Kind == KindFixedValue && n.Position == TableName && i != 0 {
			return &ShapeError{Index: i, Reason: "fixed table name must prefix the mapping"}
		}
		if err := ValidateFilter(n.Filter); err != nil {
			return &ShapeError{Index: i, Reason: err.Error()}
		}
	}
	if header >= 0 {
		leaf := ValueIndex(nodes)
		if header == leaf {
			return &ShapeError{Index: header, Reason: "leaf value cannot be a column header"}
		}
		if leaf < header || nodes[leaf].Position.Tag() != TagColumn {
			return &ShapeError{Index: header, Reason: "column header needs a leaf value in a column after it"}
		}
	}
	return nil
}
