package mapping

import "sort"

// Compact возвращает новую цепочку, в которой колонки перенумерованы в 0, 1, 2, ...
// с сохранением порядка, а pivot строки - в 1, 2, ... .
// Позиции Hidden, TableName и Header не меняются.
func Compact(root *Node) *Node {
	compacted := Clone(root)
	nodes := Flatten(compacted)

	var columns, pivots []*Node
	for _, n := range nodes {
		switch n.Position.Tag() {
		case TagColumn:
			columns = append(columns, n)
		case TagPivotRow:
			pivots = append(pivots, n)
		}
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Position.ColumnIndex() < columns[j].Position.ColumnIndex()
	})
	for i, n := range columns {
		n.Position = Column(i)
	}

	sort.SliceStable(pivots, func(i, j int) bool {
		return pivots[i].Position.PivotDepth() < pivots[j].Position.PivotDepth()
	})
	for i, n := range pivots {
		n.Position = PivotRow(i + 1)
	}

	return compacted
}

// MaxColumn возвращает наибольший номер колонки или -1
func MaxColumn(root *Node) int {
	maxColumn := -1
	for n := root; n != nil; n = n.Child {
		if c := n.Position.ColumnIndex(); c > maxColumn {
			maxColumn = c
		}
	}
	return maxColumn
}

// MaxPivotDepth возвращает наибольшую глубину pivot или 0
func MaxPivotDepth(root *Node) int {
	depth := 0
	for n := root; n != nil; n = n.Child {
		if d := n.Position.PivotDepth(); d > depth {
			depth = d
		}
	}
	return depth
}
