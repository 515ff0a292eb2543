package engine

import (
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// layout - раскладка узлов цепочки по колонкам выходной таблицы
type layout struct {
	nodes       []*mapping.Node
	last        int // ValueIndex
	tableIndex  int // узел на позиции TableName или -1
	headerIndex int // узел на позиции Header или -1
	pivoted     bool
	regular     []int // узлы на колонках; в pivot режиме без листа
	pivots      []int // pivot узлы по возрастанию глубины
	width       int   // число регулярных колонок
	leafColumn  int   // колонка листа или -1
}

func newLayout(nodes []*mapping.Node) layout {
	lay := layout{
		nodes:       nodes,
		last:        mapping.ValueIndex(nodes),
		tableIndex:  -1,
		headerIndex: -1,
		leafColumn:  -1,
	}
	for i := 0; i <= lay.last; i++ {
		switch pos := nodes[i].Position; pos.Tag() {
		case mapping.TagTableName:
			lay.tableIndex = i
		case mapping.TagHeader:
			lay.headerIndex = i
		case mapping.TagPivotRow:
			if i < lay.last {
				lay.pivoted = true
				lay.pivots = append(lay.pivots, i)
			}
		}
	}
	sort.SliceStable(lay.pivots, func(a, b int) bool {
		return nodes[lay.pivots[a]].Position.PivotDepth() < nodes[lay.pivots[b]].Position.PivotDepth()
	})
	for i := 0; i <= lay.last; i++ {
		pos := nodes[i].Position
		if !pos.IsRegular() || (lay.pivoted && i == lay.last) {
			continue
		}
		lay.regular = append(lay.regular, i)
		if c := pos.ColumnIndex(); c+1 > lay.width {
			lay.width = c + 1
		}
	}
	if lay.last >= 0 && nodes[lay.last].Position.IsRegular() {
		lay.leafColumn = nodes[lay.last].Position.ColumnIndex()
	}
	return lay
}

// hasHeaderText - хотя бы у одного регулярного узла задан заголовок
func (l *layout) hasHeaderText() bool {
	for _, i := range l.regular {
		if l.nodes[i].Header != "" {
			return true
		}
	}
	return false
}

func (l *layout) headerRow() []any {
	row := make([]any, l.width)
	for _, i := range l.regular {
		row[l.nodes[i].Position.ColumnIndex()] = l.nodes[i].Header
	}
	return row
}

func (l *layout) regularCells(cells []any) []any {
	row := make([]any, l.width)
	for _, i := range l.regular {
		row[l.nodes[i].Position.ColumnIndex()] = cells[i]
	}
	return row
}

// isEmptyIgnored - строка прошла через пропущенный узел и не содержит значений
func (l *layout) isEmptyIgnored(r rawRow) bool {
	if !r.ignored {
		return false
	}
	for i := 0; i <= l.last; i++ {
		if i == l.tableIndex || l.nodes[i].Position.Tag() == mapping.TagHidden {
			continue
		}
		if r.cells[i] != nil {
			return false
		}
	}
	return true
}

func (l *layout) build(rows []rawRow, job Job, group GroupFunc, log *zerolog.Logger) (*tableData, error) {
	kept := rows[:0:0]
	for _, r := range rows {
		if !l.isEmptyIgnored(r) {
			kept = append(kept, r)
		}
	}
	if l.pivoted {
		return l.buildPivot(kept, job, group, log)
	}

	t := &tableData{}
	for _, r := range kept {
		t.data = append(t.data, l.regularCells(r.cells))
	}
	if l.hasHeaderText() || l.headerIndex >= 0 {
		header := l.headerRow()
		if l.headerIndex >= 0 && l.leafColumn >= 0 && len(kept) > 0 {
			header[l.leafColumn] = writers.CellString(kept[0].cells[l.headerIndex])
		}
		t.header = [][]any{header}
	}
	return t, nil
}

type pivotRow struct {
	key   []any
	cells map[string][]any
}

func (l *layout) buildPivot(rows []rawRow, job Job, group GroupFunc, log *zerolog.Logger) (*tableData, error) {
	var (
		rowOrder []string
		rowIndex = map[string]*pivotRow{}
		colOrder []string
		colKeys  = map[string][]any{}
	)
	for _, r := range rows {
		regular := l.regularCells(r.cells)
		rk := joinKey(regular)
		pr, ok := rowIndex[rk]
		if !ok {
			pr = &pivotRow{key: regular, cells: map[string][]any{}}
			rowIndex[rk] = pr
			rowOrder = append(rowOrder, rk)
		}

		coordinate := make([]any, len(l.pivots))
		for d, i := range l.pivots {
			coordinate[d] = r.cells[i]
		}
		ck := joinKey(coordinate)
		if _, ok := colKeys[ck]; !ok {
			colKeys[ck] = coordinate
			colOrder = append(colOrder, ck)
		}
		pr.cells[ck] = append(pr.cells[ck], r.cells[l.last])
	}

	sort.SliceStable(rowOrder, func(a, b int) bool {
		return lessKey(rowIndex[rowOrder[a]].key, rowIndex[rowOrder[b]].key)
	})

	t := &tableData{}
	for d := range l.pivots {
		header := make([]any, l.width, l.width+len(colOrder))
		if d == len(l.pivots)-1 && l.hasHeaderText() {
			header = l.headerRow()
		}
		for _, ck := range colOrder {
			header = append(header, colKeys[ck][d])
		}
		t.header = append(t.header, header)
	}

nextRow:
	for _, rk := range rowOrder {
		pr := rowIndex[rk]
		row := append(make([]any, 0, l.width+len(colOrder)), pr.key...)
		for _, ck := range colOrder {
			collected, ok := pr.cells[ck]
			if !ok {
				row = append(row, nil)
				continue
			}
			value, err := group(collected)
			if err != nil {
				if !errors.Is(err, ErrCollision) {
					return nil, &GroupError{Function: job.GroupFn, Values: collected, Err: err}
				}
				// Конфликт значений в ячейке: строка отбрасывается целиком
				log.Warn().
					Str("cell", strings.ReplaceAll(rk+"/"+ck, keySeparator, ",")).
					Int("values", len(collected)).
					Msg("multiple values for one cell, row dropped")
				continue nextRow
			}
			row = append(row, value)
		}
		t.data = append(t.data, row)
	}
	return t, nil
}

const keySeparator = "\x1f"

func joinKey(cells []any) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = writers.CellString(c)
	}
	return strings.Join(parts, keySeparator)
}

func lessKey(a, b []any) bool {
	for i := range a {
		sa, sb := writers.CellString(a[i]), writers.CellString(b[i])
		if sa != sb {
			return sa < sb
		}
	}
	return false
}
