package editor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/spine-export/pkg/mapping"
)

// ErrInvalidPosition - текст позиции не распознан
var ErrInvalidPosition = errors.New("invalid position")

// ParsePositionText разбирает ввод пользователя в колонке Position:
//   - целое n >= 1 - колонка n (нумерация с единицы), pivot строка n для pivot узла;
//   - t... - имя таблицы, h... - скрытый узел, c... - заголовок колонки.
func ParsePositionText(text string, pivoted bool) (mapping.Position, error) {
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 {
			return mapping.Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, text)
		}
		if pivoted {
			return mapping.PivotRow(n), nil
		}
		return mapping.Column(n - 1), nil
	}
	switch {
	case text == "":
	case strings.HasPrefix(strings.ToLower(text), "t"):
		return mapping.TableName, nil
	case strings.HasPrefix(strings.ToLower(text), "h"):
		return mapping.Hidden, nil
	case strings.HasPrefix(strings.ToLower(text), "c"):
		return mapping.Header, nil
	}
	return mapping.Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, text)
}

// PositionText - отображаемый текст позиции
func PositionText(p mapping.Position) string {
	switch p.Tag() {
	case mapping.TagColumn:
		return strconv.Itoa(p.ColumnIndex() + 1)
	case mapping.TagPivotRow:
		return strconv.Itoa(p.PivotDepth())
	case mapping.TagTableName:
		return "table name"
	case mapping.TagHeader:
		return "column header"
	default:
		return "hidden"
	}
}

// TogglePivot переключает колонку n в pivot строку n+1 и обратно.
// Специальные позиции не меняются.
func TogglePivot(p mapping.Position, pivoted bool) mapping.Position {
	switch {
	case pivoted && p.IsRegular():
		return mapping.PivotRow(p.ColumnIndex() + 1)
	case !pivoted && p.IsPivoted():
		return mapping.Column(p.PivotDepth() - 1)
	}
	return p
}

// ProposePositions возвращает новые позиции узлов после установки позиции newPos
// узлу row. Исходный срез не изменяется.
//
// Если лист (leafRow) становится pivot, остальные pivot узлы сначала переносятся
// в свободные колонки. Узел, занимавший ту же колонку или pivot строку,
// сдвигается на шаг дальше от нуля, рекурсивно. Прежний владелец TableName
// или Header получает прежнюю позицию узла row.
func ProposePositions(positions []mapping.Position, row int, newPos mapping.Position, leafRow int) []mapping.Position {
	result := append([]mapping.Position(nil), positions...)
	if row < 0 || row >= len(result) {
		return result
	}
	old := result[row]
	if old == newPos {
		return result
	}

	if row == leafRow && newPos.IsPivoted() {
		next := maxColumn(result) + 1
		for i, p := range result {
			if i != row && p.IsPivoted() {
				result[i] = mapping.Column(next)
				next++
			}
		}
	}

	result[row] = newPos
	switch newPos.Tag() {
	case mapping.TagColumn, mapping.TagPivotRow:
		pushOutward(result, newPos, row)
	case mapping.TagTableName, mapping.TagHeader:
		for i, p := range result {
			if i != row && p == newPos {
				result[i] = old
			}
		}
	}
	return result
}

// pushOutward сдвигает узел, занимающий pos (кроме owner), на шаг дальше от нуля
func pushOutward(positions []mapping.Position, pos mapping.Position, owner int) {
	for i, p := range positions {
		if i == owner || p != pos {
			continue
		}
		next := pos.Outward()
		pushOutward(positions, next, i)
		positions[i] = next
		return
	}
}

func maxColumn(positions []mapping.Position) int {
	m := -1
	for _, p := range positions {
		if c := p.ColumnIndex(); c > m {
			m = c
		}
	}
	return m
}
