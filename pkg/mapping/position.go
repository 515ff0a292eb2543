package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PositionTag - тип позиции узла маппинга
type PositionTag uint8

const (
	// TagColumn - обычная колонка вывода (0, 1, 2, ...)
	TagColumn PositionTag = iota
	// TagPivotRow - строка заголовка pivot таблицы (глубина 1, 2, ...)
	TagPivotRow
	// TagHidden - узел участвует в итерации, но не выводится
	TagHidden
	// TagTableName - значение узла определяет имя таблицы
	TagTableName
	// TagHeader - значение узла становится заголовком колонки значения
	TagHeader
)

// Строковые формы специальных позиций в сериализованном виде
const (
	hiddenText    = "hidden"
	tableNameText = "table_name"
	headerText    = "header"
)

// Position - позиция узла маппинга в выходной таблице.
// Для колонки index = n (n >= 0), для pivot строки index = -k (k >= 1).
type Position struct {
	tag   PositionTag
	index int
}

// Предопределенные специальные позиции
var (
	Hidden    = Position{tag: TagHidden}
	TableName = Position{tag: TagTableName}
	Header    = Position{tag: TagHeader}
)

// Column возвращает позицию колонки n (нумерация с нуля)
func Column(n int) Position {
	if n < 0 {
		panic(fmt.Sprintf("mapping: negative column %d", n))
	}
	return Position{tag: TagColumn, index: n}
}

// PivotRow возвращает позицию pivot строки на глубине k (k >= 1)
func PivotRow(k int) Position {
	if k < 1 {
		panic(fmt.Sprintf("mapping: pivot depth must be >= 1, got %d", k))
	}
	return Position{tag: TagPivotRow, index: -k}
}

// FromInt восстанавливает позицию из целочисленной формы: n >= 0 колонка, -k pivot
func FromInt(i int) Position {
	if i < 0 {
		return PivotRow(-i)
	}
	return Column(i)
}

// Tag возвращает тип позиции
func (p Position) Tag() PositionTag { return p.tag }

// IsRegular - позиция является обычной колонкой
func (p Position) IsRegular() bool { return p.tag == TagColumn }

// IsPivoted - позиция является pivot строкой
func (p Position) IsPivoted() bool { return p.tag == TagPivotRow }

// IsNumeric - позиция выражается целым числом (колонка или pivot)
func (p Position) IsNumeric() bool { return p.tag == TagColumn || p.tag == TagPivotRow }

// Int возвращает целочисленную форму: n для колонки, -k для pivot строки.
// Для специальных позиций возвращает 0 и false.
func (p Position) Int() (int, bool) {
	if !p.IsNumeric() {
		return 0, false
	}
	return p.index, true
}

// ColumnIndex возвращает номер колонки (только для TagColumn)
func (p Position) ColumnIndex() int {
	if p.tag != TagColumn {
		return -1
	}
	return p.index
}

// PivotDepth возвращает глубину pivot строки (только для TagPivotRow)
func (p Position) PivotDepth() int {
	if p.tag != TagPivotRow {
		return 0
	}
	return -p.index
}

// Outward возвращает позицию на один шаг дальше от нуля
// Колонка n → n+1, pivot -k → -(k+1)
func (p Position) Outward() Position {
	switch p.tag {
	case TagColumn:
		return Column(p.index + 1)
	case TagPivotRow:
		return PivotRow(-p.index + 1)
	default:
		return p
	}
}

// String - сериализованная форма позиции
func (p Position) String() string {
	switch p.tag {
	case TagColumn, TagPivotRow:
		return strconv.Itoa(p.index)
	case TagHidden:
		return hiddenText
	case TagTableName:
		return tableNameText
	case TagHeader:
		return headerText
	default:
		return fmt.Sprintf("unknown(%d)", p.tag)
	}
}

// ParsePosition разбирает сериализованную форму позиции
func ParsePosition(s string) (Position, error) {
	switch strings.TrimSpace(s) {
	case hiddenText:
		return Hidden, nil
	case tableNameText:
		return TableName, nil
	case headerText:
		return Header, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Position{}, fmt.Errorf("invalid position %q", s)
	}
	return FromInt(i), nil
}

// MarshalJSON - числа для колонок и pivot, строки для специальных позиций
func (p Position) MarshalJSON() ([]byte, error) {
	if i, ok := p.Int(); ok {
		return []byte(strconv.Itoa(i)), nil
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON принимает как число, так и строковый тег
func (p *Position) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*p = FromInt(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("position must be integer or string: %w", err)
	}
	parsed, err := ParsePosition(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML - та же форма, что и в JSON
func (p Position) MarshalYAML() (any, error) {
	if i, ok := p.Int(); ok {
		return i, nil
	}
	return p.String(), nil
}

// UnmarshalYAML принимает число или строку
func (p *Position) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: position must be a scalar", node.Line)
	}
	parsed, err := ParsePosition(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = parsed
	return nil
}
