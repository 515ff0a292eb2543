// Package values описывает значения параметров базы данных:
// скаляры (float, str, bool, null), date_time, duration и индексированные
// значения time_series, time_pattern, array и map (вложенные на любую глубину).
//
// Скаляры представлены нативными типами Go (float64, string, bool, nil,
// time.Time, Duration), индексированные значения - типом *Indexed.
package values

import (
	"fmt"
	"time"
)

// Имена типов значений в базе данных
const (
	TypeFloat       = "float"
	TypeString      = "str"
	TypeBool        = "bool"
	TypeDateTime    = "date_time"
	TypeDuration    = "duration"
	TypeTimeSeries  = "time_series"
	TypeTimePattern = "time_pattern"
	TypeArray       = "array"
	TypeMap         = "map"
)

// Имена индексов по умолчанию
const (
	DefaultTimeSeriesIndexName  = "t"
	DefaultTimePatternIndexName = "p"
	DefaultArrayIndexName       = "i"
	DefaultMapIndexName         = "x"
)

// Indexed - индексированное значение. Values[i] соответствует Indexes[i].
// Для map элементы Values могут быть *Indexed (вложенные отображения).
type Indexed struct {
	Type      string
	IndexName string
	Indexes   []any
	Values    []any

	// Параметры time_series
	IgnoreYear bool
	Repeat     bool
}

// Entry - пара индекс/значение
type Entry struct {
	Index any
	Value any
}

// NewTimeSeries создает временной ряд
func NewTimeSeries(stamps []time.Time, vals []float64) *Indexed {
	v := &Indexed{Type: TypeTimeSeries, IndexName: DefaultTimeSeriesIndexName}
	for i := range stamps {
		v.Indexes = append(v.Indexes, stamps[i])
		v.Values = append(v.Values, vals[i])
	}
	return v
}

// NewTimePattern создает шаблон времени
func NewTimePattern(patterns []string, vals []float64) *Indexed {
	v := &Indexed{Type: TypeTimePattern, IndexName: DefaultTimePatternIndexName}
	for i := range patterns {
		v.Indexes = append(v.Indexes, patterns[i])
		v.Values = append(v.Values, vals[i])
	}
	return v
}

// NewArray создает массив с целочисленными индексами 0..n-1
func NewArray(vals ...any) *Indexed {
	v := &Indexed{Type: TypeArray, IndexName: DefaultArrayIndexName}
	for i, x := range vals {
		v.Indexes = append(v.Indexes, int64(i))
		v.Values = append(v.Values, x)
	}
	return v
}

// NewMap создает отображение из упорядоченных пар
func NewMap(entries ...Entry) *Indexed {
	v := &Indexed{Type: TypeMap, IndexName: DefaultMapIndexName}
	for _, e := range entries {
		v.Indexes = append(v.Indexes, e.Index)
		v.Values = append(v.Values, e.Value)
	}
	return v
}

// Entries возвращает пары индекс/значение в порядке хранения.
// Для скаляров возвращает nil.
func Entries(v any) []Entry {
	ix, ok := v.(*Indexed)
	if !ok || ix == nil {
		return nil
	}
	entries := make([]Entry, len(ix.Indexes))
	for i := range ix.Indexes {
		entries[i] = Entry{Index: ix.Indexes[i], Value: ix.Values[i]}
	}
	return entries
}

// IsIndexed - значение имеет хотя бы один уровень индексов
func IsIndexed(v any) bool {
	ix, ok := v.(*Indexed)
	return ok && ix != nil
}

// IndexName возвращает имя верхнего уровня индексов или ""
func IndexName(v any) string {
	if ix, ok := v.(*Indexed); ok && ix != nil {
		return ix.IndexName
	}
	return ""
}

// Depth возвращает количество уровней индексов.
// Для вложенных отображений берется наибольшая глубина.
func Depth(v any) int {
	ix, ok := v.(*Indexed)
	if !ok || ix == nil {
		return 0
	}
	if ix.Type != TypeMap {
		return 1
	}
	deepest := 0
	for _, x := range ix.Values {
		if d := Depth(x); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// TypeName возвращает имя типа значения.
// Вложенные отображения получают имя вида "2d_map".
func TypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64, float32, int, int64:
		return TypeFloat
	case string:
		return TypeString
	case bool:
		return TypeBool
	case time.Time:
		return TypeDateTime
	case Duration:
		return TypeDuration
	case *Indexed:
		if x.Type == TypeMap {
			if d := Depth(x); d > 1 {
				return fmt.Sprintf("%dd_map", d)
			}
		}
		return x.Type
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal сравнивает значения структурно
func Equal(a, b any) bool {
	ia, aIndexed := a.(*Indexed)
	ib, bIndexed := b.(*Indexed)
	if aIndexed != bIndexed {
		return false
	}
	if !aIndexed {
		if ta, ok := a.(time.Time); ok {
			tb, ok := b.(time.Time)
			return ok && ta.Equal(tb)
		}
		return a == b
	}
	if ia.Type != ib.Type || ia.IndexName != ib.IndexName || len(ia.Indexes) != len(ib.Indexes) {
		return false
	}
	if ia.IgnoreYear != ib.IgnoreYear || ia.Repeat != ib.Repeat {
		return false
	}
	for i := range ia.Indexes {
		if !Equal(ia.Indexes[i], ib.Indexes[i]) || !Equal(ia.Values[i], ib.Values[i]) {
			return false
		}
	}
	return true
}
