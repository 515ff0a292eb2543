package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Имена встроенных групповых функций
const (
	GroupNone      = "no_group"
	GroupSum       = "sum"
	GroupMean      = "mean"
	GroupMin       = "min"
	GroupMax       = "max"
	GroupOneOrNone = "one_or_none"
)

// ErrCollision - несколько значений в одной ячейке без групповой функции
var ErrCollision = errors.New("multiple values for the same cell")

// GroupFunc сводит значения, попавшие в одну ячейку pivot таблицы
type GroupFunc func(values []any) (any, error)

var (
	groupFunctions = map[string]GroupFunc{
		GroupNone:      noGroup,
		GroupSum:       numericReducer(func(xs []float64) float64 { return sum(xs) }),
		GroupMean:      numericReducer(func(xs []float64) float64 { return sum(xs) / float64(len(xs)) }),
		GroupMin:       numericReducer(func(xs []float64) float64 { return reduce(xs, math.Min) }),
		GroupMax:       numericReducer(func(xs []float64) float64 { return reduce(xs, math.Max) }),
		GroupOneOrNone: oneOrNone,
	}
	groupLabels = map[string]string{
		GroupNone:      "No grouping",
		GroupSum:       "Sum",
		GroupMean:      "Mean",
		GroupMin:       "Min",
		GroupMax:       "Max",
		GroupOneOrNone: "One or none",
	}
	groupMu sync.RWMutex
)

// RegisterGroupFunction добавляет групповую функцию
func RegisterGroupFunction(name, label string, fn GroupFunc) {
	groupMu.Lock()
	defer groupMu.Unlock()
	groupFunctions[name] = fn
	groupLabels[name] = label
}

// GroupFunctions возвращает имена групповых функций: no_group первой, остальные по алфавиту
func GroupFunctions() []string {
	groupMu.RLock()
	defer groupMu.RUnlock()
	names := make([]string, 0, len(groupFunctions))
	for name := range groupFunctions {
		if name != GroupNone {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{GroupNone}, names...)
}

// GroupLabel возвращает отображаемое имя функции
func GroupLabel(name string) string {
	groupMu.RLock()
	defer groupMu.RUnlock()
	if label, ok := groupLabels[name]; ok {
		return label
	}
	return name
}

// LookupGroupFunction возвращает функцию по имени; пустое имя - no_group
func LookupGroupFunction(name string) (GroupFunc, error) {
	if name == "" {
		name = GroupNone
	}
	groupMu.RLock()
	defer groupMu.RUnlock()
	fn, ok := groupFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown group function %q", name)
	}
	return fn, nil
}

func noGroup(values []any) (any, error) {
	if len(values) > 1 {
		return nil, ErrCollision
	}
	return first(values), nil
}

func oneOrNone(values []any) (any, error) {
	if len(values) == 1 {
		return values[0], nil
	}
	return nil, nil
}

func numericReducer(fn func([]float64) float64) GroupFunc {
	return func(values []any) (any, error) {
		var xs []float64
		for _, v := range values {
			switch x := v.(type) {
			case nil:
				continue
			case float64:
				xs = append(xs, x)
			case int64:
				xs = append(xs, float64(x))
			case int:
				xs = append(xs, float64(x))
			case bool:
				if x {
					xs = append(xs, 1)
				} else {
					xs = append(xs, 0)
				}
			default:
				return nil, fmt.Errorf("value %v of type %T is not numeric", v, v)
			}
		}
		if len(xs) == 0 {
			return nil, nil
		}
		return fn(xs), nil
	}
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func reduce(xs []float64, fn func(a, b float64) float64) float64 {
	result := xs[0]
	for _, x := range xs[1:] {
		result = fn(result, x)
	}
	return result
}

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
