package mapping

import (
	"errors"
	"fmt"
)

// ErrNegativeDimensions - попытка задать отрицательное количество измерений
var ErrNegativeDimensions = errors.New("dimension count cannot be negative")

// ShapeError - нарушение инвариантов цепочки маппинга
type ShapeError struct {
	Index  int // Индекс узла (-1 если ошибка относится ко всей цепочке)
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return "invalid mapping: " + e.Reason
	}
	return fmt.Sprintf("invalid mapping at node %d: %s", e.Index, e.Reason)
}

// FilterError - регулярное выражение фильтра не компилируется
type FilterError struct {
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %v", e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }
