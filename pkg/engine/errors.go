package engine

import "fmt"

// SourceError - ошибка чтения источника
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// WriterError - ошибка приемника при записи таблицы
type WriterError struct {
	Mapping string
	Table   string
	Err     error
}

func (e *WriterError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("writer error in mapping %s: %v", e.Mapping, e.Err)
	}
	return fmt.Sprintf("writer error in mapping %s, table %s: %v", e.Mapping, e.Table, e.Err)
}

func (e *WriterError) Unwrap() error {
	return e.Err
}

// GroupError - групповая функция не смогла свести значения
type GroupError struct {
	Function string
	Values   []any
	Err      error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group function %s failed on %v: %v", e.Function, e.Values, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// MappingError - маппинг нельзя выполнить
type MappingError struct {
	Mapping string
	Err     error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("invalid mapping %s: %v", e.Mapping, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
