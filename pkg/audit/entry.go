// Package audit ведет журнал запусков экспорта: одна запись на базу
// или на ошибку записи. Журнал пишется через Appender (файл, память).
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level - уровень детализации записи в приемнике
type Level int

const (
	// LevelMinimal - без метаданных
	LevelMinimal Level = iota
	// LevelStandard - с метаданными
	LevelStandard
)

func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Operation - вид операции
type Operation string

const (
	OpExport  Operation = "export"
	OpWrite   Operation = "write"
	OpPreview Operation = "preview"
)

// Status - итог операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Entry - запись журнала
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Status    Status    `json:"status"`

	// Source - адрес входной базы
	Source string `json:"source,omitempty"`
	// Target - метка вывода или путь файла
	Target string `json:"target,omitempty"`
	// Mapping - имя маппинга, если запись относится к одному маппингу
	Mapping string `json:"mapping,omitempty"`
	// Files - число записанных файлов
	Files int `json:"files,omitempty"`

	Duration     time.Duration  `json:"duration,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewEntry создает запись с новым идентификатором
func NewEntry(operation Operation, status Status) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Operation: operation,
		Status:    status,
	}
}

func (e *Entry) WithSource(url string) *Entry {
	e.Source = url
	return e
}

func (e *Entry) WithTarget(target string) *Entry {
	e.Target = target
	return e
}

func (e *Entry) WithMapping(name string) *Entry {
	e.Mapping = name
	return e
}

func (e *Entry) WithFiles(n int) *Entry {
	e.Files = n
	return e
}

func (e *Entry) WithDuration(d time.Duration) *Entry {
	e.Duration = d
	return e
}

// WithError - сообщение об ошибке; статус становится failure
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

func (e *Entry) WithMetadata(key string, value any) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - однострочное текстовое представление
func (e *Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", e.Timestamp.Format(time.RFC3339), e.Operation, e.Status)
	if e.Source != "" {
		fmt.Fprintf(&b, " source=%s", e.Source)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%s", e.Target)
	}
	if e.Mapping != "" {
		fmt.Fprintf(&b, " mapping=%s", e.Mapping)
	}
	if e.Files > 0 {
		fmt.Fprintf(&b, " files=%d", e.Files)
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, " duration=%v", e.Duration)
	}
	if e.ErrorMessage != "" {
		fmt.Fprintf(&b, ": %s", e.ErrorMessage)
	}
	return b.String()
}

// Clone возвращает копию записи
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// FilterByLevel возвращает копию без полей, скрытых на уровне level
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()
	if level == LevelMinimal {
		filtered.Metadata = nil
	}
	return filtered
}
