package audit

import (
	"context"
	"errors"
	"sync"
)

// Appender - приемник записей журнала
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
	Close() error
}

// MultiAppender раздает записи журнала запусков нескольким приемникам.
// Ошибка одного приемника не мешает остальным; ошибки объединяются.
type MultiAppender struct {
	mu    sync.Mutex
	sinks []Appender
}

// NewMultiAppender создает раздачу; nil-приемники пропускаются
func NewMultiAppender(sinks ...Appender) *MultiAppender {
	ma := &MultiAppender{}
	for _, s := range sinks {
		ma.Add(s)
	}
	return ma
}

// Add подключает приемник, например файл журнала, открытый позже
func (ma *MultiAppender) Add(sink Appender) {
	if sink == nil {
		return
	}
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.sinks = append(ma.sinks, sink)
}

// Len - число подключенных приемников
func (ma *MultiAppender) Len() int {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return len(ma.sinks)
}

func (ma *MultiAppender) Append(ctx context.Context, entry *Entry) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	var errs []error
	for _, s := range ma.sinks {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close закрывает все приемники; повторный вызов ничего не делает
func (ma *MultiAppender) Close() error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	var errs []error
	for _, s := range ma.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ma.sinks = nil
	return errors.Join(errs...)
}

// MemoryAppender хранит записи в памяти
type MemoryAppender struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryAppender() *MemoryAppender {
	return &MemoryAppender{}
}

func (m *MemoryAppender) Append(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry.Clone())
	return nil
}

func (m *MemoryAppender) Close() error { return nil }

// Entries возвращает копию записанных записей
func (m *MemoryAppender) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Entry(nil), m.entries...)
}
