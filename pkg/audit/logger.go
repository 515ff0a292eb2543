package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed - журнал закрыт
var ErrClosed = errors.New("run log is closed")

// LoggerConfig - настройки журнала
type LoggerConfig struct {
	// DefaultSource подставляется в записи без Source
	DefaultSource string
	// OnError получает ошибки приемников, не возвращенные вызывающему
	OnError func(error)
}

// Logger - журнал запусков поверх набора приемников.
// Безопасен для конкурентного использования.
type Logger struct {
	mu        sync.Mutex
	appenders []Appender
	config    LoggerConfig
	closed    bool
}

// NewLogger создает журнал
func NewLogger(config LoggerConfig, appenders ...Appender) *Logger {
	return &Logger{appenders: appenders, config: config}
}

// Log записывает запись во все приемники и возвращает первую ошибку
func (l *Logger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Source == "" {
		entry.Source = l.config.DefaultSource
	}

	var firstErr error
	for _, a := range l.appenders {
		if err := a.Append(ctx, entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			l.handleError(fmt.Errorf("appender failed: %w", err))
		}
	}
	return firstErr
}

// LogFailure записывает неудачную операцию над базой source с меткой target
func (l *Logger) LogFailure(ctx context.Context, op Operation, source, target string, err error) *Entry {
	entry := NewEntry(op, StatusFailure).WithSource(source).WithTarget(target).WithError(err)
	if logErr := l.Log(ctx, entry); logErr != nil {
		l.handleError(logErr)
	}
	return entry
}

// Close закрывает все приемники
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var firstErr error
	for _, a := range l.appenders {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) handleError(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}
