package export

import (
	"sync"

	"github.com/rs/zerolog"
)

// Fields - структурированные поля сообщения
type Fields map[string]any

// Level - уровень сообщения для пользователя
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Logger получает сообщения о ходе экспорта
type Logger interface {
	Success(msg string, fields Fields)
	Warning(msg string, fields Fields)
	Error(msg string, fields Fields)
}

// ZerologLogger пишет сообщения в zerolog
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger оборачивает zerolog.Logger
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (l *ZerologLogger) Success(msg string, fields Fields) {
	l.log.Info().Str("status", string(LevelSuccess)).Fields(map[string]any(fields)).Msg(msg)
}

func (l *ZerologLogger) Warning(msg string, fields Fields) {
	l.log.Warn().Fields(map[string]any(fields)).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields Fields) {
	l.log.Error().Fields(map[string]any(fields)).Msg(msg)
}

// Zerolog возвращает обернутый логгер
func (l *ZerologLogger) Zerolog() *zerolog.Logger { return &l.log }

// Message - сообщение, сохраненное MemoryLogger
type Message struct {
	Level  Level
	Text   string
	Fields Fields
}

// MemoryLogger запоминает сообщения; используется предпросмотром и тестами
type MemoryLogger struct {
	mu       sync.Mutex
	messages []Message
}

func (l *MemoryLogger) add(level Level, msg string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{Level: level, Text: msg, Fields: fields})
}

func (l *MemoryLogger) Success(msg string, fields Fields) { l.add(LevelSuccess, msg, fields) }
func (l *MemoryLogger) Warning(msg string, fields Fields) { l.add(LevelWarning, msg, fields) }
func (l *MemoryLogger) Error(msg string, fields Fields)   { l.add(LevelError, msg, fields) }

// Messages возвращает копию сообщений уровня level ("" - все)
func (l *MemoryLogger) Messages(level Level) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Message
	for _, m := range l.messages {
		if level == "" || m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Success(string, Fields) {}
func (nopLogger) Warning(string, Fields) {}
func (nopLogger) Error(string, Fields)   {}
