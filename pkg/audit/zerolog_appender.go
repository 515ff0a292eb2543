package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologAppender дублирует записи журнала запусков в zerolog.
// Успешные записи идут на уровне debug, остальные на уровне warn.
type ZerologAppender struct {
	logger zerolog.Logger
	level  Level
}

func NewZerologAppender(logger zerolog.Logger, level Level) *ZerologAppender {
	return &ZerologAppender{logger: logger, level: level}
}

func (za *ZerologAppender) Append(_ context.Context, entry *Entry) error {
	e := entry.FilterByLevel(za.level)

	ev := za.logger.Debug()
	if e.Status != StatusSuccess {
		ev = za.logger.Warn()
	}
	ev = ev.Str("id", e.ID).
		Str("operation", string(e.Operation)).
		Str("status", string(e.Status))
	if e.Source != "" {
		ev = ev.Str("source", e.Source)
	}
	if e.Target != "" {
		ev = ev.Str("target", e.Target)
	}
	if e.Mapping != "" {
		ev = ev.Str("mapping", e.Mapping)
	}
	if e.Files > 0 {
		ev = ev.Int("files", e.Files)
	}
	if e.Duration > 0 {
		ev = ev.Dur("duration", e.Duration)
	}
	if len(e.Metadata) > 0 {
		ev = ev.Fields(e.Metadata)
	}
	if e.ErrorMessage != "" {
		ev = ev.Str("error", e.ErrorMessage)
	}
	ev.Msg("run log")
	return nil
}

func (za *ZerologAppender) Close() error { return nil }
