package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEntry_String(t *testing.T) {
	e := NewEntry(OpExport, StatusSuccess).
		WithSource("sqlite:///in.sqlite").
		WithTarget("out.csv").
		WithFiles(2).
		WithError(errors.New("disk full"))

	if e.Status != StatusFailure {
		t.Errorf("Status = %s, want failure", e.Status)
	}
	if e.ID == "" {
		t.Error("ID is empty")
	}
	s := e.String()
	for _, part := range []string{"export failure", "source=sqlite:///in.sqlite", "target=out.csv", "files=2", ": disk full"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestEntry_FilterByLevel(t *testing.T) {
	e := NewEntry(OpWrite, StatusSuccess).WithMetadata("tables", 3)
	if got := e.FilterByLevel(LevelMinimal); got.Metadata != nil {
		t.Errorf("minimal level kept metadata %v", got.Metadata)
	}
	if got := e.FilterByLevel(LevelStandard); got.Metadata["tables"] != 3 {
		t.Errorf("standard level metadata = %v", got.Metadata)
	}
	if e.Metadata == nil {
		t.Error("FilterByLevel modified the original entry")
	}
}

func TestLogger_FileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "export_errors.log")
	fa, err := NewFileAppender(FileAppenderConfig{FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	mem := NewMemoryAppender()
	log := NewLogger(LoggerConfig{DefaultSource: "memory://db"}, fa, mem)

	ctx := context.Background()
	log.LogFailure(ctx, OpExport, "", "out", errors.New("first"))
	log.LogFailure(ctx, OpWrite, "sqlite:///b.sqlite", "", errors.New("second"))
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2", lines)
	}
	if !strings.Contains(lines[0], "source=memory://db target=out") || !strings.HasSuffix(lines[0], ": first") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "source=sqlite:///b.sqlite") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if n := len(mem.Entries()); n != 2 {
		t.Errorf("memory entries = %d", n)
	}

	if err := log.Log(ctx, NewEntry(OpExport, StatusSuccess)); !errors.Is(err, ErrClosed) {
		t.Errorf("Log() after Close = %v, want ErrClosed", err)
	}
}

func TestFileAppender_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	fa, err := NewFileAppender(FileAppenderConfig{FilePath: path, FormatJSON: true})
	if err != nil {
		t.Fatal(err)
	}
	e := NewEntry(OpPreview, StatusPartial).WithMapping("units").WithDuration(time.Second)
	if err := fa.Append(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	fa.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"mapping":"units"`) || !strings.Contains(string(data), `"status":"partial"`) {
		t.Errorf("file = %s", data)
	}
}

type failingAppender struct{}

func (failingAppender) Append(context.Context, *Entry) error { return errors.New("broken") }
func (failingAppender) Close() error                         { return nil }

func TestLogger_AppenderErrors(t *testing.T) {
	var reported []error
	mem := NewMemoryAppender()
	log := NewLogger(LoggerConfig{OnError: func(err error) { reported = append(reported, err) }}, failingAppender{}, mem)

	err := log.Log(context.Background(), NewEntry(OpExport, StatusSuccess))
	if err == nil {
		t.Fatal("Log() error = nil")
	}
	if len(mem.Entries()) != 1 {
		t.Error("remaining appenders must still receive the entry")
	}
	if len(reported) != 1 {
		t.Errorf("reported = %v", reported)
	}
}

type closeCounter struct {
	MemoryAppender
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestMultiAppender(t *testing.T) {
	first := &closeCounter{}
	ma := NewMultiAppender(first, nil, failingAppender{})
	if ma.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (nil skipped)", ma.Len())
	}
	late := NewMemoryAppender()
	ma.Add(late)

	ctx := context.Background()
	err := ma.Append(ctx, NewEntry(OpExport, StatusSuccess).WithTarget("out"))
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Append() error = %v, want broken", err)
	}
	// Ошибка одного приемника не мешает остальным
	if len(first.Entries()) != 1 || len(late.Entries()) != 1 {
		t.Errorf("entries = %d, %d, want 1, 1", len(first.Entries()), len(late.Entries()))
	}

	if err := ma.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ma.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if first.closed != 1 {
		t.Errorf("sink closed %d times, want 1", first.closed)
	}
	if ma.Len() != 0 {
		t.Errorf("Len() after Close = %d", ma.Len())
	}
}

func TestZerologAppender(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		level Level
		want  []string
		skip  []string
	}{
		{
			name:  "success at debug",
			entry: NewEntry(OpExport, StatusSuccess).WithSource("memory://db").WithTarget("out").WithFiles(2).WithMetadata("rows", 10),
			level: LevelStandard,
			want:  []string{`"level":"debug"`, `"source":"memory://db"`, `"target":"out"`, `"files":2`, `"rows":10`, `"message":"run log"`},
		},
		{
			name:  "failure at warn",
			entry: NewEntry(OpExport, StatusSuccess).WithError(errors.New("boom")),
			level: LevelStandard,
			want:  []string{`"level":"warn"`, `"status":"failure"`, `"error":"boom"`},
		},
		{
			name:  "minimal drops metadata",
			entry: NewEntry(OpWrite, StatusPartial).WithMetadata("rows", 10),
			level: LevelMinimal,
			want:  []string{`"level":"warn"`, `"status":"partial"`},
			skip:  []string{`"rows"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			za := NewZerologAppender(zerolog.New(&buf).Level(zerolog.DebugLevel), tt.level)
			if err := za.Append(context.Background(), tt.entry); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %s misses %s", out, w)
				}
			}
			for _, s := range tt.skip {
				if strings.Contains(out, s) {
					t.Errorf("output %s must not contain %s", out, s)
				}
			}
		})
	}
}
