// Package export выполняет спецификацию над набором баз и пишет результат
// в файлы или выходные базы данных.
//
// Для каждой входной базы (в порядке адресов):
//  1. открывается источник;
//  2. создается приемник по формату спецификации;
//  3. движок выполняет включенные маппинги;
//  4. пути записанных файлов собираются по метке вывода.
//
// Ошибки баз собираются в export_errors.log в каталоге вывода.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/spine-export/pkg/audit"
	"github.com/ruslano69/spine-export/pkg/engine"
	"github.com/ruslano69/spine-export/pkg/resultlog"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

var (
	// ErrNoSpecification - спецификация не задана
	ErrNoSpecification = errors.New("no specification")
	// ErrNoOutputDatabase - для базы не задана выходная база формата SQL
	ErrNoOutputDatabase = errors.New("no output database for source")
)

// Outcome - итог запуска
type Outcome int

const (
	// Success - все базы экспортированы без ошибок
	Success Outcome = iota
	// PartialSuccess - часть баз завершилась ошибкой, запуск продолжен
	PartialSuccess
	// Aborted - запуск остановлен на первой ошибке (CancelOnError)
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case PartialSuccess:
		return "partial_success"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Options - параметры запуска
type Options struct {
	Specification    *specification.Specification
	OutputTimeStamps bool
	CancelOnError    bool
	// GAMSPath - каталог установки GAMS для формата gdx
	GAMSPath        string
	OutputDirectory string
	// Databases - метка вывода по адресу входной базы
	Databases map[string]string
	// OutputURLs - выходная база по адресу входной базы (формат SQL)
	OutputURLs         map[string]source.Descriptor
	FilterID           string
	FilterSubdirectory string
	// RequiredVersion - ожидаемая версия схемы баз (пусто - без проверки)
	RequiredVersion string
	Logger          Logger

	// Opener открывает базы (nil - глобальный реестр source)
	Opener source.Opener
	// GAMSRunner запускает GAMS (nil - writers.ExecRunner)
	GAMSRunner writers.Runner
	// RunLog получает запись на каждую базу
	RunLog audit.Appender
	// Now - часы для метки времени (nil - time.Now)
	Now func() time.Time
}

// Result - итог запуска
type Result struct {
	Success bool
	Outcome Outcome
	// WrittenFiles - записанные файлы (для SQL - адреса баз) по метке вывода
	WrittenFiles map[string][]string
	// ErrorLog - путь журнала ошибок, если ошибки были
	ErrorLog string
	Started  time.Time
	Finished time.Time
}

// Summary - результат для публикации в Redis
func (r Result) Summary(runName string) resultlog.RunResult {
	return resultlog.RunResult{
		RunName:    runName,
		Outcome:    r.Outcome.String(),
		Success:    r.Success,
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
		DurationMs: r.Finished.Sub(r.Started).Milliseconds(),
		Files:      r.WrittenFiles,
		ErrorLog:   r.ErrorLog,
	}
}

type failure struct {
	url   string
	label string
	err   error
}

// Run выполняет экспорт. Ошибки не возвращаются: они попадают в Logger
// и журнал ошибок, итог отражен в Result.
func Run(ctx context.Context, opts Options) Result {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}
	result := Result{Outcome: Success, WrittenFiles: make(map[string][]string), Started: now()}

	var failures []failure
	if opts.Specification == nil {
		failures = append(failures, failure{err: ErrNoSpecification})
		result.Outcome = Aborted
	} else {
		failures, result.Outcome = runSources(ctx, opts, log, result.Started, result.WrittenFiles)
	}

	if len(failures) > 0 {
		path, err := writeErrorLog(ctx, opts.OutputDirectory, failures)
		if err != nil {
			log.Error("failed to write error log", Fields{"error": err.Error()})
		} else {
			result.ErrorLog = path
		}
		log.Error("export finished with errors", Fields{
			"failures": len(failures),
			"outcome":  result.Outcome.String(),
			"log":      result.ErrorLog,
		})
	} else {
		log.Success("export finished", Fields{"sources": len(opts.Databases)})
	}
	result.Success = len(failures) == 0
	result.Finished = now()
	return result
}

func runSources(ctx context.Context, opts Options, log Logger, started time.Time, written map[string][]string) ([]failure, Outcome) {
	urls := make([]string, 0, len(opts.Databases))
	for url := range opts.Databases {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	stamp := ""
	if opts.OutputTimeStamps {
		stamp = Stamp(started)
	}
	jobs := engine.JobsFor(opts.Specification)

	var failures []failure
	for _, url := range urls {
		label := opts.Databases[url]
		if err := ctx.Err(); err != nil {
			failures = append(failures, failure{url: url, label: label, err: err})
			return failures, Aborted
		}

		begin := time.Now()
		files, err := exportSource(ctx, opts, url, label, stamp, jobs)
		if len(files) > 0 {
			written[label] = append(written[label], files...)
		}
		recordRun(ctx, opts.RunLog, url, label, files, time.Since(begin), err)

		if err == nil {
			log.Success("source exported", Fields{"source": url, "label": label, "files": len(files)})
			continue
		}
		failures = append(failures, failure{url: url, label: label, err: err})
		if errors.Is(err, source.ErrVersionMismatch) {
			log.Warning("source skipped: schema version mismatch", Fields{"source": url, "error": err.Error()})
			continue
		}
		var openErr *openError
		if errors.As(err, &openErr) {
			log.Warning("failed to open source", Fields{"source": url, "error": err.Error()})
		} else {
			log.Error("export failed", Fields{"source": url, "label": label, "error": err.Error()})
		}
		if opts.CancelOnError {
			return failures, Aborted
		}
	}
	if len(failures) > 0 {
		return failures, PartialSuccess
	}
	return nil, Success
}

// openError - база не открылась
type openError struct {
	url string
	err error
}

func (e *openError) Error() string { return fmt.Sprintf("failed to open %s: %v", e.url, e.err) }
func (e *openError) Unwrap() error { return e.err }

// exportSource экспортирует одну базу. Возвращает записанные файлы даже при ошибке.
func exportSource(ctx context.Context, opts Options, url, label, stamp string, jobs []engine.Job) ([]string, error) {
	opener := opts.Opener
	if opener == nil {
		opener = source.Default()
	}
	src, err := opener.Open(ctx, source.Config{URL: url, RequiredVersion: opts.RequiredVersion})
	if err != nil {
		return nil, &openError{url: url, err: err}
	}
	defer src.Close()

	w, files, err := newWriter(ctx, opts, url, label, stamp)
	if err != nil {
		return nil, err
	}
	runErr := engine.Run(ctx, src, w, jobs, engine.Options{
		ContinueOnWriterError: !opts.CancelOnError,
		Logger:                engineLogger(opts.Logger),
	})
	closeErr := w.Close()
	return files(), errors.Join(runErr, closeErr)
}

// openSQLWriter подключается к выходной базе; подменяется в тестах
var openSQLWriter = writers.OpenSQLWriter

// newWriter создает приемник по формату спецификации и функцию,
// возвращающую записанные файлы после Close
func newWriter(ctx context.Context, opts Options, url, label, stamp string) (writers.Writer, func() []string, error) {
	format := opts.Specification.OutputFormat
	if format == specification.FormatSQL {
		d, ok := opts.OutputURLs[url]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoOutputDatabase, url)
		}
		w, err := openSQLWriter(ctx, d, true)
		if err != nil {
			return nil, nil, err
		}
		return w, func() []string { return []string{d.RedactedURL()} }, nil
	}

	dir := OutputDir(opts.OutputDirectory, opts.FilterSubdirectory, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	var extra []string
	if opts.FilterID != "" {
		path, err := WriteFilterID(dir, opts.FilterID)
		if err != nil {
			return nil, nil, err
		}
		extra = append(extra, path)
	}
	path := filepath.Join(dir, FileName(label, format))

	switch format {
	case specification.FormatCSV:
		w, err := writers.NewCSVWriter(dir, filepath.Base(path))
		if err != nil {
			return nil, nil, err
		}
		return w, func() []string { return append(w.Files(), extra...) }, nil
	case specification.FormatExcel:
		w, err := writers.NewExcelWriter(path, label)
		if err != nil {
			return nil, nil, err
		}
		return w, func() []string { return append([]string{path}, extra...) }, nil
	case specification.FormatGDX:
		w, err := writers.NewGDXWriter(opts.GAMSPath, path, label, opts.GAMSRunner)
		if err != nil {
			return nil, nil, err
		}
		return w, func() []string { return append([]string{path}, extra...) }, nil
	}
	return nil, nil, fmt.Errorf("unsupported output format %q", format)
}

func engineLogger(l Logger) *zerolog.Logger {
	if z, ok := l.(*ZerologLogger); ok {
		return z.Zerolog()
	}
	return nil
}

func recordRun(ctx context.Context, a audit.Appender, url, label string, files []string, d time.Duration, err error) {
	if a == nil {
		return
	}
	entry := audit.NewEntry(audit.OpExport, audit.StatusSuccess).
		WithSource(url).
		WithTarget(label).
		WithFiles(len(files)).
		WithDuration(d).
		WithError(err)
	if err != nil && len(files) > 0 {
		entry.Status = audit.StatusPartial
	}
	a.Append(ctx, entry)
}

// writeErrorLog дописывает ошибки запуска в export_errors.log
func writeErrorLog(ctx context.Context, outDir string, failures []failure) (string, error) {
	path := filepath.Join(outDir, ErrorLogFile)
	fa, err := audit.NewFileAppender(audit.FileAppenderConfig{FilePath: path})
	if err != nil {
		return "", err
	}
	var firstErr error
	runLog := audit.NewLogger(audit.LoggerConfig{OnError: func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}}, fa)
	for _, f := range failures {
		runLog.LogFailure(ctx, audit.OpExport, f.url, f.label, f.err)
	}
	if err := runLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return path, firstErr
}
