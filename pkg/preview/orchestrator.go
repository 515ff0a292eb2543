// Package preview строит предпросмотр таблиц для маппингов редактора.
//
// Orchestrator следит за событиями редактора и на каждое значимое изменение
// отправляет работника в ограниченный пул. Работник получает копию цепочки,
// открывает базу, выполняет движок в PreviewWriter и отправляет результат
// в канал завершений. Владелец применяет завершения (ProcessPending, Wait);
// результаты с устаревшим токеном отбрасываются.
package preview

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ruslano69/spine-export/pkg/editor"
	"github.com/ruslano69/spine-export/pkg/engine"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// ErrorTable - имя таблицы, в которую работник пишет текст ошибки
const ErrorTable = "error"

// Options - настройки предпросмотра
type Options struct {
	MaxTables int
	MaxRows   int
	// Workers - размер пула (0 - runtime.NumCPU())
	Workers int
	// Opener открывает базы (nil - глобальный реестр source)
	Opener source.Opener
	Logger *zerolog.Logger
	// OnUpdate вызывается владельцем после применения результата
	OnUpdate func(url, mapping string, tables []writers.Table)
}

// Completion - результат работника
type Completion struct {
	WorkerID uuid.UUID
	URL      string
	Mapping  string
	Token    uint64
	Tables   []writers.Table
	Err      error
}

type key struct {
	url     string
	mapping string
}

// Orchestrator управляет работниками предпросмотра.
// Все методы, кроме внутренних работников, вызываются владельцем редактора.
type Orchestrator struct {
	ed   *editor.Editor
	opts Options
	log  *zerolog.Logger

	urls []string

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completions chan Completion
	inFlight    int
	nextToken   uint64
	tokens      map[key]uint64
	// fingerprints - отпечаток маппинга, отправленного последним
	fingerprints map[key]uint64
	results      map[key][]writers.Table

	unsubscribe func()
	closed      bool
}

// New создает оркестратор и запускает предпросмотр всех включенных маппингов
func New(ed *editor.Editor, urls []string, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Opener == nil {
		opts.Opener = source.Default()
	}
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		ed:           ed,
		opts:         opts,
		log:          log,
		urls:         append([]string(nil), urls...),
		sem:          semaphore.NewWeighted(int64(opts.Workers)),
		ctx:          ctx,
		cancel:       cancel,
		completions:  make(chan Completion, opts.Workers),
		tokens:       make(map[key]uint64),
		fingerprints: make(map[key]uint64),
		results:      make(map[key][]writers.Table),
	}
	o.unsubscribe = ed.Subscribe(o.handle)
	o.RefreshAll()
	return o
}

func (o *Orchestrator) handle(ev editor.Event) {
	switch ev.Kind {
	case editor.MappingRemoved:
		o.forget(ev.Mapping)
	case editor.MappingRenamed:
		o.forget(ev.OldName)
		o.Refresh(ev.Mapping)
	case editor.MappingAdded, editor.EnabledChanged, editor.RootChanged, editor.TypeChanged,
		editor.AlwaysExportHeaderChanged, editor.FixedTableNameChanged,
		editor.GroupFunctionChanged, editor.HighlightDimensionChanged:
		o.Refresh(ev.Mapping)
	}
}

// SetURLs заменяет список баз и обновляет все предпросмотры
func (o *Orchestrator) SetURLs(urls []string) {
	for k := range o.tokens {
		delete(o.tokens, k)
	}
	for k := range o.results {
		delete(o.results, k)
	}
	for k := range o.fingerprints {
		delete(o.fingerprints, k)
	}
	o.urls = append([]string(nil), urls...)
	o.RefreshAll()
}

// SetBounds меняет ограничения и обновляет все предпросмотры
func (o *Orchestrator) SetBounds(maxTables, maxRows int) {
	if o.opts.MaxTables == maxTables && o.opts.MaxRows == maxRows {
		return
	}
	o.opts.MaxTables, o.opts.MaxRows = maxTables, maxRows
	for k := range o.fingerprints {
		delete(o.fingerprints, k)
	}
	o.RefreshAll()
}

// RefreshAll отправляет работников для всех маппингов
func (o *Orchestrator) RefreshAll() {
	for _, name := range o.ed.Specification().Names() {
		o.Refresh(name)
	}
}

// Refresh отправляет работников для маппинга name на каждую базу.
// Выключенный маппинг теряет предпросмотр; неизмененный не пересчитывается.
func (o *Orchestrator) Refresh(name string) {
	if o.closed {
		return
	}
	entry := o.ed.Specification().Entry(name)
	if entry == nil || !entry.Enabled {
		o.forget(name)
		return
	}
	fp := specification.Fingerprint(entry)
	for _, url := range o.urls {
		k := key{url: url, mapping: name}
		if last, ok := o.fingerprints[k]; ok && last == fp {
			continue
		}
		o.fingerprints[k] = fp
		o.nextToken++
		o.tokens[k] = o.nextToken
		o.dispatch(Completion{
			WorkerID: uuid.New(),
			URL:      url,
			Mapping:  name,
			Token:    o.nextToken,
		}, engine.JobFor(name, entry))
	}
}

// forget удаляет токены и результаты маппинга; работники в пути станут устаревшими
func (o *Orchestrator) forget(name string) {
	for k := range o.tokens {
		if k.mapping == name {
			delete(o.tokens, k)
			delete(o.fingerprints, k)
			delete(o.results, k)
		}
	}
}

func (o *Orchestrator) dispatch(c Completion, job engine.Job) {
	o.inFlight++
	workersInFlight.Inc()
	workersTotal.WithLabelValues(outcomeDispatched).Inc()
	o.log.Debug().
		Str("worker", c.WorkerID.String()).
		Str("url", c.URL).
		Str("mapping", c.Mapping).
		Uint64("token", c.Token).
		Msg("preview dispatched")

	o.wg.Add(1)
	go o.work(o.ctx, c, job)
}

func (o *Orchestrator) work(ctx context.Context, c Completion, job engine.Job) {
	defer o.wg.Done()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return
	}
	c.Tables, c.Err = o.render(ctx, c.URL, job)
	o.sem.Release(1)
	if c.Err != nil {
		c.Tables = []writers.Table{{Name: ErrorTable, Rows: [][]any{{c.Err.Error()}}}}
	}
	select {
	case o.completions <- c:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) render(ctx context.Context, url string, job engine.Job) ([]writers.Table, error) {
	src, err := o.opts.Opener.Open(ctx, source.Config{URL: url})
	if err != nil {
		return nil, err
	}
	defer src.Close()

	w := writers.NewPreviewWriter()
	err = engine.Run(ctx, src, w, []engine.Job{job}, engine.Options{
		MaxTables: o.opts.MaxTables,
		MaxRows:   o.opts.MaxRows,
		Logger:    o.log,
	})
	if err != nil {
		return nil, err
	}
	return w.Tables(), nil
}

// apply принимает завершение, если его токен актуален
func (o *Orchestrator) apply(c Completion) {
	o.inFlight--
	workersInFlight.Dec()
	k := key{url: c.URL, mapping: c.Mapping}
	if tok, ok := o.tokens[k]; !ok || tok != c.Token {
		workersTotal.WithLabelValues(outcomeStale).Inc()
		o.log.Debug().Str("worker", c.WorkerID.String()).Str("mapping", c.Mapping).Msg("stale preview dropped")
		return
	}
	if c.Err != nil {
		workersTotal.WithLabelValues(outcomeFailed).Inc()
		o.log.Warn().Err(c.Err).Str("url", c.URL).Str("mapping", c.Mapping).Msg("preview failed")
	} else {
		workersTotal.WithLabelValues(outcomeApplied).Inc()
	}
	o.results[k] = c.Tables
	if o.opts.OnUpdate != nil {
		o.opts.OnUpdate(c.URL, c.Mapping, c.Tables)
	}
}

// ProcessPending применяет все готовые завершения без ожидания.
// Возвращает число обработанных завершений.
func (o *Orchestrator) ProcessPending() int {
	n := 0
	for {
		select {
		case c := <-o.completions:
			o.apply(c)
			n++
		default:
			return n
		}
	}
}

// Wait применяет завершения, пока не закончатся все отправленные работники
func (o *Orchestrator) Wait(ctx context.Context) error {
	for o.inFlight > 0 {
		select {
		case c := <-o.completions:
			o.apply(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending - число работников, чьи завершения еще не применены
func (o *Orchestrator) Pending() int { return o.inFlight }

// Tables возвращает последний примененный предпросмотр маппинга для базы
func (o *Orchestrator) Tables(url, mapping string) ([]writers.Table, bool) {
	t, ok := o.results[key{url: url, mapping: mapping}]
	return t, ok
}

// Close отменяет работников, очищает токены и отключается от редактора
func (o *Orchestrator) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.unsubscribe()
	for k := range o.tokens {
		delete(o.tokens, k)
	}
	o.cancel()
	o.wg.Wait()
	workersInFlight.Sub(float64(o.inFlight))
	o.inFlight = 0
}
