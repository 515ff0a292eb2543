// Package engine выполняет экспорт: обходит базу данных по цепочкам
// маппингов и передает строки таблиц в writers.Writer.
//
// Для каждого маппинга:
//  1. определяется набор таблиц (по узлу на позиции TableName);
//  2. для каждой таблицы собираются строки;
//  3. pivot таблицы материализуются, совпадающие ячейки сводятся групповой функцией;
//  4. строки передаются приемнику с учетом MaxRows.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// Job - маппинг, подготовленный к выполнению
type Job struct {
	Name               string
	Root               *mapping.Node
	AlwaysExportHeader bool
	GroupFn            string
	// DefaultTable - имя таблицы для маппингов без узла TableName
	DefaultTable string
	// HighlightDimension - номер выделенного измерения или -1
	HighlightDimension int
}

// Options - ограничения и настройки выполнения
type Options struct {
	MaxTables int // 0 - без ограничения
	MaxRows   int // 0 - без ограничения
	// ContinueOnWriterError - ошибка приемника пропускает таблицу вместо остановки
	ContinueOnWriterError bool
	Logger                *zerolog.Logger
}

func (o Options) logger() *zerolog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Run загружает источник и выполняет задания
func Run(ctx context.Context, src source.Source, w writers.Writer, jobs []Job, opts Options) error {
	snap, err := source.Load(ctx, src)
	if err != nil {
		return &SourceError{Err: err}
	}
	return RunSnapshot(ctx, snap, w, jobs, opts)
}

// RunSnapshot выполняет задания над загруженным снимком.
// При ContinueOnWriterError возвращает объединение ошибок приемника.
func RunSnapshot(ctx context.Context, snap *source.Snapshot, w writers.Writer, jobs []Job, opts Options) error {
	log := opts.logger()
	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobErrs, err := runJob(ctx, snap, w, job, opts)
		if err != nil {
			return err
		}
		for _, e := range jobErrs {
			log.Warn().Err(e).Str("mapping", job.Name).Msg("table skipped")
		}
		errs = append(errs, jobErrs...)
	}
	return errors.Join(errs...)
}

// runJob выполняет один маппинг. Возвращает пропущенные ошибки приемника
// (при ContinueOnWriterError) и фатальную ошибку.
func runJob(ctx context.Context, snap *source.Snapshot, w writers.Writer, job Job, opts Options) ([]error, error) {
	log := opts.logger().With().Str("mapping", job.Name).Logger()

	if err := mapping.Validate(job.Root); err != nil {
		return nil, &MappingError{Mapping: job.Name, Err: err}
	}
	group, err := LookupGroupFunction(job.GroupFn)
	if err != nil {
		return nil, &MappingError{Mapping: job.Name, Err: err}
	}

	nodes := mapping.Flatten(job.Root)
	lay := newLayout(nodes)
	if lay.last < 0 {
		log.Debug().Msg("all nodes hidden, nothing to export")
		return nil, nil
	}
	wk, err := newWalker(ctx, snap, nodes, lay.last, job.HighlightDimension)
	if err != nil {
		return nil, &MappingError{Mapping: job.Name, Err: err}
	}

	tables := []string{job.DefaultTable}
	if lay.tableIndex >= 0 {
		if tables, err = wk.tableNames(lay.tableIndex, opts.MaxTables); err != nil {
			return nil, err
		}
	}

	var skipped []error
	for _, table := range tables {
		wk.tableIndex = lay.tableIndex
		wk.tableName = table

		rows, err := collectRows(wk)
		if err != nil {
			return skipped, err
		}
		t, err := lay.build(rows, job, group, &log)
		if err != nil {
			return skipped, err
		}
		if err := writeTable(w, table, job, t, opts.MaxRows); err != nil {
			if opts.ContinueOnWriterError {
				skipped = append(skipped, err)
				continue
			}
			return skipped, err
		}
		log.Debug().Str("table", table).Int("rows", len(t.data)).Msg("table written")
	}
	return skipped, nil
}

type rawRow struct {
	cells   []any
	ignored bool
}

func collectRows(w *walker) ([]rawRow, error) {
	var rows []rawRow
	err := w.walk(func(cells []any, ignored bool) error {
		rows = append(rows, rawRow{cells: cells, ignored: ignored})
		return nil
	})
	return rows, err
}

// tableData - готовая к записи таблица
type tableData struct {
	header [][]any
	data   [][]any
}

func writeTable(w writers.Writer, name string, job Job, t *tableData, maxRows int) error {
	data := t.data
	if maxRows > 0 && len(data) > maxRows {
		data = data[:maxRows]
	}
	if len(data) == 0 && (!job.AlwaysExportHeader || len(t.header) == 0) {
		return nil
	}

	wrap := func(err error) error {
		return &WriterError{Mapping: job.Name, Table: name, Err: err}
	}
	ok, err := w.StartTable(name, writers.TitleKey{HeaderRows: len(t.header), Mapping: job.Name})
	if err != nil {
		return wrap(err)
	}
	if !ok {
		return nil
	}
	all := make([][]any, 0, len(t.header)+len(data))
	all = append(all, t.header...)
	all = append(all, data...)
	for _, row := range all {
		more, err := w.WriteRow(row)
		if err != nil {
			return wrap(err)
		}
		if !more {
			break
		}
	}
	if err := w.FinishTable(); err != nil {
		return wrap(fmt.Errorf("failed to finish table: %w", err))
	}
	return nil
}
