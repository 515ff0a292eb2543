package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/spine-export/pkg/audit"
	"github.com/ruslano69/spine-export/pkg/editor"
	"github.com/ruslano69/spine-export/pkg/export"
	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/preview"
	"github.com/ruslano69/spine-export/pkg/resultlog"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

// runExport выполняет экспорт по конфигурации и публикует итог
func runExport(ctx context.Context, cfg *RunConfig, spec *specification.Specification) export.Result {
	opts := exportOptions(cfg, spec)

	level, _ := cfg.Audit.level()
	runLog := audit.NewMultiAppender(audit.NewZerologAppender(log.Logger.With().Str("run", cfg.Name).Logger(), level))
	if cfg.Audit.File != "" {
		fa, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   cfg.Audit.File,
			MaxSize:    cfg.Audit.MaxSize,
			Level:      level,
			FormatJSON: cfg.Audit.JSON,
		})
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.Audit.File).Msg("audit log disabled")
		} else {
			runLog.Add(fa)
		}
	}
	defer func() {
		if err := runLog.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close run log")
		}
	}()
	opts.RunLog = runLog

	log.Info().
		Str("run", cfg.Name).
		Str("format", string(spec.OutputFormat)).
		Int("databases", len(cfg.Databases)).
		Msg("export started")
	res := export.Run(ctx, opts)
	for label, files := range res.WrittenFiles {
		log.Info().Str("label", label).Strs("files", files).Msg("written")
	}
	log.Info().
		Str("outcome", res.Outcome.String()).
		Dur("duration", res.Finished.Sub(res.Started)).
		Msg("export finished")

	publishResult(ctx, cfg.ResultLog, res.Summary(cfg.Name))
	return res
}

func exportOptions(cfg *RunConfig, spec *specification.Specification) export.Options {
	return export.Options{
		Specification:      spec,
		OutputTimeStamps:   cfg.Output.TimeStamps,
		CancelOnError:      cfg.Output.CancelOnError,
		GAMSPath:           cfg.GAMSPath,
		OutputDirectory:    cfg.Output.Directory,
		Databases:          cfg.Labels(),
		OutputURLs:         cfg.OutputURLs(),
		FilterID:           cfg.Filter.ID,
		FilterSubdirectory: cfg.Filter.Subdirectory,
		RequiredVersion:    cfg.RequiredVersion,
		Logger:             export.NewZerologLogger(log.Logger),
	}
}

// publishResult отправляет итог в Redis; ошибка публикации не меняет итог запуска
func publishResult(ctx context.Context, cfg resultlog.Config, result resultlog.RunResult) {
	if !cfg.Enabled() {
		return
	}
	p := resultlog.NewRedisPublisher(cfg)
	defer p.Close()
	if err := p.Publish(ctx, result); err != nil {
		log.Warn().Err(err).Str("address", cfg.Address).Msg("failed to publish run result")
		return
	}
	log.Debug().Str("key", resultlog.StateKey(cfg.Name)).Msg("run result published")
}

type previewOptions struct {
	MaxTables int
	MaxRows   int
	Workers   int
}

// runPreview строит предпросмотр всех включенных маппингов для каждой базы
func runPreview(ctx context.Context, out io.Writer, spec *specification.Specification, urls []string, opts previewOptions) error {
	ed := editor.New(spec, nil, nil)
	logger := log.Logger
	o := preview.New(ed, urls, preview.Options{
		MaxTables: opts.MaxTables,
		MaxRows:   opts.MaxRows,
		Workers:   opts.Workers,
		Logger:    &logger,
	})
	defer o.Close()

	if err := o.Wait(ctx); err != nil {
		return fmt.Errorf("preview interrupted: %w", err)
	}
	for _, url := range urls {
		fmt.Fprintf(out, "== %s\n", url)
		for _, item := range spec.WritePlan() {
			tables, ok := o.Tables(url, item.Name)
			if !ok {
				continue
			}
			for _, t := range tables {
				printTable(out, item.Name, t)
			}
		}
	}
	return nil
}

func printTable(out io.Writer, mappingName string, t writers.Table) {
	name := t.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(out, "-- %s: %s (%d rows)\n", mappingName, name, len(t.Rows))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = writers.CellString(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// listMappings печатает маппинги спецификации в порядке записи
func listMappings(out io.Writer, spec *specification.Specification) {
	fmt.Fprintf(out, "%s (%s)\n", spec.Name, spec.OutputFormat)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tENABLED\tGROUP\tFIXED TABLE")
	for _, name := range spec.Names() {
		e := spec.Entry(name)
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%t\n", name, e.Type, e.Enabled, e.GroupFn, e.UseFixedTableName)
	}
	tw.Flush()
}

// createConfigTemplate записывает пример конфигурации и спецификации в dir
func createConfigTemplate(dir string) error {
	cfg := SampleConfig()
	if err := SaveConfig(filepath.Join(dir, "run.yaml"), cfg); err != nil {
		return err
	}
	spec := specification.New(cfg.Name, specification.FormatCSV)
	for _, t := range []mapping.Type{mapping.TypeEntities, mapping.TypeEntityParameterValues, mapping.TypeAlternatives, mapping.TypeScenarios} {
		e, err := specification.NewEntry(t)
		if err != nil {
			return err
		}
		if err := spec.Add(string(t), e); err != nil {
			return err
		}
	}
	return specification.Save(filepath.Join(dir, cfg.Specification), spec)
}
