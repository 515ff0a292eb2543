// spine-export - экспорт баз данных Spine по спецификации маппингов.
//
// Usage:
//
//	spine-export [--config run.yaml] [--preview [--max-tables N] [--max-rows N]] [--list]
//	spine-export --create-config
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/spine-export/pkg/export"
	"github.com/ruslano69/spine-export/pkg/specification"
)

const version = "1.0.0"

func main() {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *flags.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	if *flags.Version {
		fmt.Printf("spine-export %s\n", version)
		return
	}
	if *flags.CreateConfig {
		if err := createConfigTemplate("."); err != nil {
			log.Fatal().Err(err).Msg("failed to create sample config")
		}
		fmt.Println("✓ Created run.yaml and specification.json")
		fmt.Println("Edit the database list and run:")
		fmt.Println("  spine-export --config run.yaml")
		return
	}

	cfg, err := LoadConfig(*flags.Config)
	if err != nil {
		log.Fatal().Err(err).Str("config", *flags.Config).Msg("config load failed")
	}
	spec, err := specification.Load(cfg.Specification)
	if err != nil {
		log.Fatal().Err(err).Str("specification", cfg.Specification).Msg("specification load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *flags.List:
		listMappings(os.Stdout, spec)
	case *flags.Preview:
		err = runPreview(ctx, os.Stdout, spec, cfg.URLs(), previewOptions{
			MaxTables: *flags.MaxTables,
			MaxRows:   *flags.MaxRows,
			Workers:   *flags.Workers,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("preview failed")
		}
	default:
		res := runExport(ctx, cfg, spec)
		os.Exit(exitCode(res.Outcome))
	}
}

// exitCode: 0 - успех, 1 - прерван, 2 - частичный успех
func exitCode(o export.Outcome) int {
	switch o {
	case export.Success:
		return 0
	case export.PartialSuccess:
		return 2
	default:
		return 1
	}
}
