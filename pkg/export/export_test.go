package export

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/spine-export/pkg/audit"
	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }

func registerDB(t *testing.T, name string) string {
	t.Helper()
	db := source.NewMemory()
	db.AddEntityClass("unit")
	db.AddEntity("unit", "u1")
	db.AddEntity("unit", "u2")
	source.RegisterMemory(name, db)
	t.Cleanup(func() { source.UnregisterMemory(name) })
	return "memory://" + name
}

func entitiesSpec(t *testing.T, format specification.OutputFormat) *specification.Specification {
	t.Helper()
	spec := specification.New("export", format)
	entry, err := specification.NewEntry(mapping.TypeEntities)
	require.NoError(t, err)
	require.NoError(t, spec.Add("units", entry))
	return spec
}

func TestStampAndPaths(t *testing.T) {
	stamp := Stamp(fixedNow())
	assert.Equal(t, "2024-03-05T14.07.09", stamp)

	tests := []struct {
		name   string
		label  string
		format specification.OutputFormat
		sub    string
		stamp  string
		want   string
	}{
		{"plain", "out", specification.FormatCSV, "", "", filepath.Join("o", "out.csv")},
		{"compatible extension", "out.xlsx", specification.FormatExcel, "", "", filepath.Join("o", "out.xlsx")},
		{"incompatible extension", "out.txt", specification.FormatGDX, "", "", filepath.Join("o", "out.txt.gdx")},
		{"stamp", "out", specification.FormatCSV, "", stamp, filepath.Join("o", "run@"+stamp, "out.csv")},
		{"subdirectory", "out", specification.FormatCSV, "filter", "", filepath.Join("o", "filter", "out.csv")},
		{"both", "out", specification.FormatCSV, "filter", stamp, filepath.Join("o", "filter_run@"+stamp, "out.csv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputPath("o", tt.label, tt.format, tt.sub, tt.stamp))
		})
	}
}

func TestRun_CSV(t *testing.T) {
	url := registerDB(t, "export_csv")
	out := t.TempDir()
	log := &MemoryLogger{}

	res := Run(context.Background(), Options{
		Specification:      entitiesSpec(t, specification.FormatCSV),
		OutputTimeStamps:   true,
		OutputDirectory:    out,
		Databases:          map[string]string{url: "result"},
		FilterID:           "scenario-42",
		FilterSubdirectory: "base",
		Logger:             log,
		Now:                fixedNow,
	})

	require.True(t, res.Success)
	assert.Equal(t, Success, res.Outcome)
	assert.Empty(t, res.ErrorLog)

	dir := filepath.Join(out, "base_run@2024-03-05T14.07.09")
	csvPath := filepath.Join(dir, "result.csv")
	assert.ElementsMatch(t, []string{csvPath, filepath.Join(dir, FilterIDFile)}, res.WrittenFiles["result"])

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "unit,u1\nunit,u2\n", string(data))

	id, err := os.ReadFile(filepath.Join(dir, FilterIDFile))
	require.NoError(t, err)
	assert.Equal(t, "scenario-42", string(id))

	assert.Len(t, log.Messages(LevelSuccess), 2)
	assert.Empty(t, log.Messages(LevelError))
}

func TestRun_PartialSuccess(t *testing.T) {
	good := registerDB(t, "export_good")
	out := t.TempDir()
	log := &MemoryLogger{}
	runLog := audit.NewMemoryAppender()

	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatCSV),
		OutputDirectory: out,
		Databases: map[string]string{
			"memory://export_missing": "bad",
			good:                      "good",
		},
		Logger: log,
		RunLog: runLog,
	})

	assert.False(t, res.Success)
	assert.Equal(t, PartialSuccess, res.Outcome)
	assert.NotEmpty(t, res.WrittenFiles["good"])
	assert.Empty(t, res.WrittenFiles["bad"])

	require.Equal(t, filepath.Join(out, ErrorLogFile), res.ErrorLog)
	data, err := os.ReadFile(res.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source=memory://export_missing")
	assert.Contains(t, string(data), "not registered")

	warnings := log.Messages(LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "memory://export_missing", warnings[0].Fields["source"])
	errs := log.Messages(LevelError)
	require.NotEmpty(t, errs)
	assert.Equal(t, res.ErrorLog, errs[len(errs)-1].Fields["log"])

	entries := runLog.Entries()
	require.Len(t, entries, 2)
	statuses := []audit.Status{entries[0].Status, entries[1].Status}
	assert.ElementsMatch(t, []audit.Status{audit.StatusSuccess, audit.StatusFailure}, statuses)
}

func TestRun_CancelOnErrorAborts(t *testing.T) {
	last := registerDB(t, "zz_export_last")
	out := t.TempDir()

	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatCSV),
		CancelOnError:   true,
		OutputDirectory: out,
		Databases: map[string]string{
			"memory://aa_missing": "first",
			last:                  "last",
		},
	})

	assert.False(t, res.Success)
	assert.Equal(t, Aborted, res.Outcome)
	assert.Empty(t, res.WrittenFiles, "sources after the failure must not run")
}

func TestRun_NoSpecification(t *testing.T) {
	res := Run(context.Background(), Options{OutputDirectory: t.TempDir()})
	assert.Equal(t, Aborted, res.Outcome)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorLog)
}

func TestRun_SQL(t *testing.T) {
	url := registerDB(t, "export_sql")
	dbPath := filepath.Join(t.TempDir(), "out.sqlite")
	d := source.Descriptor{Dialect: source.DialectSQLite, Database: dbPath}

	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatSQL),
		OutputDirectory: t.TempDir(),
		Databases:       map[string]string{url: "result"},
		OutputURLs:      map[string]source.Descriptor{url: d},
	})
	require.True(t, res.Success, "error log: %s", res.ErrorLog)
	assert.Equal(t, []string{d.URL()}, res.WrittenFiles["result"])

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "units"`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestRun_SQLReportsRedactedOutput(t *testing.T) {
	url := registerDB(t, "export_sql_secret")
	d := source.Descriptor{
		Dialect:  source.DialectPostgreSQL,
		Host:     "db.internal",
		Port:     5432,
		Database: "spine",
		Username: "exporter",
		Password: "s3cr3t",
	}

	// Вместо PostgreSQL пишем в SQLite, описание базы остается исходным
	local, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "out.sqlite"))
	require.NoError(t, err)
	defer local.Close()
	orig := openSQLWriter
	openSQLWriter = func(ctx context.Context, got source.Descriptor, overwrite bool) (*writers.SQLWriter, error) {
		assert.Equal(t, d, got)
		return writers.NewSQLWriter(ctx, local, source.DialectSQLite, overwrite), nil
	}
	t.Cleanup(func() { openSQLWriter = orig })

	audited := audit.NewMemoryAppender()
	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatSQL),
		OutputDirectory: t.TempDir(),
		Databases:       map[string]string{url: "result"},
		OutputURLs:      map[string]source.Descriptor{url: d},
		RunLog:          audited,
	})
	require.True(t, res.Success, "error log: %s", res.ErrorLog)

	files := res.WrittenFiles["result"]
	require.Len(t, files, 1)
	assert.NotContains(t, files[0], "s3cr3t")
	assert.Contains(t, files[0], "exporter")
	assert.Contains(t, files[0], "db.internal:5432/spine")
	for _, f := range res.Summary("nightly").Files["result"] {
		assert.NotContains(t, f, "s3cr3t")
	}
	require.Len(t, audited.Entries(), 1)
	assert.Equal(t, "result", audited.Entries()[0].Target)
}

func TestRun_SQLWithoutOutputDatabase(t *testing.T) {
	url := registerDB(t, "export_sql_missing")
	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatSQL),
		OutputDirectory: t.TempDir(),
		Databases:       map[string]string{url: "result"},
	})
	assert.Equal(t, PartialSuccess, res.Outcome)
	data, err := os.ReadFile(res.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), ErrNoOutputDatabase.Error())
}

func TestRun_GDX(t *testing.T) {
	url := registerDB(t, "export_gdx")
	gamsDir := t.TempDir()
	for _, name := range []string{"gams", "gams.exe"} {
		require.NoError(t, os.WriteFile(filepath.Join(gamsDir, name), nil, 0o755))
	}

	var program string
	runner := func(ctx context.Context, dir, gams string, args ...string) error {
		data, err := os.ReadFile(args[0])
		program = string(data)
		return err
	}
	out := t.TempDir()
	res := Run(context.Background(), Options{
		Specification:   entitiesSpec(t, specification.FormatGDX),
		GAMSPath:        gamsDir,
		GAMSRunner:      runner,
		OutputDirectory: out,
		Databases:       map[string]string{url: "result"},
	})
	require.True(t, res.Success, "error log: %s", res.ErrorLog)
	assert.Equal(t, []string{filepath.Join(out, "result.gdx")}, res.WrittenFiles["result"])
	assert.Contains(t, program, "units")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))
	log.Success("done", Fields{"files": 2})
	log.Warning("skipped", Fields{"source": "memory://x"})
	log.Error("failed", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"status":"success"`)
	assert.Contains(t, lines[0], `"files":2`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[2], `"level":"error"`)
}

func TestResult_Summary(t *testing.T) {
	start := fixedNow()
	r := Result{
		Outcome:      PartialSuccess,
		WrittenFiles: map[string][]string{"out": {"a.csv"}},
		Started:      start,
		Finished:     start.Add(1500 * time.Millisecond),
	}
	s := r.Summary("nightly")
	assert.Equal(t, "partial_success", s.Outcome)
	assert.Equal(t, int64(1500), s.DurationMs)
	assert.Equal(t, "nightly", s.RunName)
}
