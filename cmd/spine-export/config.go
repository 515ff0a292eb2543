package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/spine-export/pkg/audit"
	"github.com/ruslano69/spine-export/pkg/resultlog"
	"github.com/ruslano69/spine-export/pkg/source"
)

// RunConfig - конфигурация запуска экспорта
type RunConfig struct {
	Name            string           `yaml:"name"`          // имя запуска, по умолчанию имя файла спецификации
	Specification   string           `yaml:"specification"` // .json / .yaml, возможно .zst
	Output          OutputConfig     `yaml:"output"`
	Databases       []DatabaseConfig `yaml:"databases"`
	GAMSPath        string           `yaml:"gams_path,omitempty"`
	RequiredVersion string           `yaml:"required_version,omitempty"`
	Filter          FilterConfig     `yaml:"filter,omitempty"`
	Audit           AuditConfig      `yaml:"audit,omitempty"`
	ResultLog       resultlog.Config `yaml:"result_log,omitempty"`
}

// OutputConfig - каталог вывода и режим запуска
type OutputConfig struct {
	Directory     string `yaml:"directory"`
	TimeStamps    bool   `yaml:"time_stamps"`
	CancelOnError bool   `yaml:"cancel_on_error"`
}

// DatabaseConfig - входная база и ее метка вывода
type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label,omitempty"`
	// Output - выходная база для формата SQL
	Output *source.Descriptor `yaml:"output,omitempty"`
}

// FilterConfig - идентификатор фильтра сценариев
type FilterConfig struct {
	ID           string `yaml:"id,omitempty"`
	Subdirectory string `yaml:"subdirectory,omitempty"`
}

// AuditConfig - журнал запусков по базам
type AuditConfig struct {
	File    string `yaml:"file,omitempty"`
	Level   string `yaml:"level,omitempty"` // minimal, standard
	JSON    bool   `yaml:"json,omitempty"`
	MaxSize int64  `yaml:"max_size_mb,omitempty"`
}

// LoadConfig читает конфигурацию, заполняет умолчания и проверяет ее.
// Относительные пути считаются от каталога файла конфигурации.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SetDefaults()
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults заполняет необязательные поля
func (c *RunConfig) SetDefaults() {
	if c.Name == "" && c.Specification != "" {
		base := filepath.Base(c.Specification)
		for ext := filepath.Ext(base); ext != ""; ext = filepath.Ext(base) {
			base = strings.TrimSuffix(base, ext)
		}
		c.Name = base
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "output"
	}
	for i := range c.Databases {
		if c.Databases[i].Label == "" {
			c.Databases[i].Label = defaultLabel(c.Databases[i].URL)
		}
	}
	if c.Audit.Level == "" {
		c.Audit.Level = "standard"
	}
	if c.ResultLog.Name == "" {
		c.ResultLog.Name = c.Name
	}
	c.ResultLog.SetDefaults()
}

// defaultLabel - имя файла базы без расширения
func defaultLabel(url string) string {
	base := filepath.Base(strings.TrimPrefix(url, "sqlite:///"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *RunConfig) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Specification = resolve(c.Specification)
	c.Output.Directory = resolve(c.Output.Directory)
	c.Audit.File = resolve(c.Audit.File)
}

// Validate проверяет конфигурацию
func (c *RunConfig) Validate() error {
	if c.Specification == "" {
		return fmt.Errorf("specification is required")
	}
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database is required")
	}
	seen := make(map[string]bool, len(c.Databases))
	for i, db := range c.Databases {
		if db.URL == "" {
			return fmt.Errorf("databases[%d]: url is required", i)
		}
		if seen[db.URL] {
			return fmt.Errorf("databases[%d]: duplicate url %q", i, db.URL)
		}
		seen[db.URL] = true
		if db.Output != nil {
			if err := db.Output.Validate(); err != nil {
				return fmt.Errorf("databases[%d].output: %w", i, err)
			}
		}
	}
	if _, err := c.Audit.level(); err != nil {
		return err
	}
	return c.ResultLog.Validate()
}

func (a AuditConfig) level() (audit.Level, error) {
	switch a.Level {
	case "", "standard":
		return audit.LevelStandard, nil
	case "minimal":
		return audit.LevelMinimal, nil
	}
	return 0, fmt.Errorf("audit.level: unknown level %q (minimal/standard)", a.Level)
}

// URLs возвращает адреса входных баз в порядке конфигурации
func (c *RunConfig) URLs() []string {
	urls := make([]string, len(c.Databases))
	for i, db := range c.Databases {
		urls[i] = db.URL
	}
	return urls
}

// Labels возвращает метки вывода по адресам баз
func (c *RunConfig) Labels() map[string]string {
	m := make(map[string]string, len(c.Databases))
	for _, db := range c.Databases {
		m[db.URL] = db.Label
	}
	return m
}

// OutputURLs возвращает выходные базы по адресам входных
func (c *RunConfig) OutputURLs() map[string]source.Descriptor {
	m := make(map[string]source.Descriptor)
	for _, db := range c.Databases {
		if db.Output != nil {
			m[db.URL] = *db.Output
		}
	}
	return m
}

// SampleConfig возвращает пример конфигурации
func SampleConfig() *RunConfig {
	return &RunConfig{
		Name:          "example",
		Specification: "specification.json",
		Output:        OutputConfig{Directory: "output", TimeStamps: true},
		Databases: []DatabaseConfig{
			{URL: "sqlite:///model.sqlite", Label: "model"},
		},
		Audit: AuditConfig{File: "output/runs.log", Level: "standard"},
	}
}

// SaveConfig записывает конфигурацию в YAML
func SaveConfig(path string, cfg *RunConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
