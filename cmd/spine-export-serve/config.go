package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServeConfig - конфигурация spine-export-serve
type ServeConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Preview PreviewConfig `yaml:"preview"`
}

// ServerConfig - параметры HTTP сервера
type ServerConfig struct {
	Addr         string        `yaml:"addr"`          // по умолчанию ":8080"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // по умолчанию 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // по умолчанию 60s
}

// PreviewConfig - ограничения запросов предпросмотра
type PreviewConfig struct {
	MaxTables int           `yaml:"max_tables"` // верхняя граница, по умолчанию 50
	MaxRows   int           `yaml:"max_rows"`   // верхняя граница, по умолчанию 1000
	Workers   int           `yaml:"workers"`    // 0 - число CPU
	Timeout   time.Duration `yaml:"timeout"`    // по умолчанию 30s
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *ServeConfig {
	cfg := &ServeConfig{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults заполняет необязательные поля
func (c *ServeConfig) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Preview.MaxTables == 0 {
		c.Preview.MaxTables = 50
	}
	if c.Preview.MaxRows == 0 {
		c.Preview.MaxRows = 1000
	}
	if c.Preview.Timeout == 0 {
		c.Preview.Timeout = 30 * time.Second
	}
}

// Validate проверяет конфигурацию
func (c *ServeConfig) Validate() error {
	if c.Preview.MaxTables < 0 || c.Preview.MaxRows < 0 {
		return fmt.Errorf("preview: bounds cannot be negative")
	}
	if c.Preview.Workers < 0 {
		return fmt.Errorf("preview.workers cannot be negative")
	}
	return nil
}

// LoadConfig читает YAML. Пустой путь - конфигурация по умолчанию.
func LoadConfig(path string) (*ServeConfig, error) {
	cfg := &ServeConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
