// Package resultlog публикует итог запуска экспорта в Redis.
package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config - параметры публикации результата
type Config struct {
	Type     string `yaml:"type"`     // redis; пусто - публикация отключена
	Address  string `yaml:"address"`  // например "127.0.0.1:6379"
	Name     string `yaml:"name"`     // имя запуска (ключ/канал)
	Password string `yaml:"password"` // опционально
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // секунды, по умолчанию 3600
	// Retries - число повторов публикации при ошибке Redis
	Retries      int `yaml:"retries,omitempty"`
	RetryDelayMs int `yaml:"retry_delay_ms,omitempty"` // по умолчанию 200
}

// Enabled - публикация настроена
func (c Config) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

// SetDefaults заполняет необязательные поля
func (c *Config) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = 3600
	}
	if c.Retries > 0 && c.RetryDelayMs == 0 {
		c.RetryDelayMs = 200
	}
}

// Validate проверяет настройки
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Type != "redis" {
		return fmt.Errorf("result_log.type: unsupported type %q (supported: redis)", c.Type)
	}
	if c.Address == "" {
		return fmt.Errorf("result_log.address is required")
	}
	if c.Name == "" {
		return fmt.Errorf("result_log.name is required")
	}
	if c.TTL < 0 {
		return fmt.Errorf("result_log.ttl cannot be negative")
	}
	if c.Retries < 0 || c.RetryDelayMs < 0 {
		return fmt.Errorf("result_log: retries and retry_delay_ms cannot be negative")
	}
	return nil
}

// RunResult - состояние запуска, публикуемое в Redis.
//
// Redis-ключи:
//
//	SET  spine-export:run:<name>:state  <JSON>  EX <ttl>
//	PUB  spine-export:run:<name>
type RunResult struct {
	RunName    string              `json:"run_name"`
	Outcome    string              `json:"outcome"` // success | partial_success | aborted
	Success    bool                `json:"success"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	DurationMs int64               `json:"duration_ms"`
	Files      map[string][]string `json:"files,omitempty"`
	ErrorLog   string              `json:"error_log,omitempty"`
}

// StateKey - ключ последнего состояния запуска
func StateKey(name string) string { return fmt.Sprintf("spine-export:run:%s:state", name) }

// Channel - канал событий запуска
func Channel(name string) string { return fmt.Sprintf("spine-export:run:%s", name) }

// RedisPublisher публикует результат запуска в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает publisher по конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	config.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// Publish сохраняет состояние с TTL и публикует его в канал запуска
func (p *RedisPublisher) Publish(ctx context.Context, result RunResult) error {
	if result.RunName == "" {
		result.RunName = p.config.Name
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	b := Backoff{
		Attempts:     p.config.Retries + 1,
		InitialDelay: time.Duration(p.config.RetryDelayMs) * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       0.1,
	}
	return b.Do(ctx, func(ctx context.Context) error {
		return p.publishOnce(ctx, payload)
	})
}

func (p *RedisPublisher) publishOnce(ctx context.Context, payload []byte) error {
	ttl := time.Duration(p.config.TTL) * time.Second
	if err := p.client.Set(ctx, StateKey(p.config.Name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(p.config.Name), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
