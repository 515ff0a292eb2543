package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config - параметры открытия источника
type Config struct {
	URL             string
	RequiredVersion string // пустая строка - без проверки версии схемы
}

// OpenFunc открывает источник по конфигурации
type OpenFunc func(ctx context.Context, cfg Config) (Source, error)

// Opener - то, что умеет открывать источники по URL
type Opener interface {
	Open(ctx context.Context, cfg Config) (Source, error)
}

// Registry - реестр функций открытия источников по схеме URL
type Registry struct {
	openers map[string]OpenFunc
	mu      sync.RWMutex
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]OpenFunc)}
}

// Register регистрирует функцию открытия для схемы URL
func (r *Registry) Register(scheme string, fn OpenFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[normalizeScheme(scheme)] = fn
}

// Unregister удаляет схему
func (r *Registry) Unregister(scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.openers, normalizeScheme(scheme))
}

// IsRegistered проверяет регистрацию схемы
func (r *Registry) IsRegistered(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.openers[normalizeScheme(scheme)]
	return ok
}

// Schemes возвращает зарегистрированные схемы по алфавиту
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.openers))
	for s := range r.openers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open открывает источник по URL из конфигурации
func (r *Registry) Open(ctx context.Context, cfg Config) (Source, error) {
	scheme, _, ok := strings.Cut(cfg.URL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid source URL %q", cfg.URL)
	}
	r.mu.RLock()
	fn, ok := r.openers[normalizeScheme(scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %s (available types: %v)", scheme, r.Schemes())
	}
	src, err := fn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", scheme, err)
	}
	return src, nil
}

func normalizeScheme(scheme string) string {
	if d, err := ParseDialect(scheme); err == nil {
		return string(d)
	}
	return strings.ToLower(scheme)
}

// openSQL - функция открытия для всех SQL диалектов
func openSQL(ctx context.Context, cfg Config) (Source, error) {
	d, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return OpenSQL(ctx, d, cfg.RequiredVersion)
}

// ========== Memory sources ==========

var (
	memories   = map[string]*Memory{}
	memoriesMu sync.RWMutex
)

// RegisterMemory делает базу в памяти доступной по URL memory://name
func RegisterMemory(name string, m *Memory) {
	memoriesMu.Lock()
	defer memoriesMu.Unlock()
	memories[name] = m
}

// UnregisterMemory удаляет базу в памяти
func UnregisterMemory(name string) {
	memoriesMu.Lock()
	defer memoriesMu.Unlock()
	delete(memories, name)
}

func openMemory(ctx context.Context, cfg Config) (Source, error) {
	name := strings.TrimPrefix(cfg.URL, "memory://")
	memoriesMu.RLock()
	m, ok := memories[name]
	memoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory database %q is not registered", name)
	}
	return m, ctx.Err()
}

// ========== Global Registry ==========

var globalRegistry = NewRegistry()

func init() {
	for _, d := range []Dialect{DialectSQLite, DialectPostgreSQL, DialectMySQL, DialectMSSQL} {
		globalRegistry.Register(string(d), openSQL)
	}
	globalRegistry.Register("memory", openMemory)
}

// Register регистрирует схему в глобальном реестре
func Register(scheme string, fn OpenFunc) {
	globalRegistry.Register(scheme, fn)
}

// Open открывает источник через глобальный реестр
func Open(ctx context.Context, cfg Config) (Source, error) {
	return globalRegistry.Open(ctx, cfg)
}

// Default возвращает глобальный реестр
func Default() *Registry {
	return globalRegistry
}
