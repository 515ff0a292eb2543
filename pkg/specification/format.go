package specification

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputFormat - формат вывода экспорта
type OutputFormat string

const (
	FormatCSV   OutputFormat = "csv"
	FormatExcel OutputFormat = "Excel"
	FormatGDX   OutputFormat = "gdx"
	FormatSQL   OutputFormat = "SQL"
)

// ParseOutputFormat разбирает имя формата без учета регистра
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "gdx":
		return FormatGDX, nil
	case "sql":
		return FormatSQL, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Extension возвращает каноническое расширение файла
func (f OutputFormat) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatExcel:
		return "xlsx"
	case FormatGDX:
		return "gdx"
	case FormatSQL:
		return "sqlite"
	}
	return ""
}

// AcceptedExtensions возвращает расширения, допустимые в метке вывода
func (f OutputFormat) AcceptedExtensions() []string {
	switch f {
	case FormatCSV:
		return []string{"csv", "dat", "txt"}
	case FormatSQL:
		return []string{"sqlite", "sqlite3"}
	}
	return []string{f.Extension()}
}

// IsMultiFileCapable - формат пишет каждую таблицу в отдельный файл
func (f OutputFormat) IsMultiFileCapable() bool {
	return f == FormatCSV
}

// NamesTablesByMapping - безымянная таблица маппинга получает имя маппинга.
// Остальные форматы пишут ее в файл или лист с именем метки вывода.
func (f OutputFormat) NamesTablesByMapping() bool {
	return f == FormatSQL || f == FormatGDX
}

// IsCompatibleExtension проверяет расширение метки вывода
func (f OutputFormat) IsCompatibleExtension(label string) bool {
	ext := strings.TrimPrefix(filepath.Ext(label), ".")
	if ext == "" {
		return false
	}
	for _, accepted := range f.AcceptedExtensions() {
		if strings.EqualFold(ext, accepted) {
			return true
		}
	}
	return false
}

// AddExtension возвращает метку как есть, если ее расширение совместимо с форматом,
// иначе добавляет каноническое расширение
func (f OutputFormat) AddExtension(label string) string {
	if f.IsCompatibleExtension(label) {
		return label
	}
	return label + "." + f.Extension()
}
