package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruslano69/spine-export/pkg/specification"
)

const (
	// FilterIDFile - имя файла с идентификатором фильтра рядом с выводом
	FilterIDFile = ".filter_id"
	// ErrorLogFile - журнал ошибок запуска в каталоге вывода
	ErrorLogFile = "export_errors.log"
)

// Stamp - метка времени запуска: ISO 8601 с точностью до секунд, ':' заменено на '.'
func Stamp(t time.Time) string {
	return strings.ReplaceAll(t.Format("2006-01-02T15:04:05"), ":", ".")
}

// FileName - метка, если ее расширение совместимо с форматом, иначе метка с расширением
func FileName(label string, f specification.OutputFormat) string {
	return f.AddExtension(label)
}

// OutputDir возвращает каталог вывода с учетом подкаталога фильтра и метки времени.
// Пустой stamp - без метки времени.
func OutputDir(outDir, filterSubdirectory, stamp string) string {
	switch {
	case filterSubdirectory != "" && stamp != "":
		return filepath.Join(outDir, filterSubdirectory+"_run@"+stamp)
	case filterSubdirectory != "":
		return filepath.Join(outDir, filterSubdirectory)
	case stamp != "":
		return filepath.Join(outDir, "run@"+stamp)
	}
	return outDir
}

// OutputPath - полный путь файла вывода
func OutputPath(outDir, label string, f specification.OutputFormat, filterSubdirectory, stamp string) string {
	return filepath.Join(OutputDir(outDir, filterSubdirectory, stamp), FileName(label, f))
}

// WriteFilterID записывает идентификатор фильтра в каталог dir
func WriteFilterID(dir, id string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FilterIDFile)
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("failed to write filter id: %w", err)
	}
	return path, nil
}
