package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileAppenderConfig - настройки файлового журнала
type FileAppenderConfig struct {
	FilePath string
	// MaxSize - размер файла в мегабайтах до ротации (0 - 100)
	MaxSize int64
	// MaxBackups - число сохраняемых старых файлов (0 - 5)
	MaxBackups int
	Level      Level
	FormatJSON bool
}

// FileAppender дописывает записи в файл, по строке на запись
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	maxSize     int64
	maxBackups  int
	currentSize int64
	level       Level
	formatJSON  bool
}

// NewFileAppender открывает файл журнала на дозапись, создавая каталог
func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	maxSize := config.MaxSize
	if maxSize == 0 {
		maxSize = 100
	}
	maxBackups := config.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}
	return &FileAppender{
		file:        file,
		filePath:    config.FilePath,
		maxSize:     maxSize * 1024 * 1024,
		maxBackups:  maxBackups,
		currentSize: info.Size(),
		level:       config.Level,
		formatJSON:  config.FormatJSON,
	}, nil
}

func (fa *FileAppender) Append(_ context.Context, entry *Entry) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	filtered := entry.FilterByLevel(fa.level)
	var data []byte
	if fa.formatJSON {
		b, err := filtered.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		data = append(b, '\n')
	} else {
		data = []byte(filtered.String() + "\n")
	}

	if fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}
	n, err := fa.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	fa.currentSize += int64(n)
	return nil
}

// rotate сдвигает file.1..file.N-1 и начинает новый файл
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}
	for i := fa.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", fa.filePath, i)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, fmt.Sprintf("%s.%d", fa.filePath, i+1))
		}
	}
	if err := os.Rename(fa.filePath, fa.filePath+".1"); err != nil {
		return err
	}
	file, err := os.OpenFile(fa.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	fa.file = file
	fa.currentSize = 0
	return nil
}

func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.file == nil {
		return nil
	}
	err := fa.file.Close()
	fa.file = nil
	return err
}
