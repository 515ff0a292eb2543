// Package writers содержит приемники строк экспорта.
//
// Движок вызывает методы Writer в порядке:
//
//	StartTable → WriteRow... → FinishTable (для каждой таблицы) → Close
//
// Реализации:
//   - CSVWriter: файл на каждую таблицу в каталоге
//   - ExcelWriter: лист на каждую таблицу в одной книге
//   - GDXWriter: символ GAMS на каждую таблицу
//   - SQLWriter: таблица в выходной базе данных
//   - PreviewWriter: таблицы в памяти для предпросмотра
package writers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ruslano69/spine-export/pkg/values"
)

// ErrNoTable - WriteRow или FinishTable вызваны без StartTable
var ErrNoTable = errors.New("no table started")

// TitleKey описывает таблицу, которую движок собирается записать
type TitleKey struct {
	// HeaderRows - количество строк заголовка перед строками данных
	HeaderRows int
	// Mapping - имя маппинга, породившего таблицу
	Mapping string
}

// Writer - приемник строк
type Writer interface {
	// StartTable открывает (или открывает повторно) таблицу. false - таблица пропускается.
	StartTable(name string, title TitleKey) (bool, error)
	// WriteRow добавляет строку. false - запись текущей таблицы прекращается.
	WriteRow(row []any) (bool, error)
	// FinishTable завершает таблицу
	FinishTable() error
	// Close сбрасывает результат на диск и освобождает ресурсы
	Close() error
}

// CellString возвращает текстовое представление ячейки
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case values.Duration:
		return x.String()
	case *values.Indexed:
		return values.TypeName(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
