package editor

import (
	"github.com/ruslano69/spine-export/pkg/source"
)

// ExporterSettings - настройки вывода для каждой входной базы:
// метка вывода (имя файла) и описание выходной базы для формата SQL
type ExporterSettings struct {
	urls       []string
	labels     map[string]string
	outputURLs map[string]source.Descriptor
}

// NewExporterSettings создает пустые настройки
func NewExporterSettings() *ExporterSettings {
	return &ExporterSettings{
		labels:     make(map[string]string),
		outputURLs: make(map[string]source.Descriptor),
	}
}

// AddDatabase добавляет входную базу с меткой вывода
func (s *ExporterSettings) AddDatabase(url, label string) {
	if _, ok := s.labels[url]; !ok {
		s.urls = append(s.urls, url)
	}
	s.labels[url] = label
}

// RemoveDatabase удаляет входную базу
func (s *ExporterSettings) RemoveDatabase(url string) {
	delete(s.labels, url)
	delete(s.outputURLs, url)
	for i, u := range s.urls {
		if u == url {
			s.urls = append(s.urls[:i], s.urls[i+1:]...)
			break
		}
	}
}

// URLs возвращает адреса входных баз в порядке добавления
func (s *ExporterSettings) URLs() []string {
	return append([]string(nil), s.urls...)
}

// Label возвращает метку вывода базы
func (s *ExporterSettings) Label(url string) string {
	return s.labels[url]
}

// Labels возвращает метки вывода по адресам
func (s *ExporterSettings) Labels() map[string]string {
	m := make(map[string]string, len(s.labels))
	for k, v := range s.labels {
		m[k] = v
	}
	return m
}

// OutputURL возвращает описание выходной базы
func (s *ExporterSettings) OutputURL(url string) (source.Descriptor, bool) {
	d, ok := s.outputURLs[url]
	return d, ok
}

// OutputURLs возвращает описания выходных баз по адресам
func (s *ExporterSettings) OutputURLs() map[string]source.Descriptor {
	m := make(map[string]source.Descriptor, len(s.outputURLs))
	for k, v := range s.outputURLs {
		m[k] = v
	}
	return m
}

func (s *ExporterSettings) setLabel(url, label string) {
	s.AddDatabase(url, label)
}

func (s *ExporterSettings) setOutputURL(url string, d *source.Descriptor) {
	if d == nil {
		delete(s.outputURLs, url)
		return
	}
	s.outputURLs[url] = *d
}
