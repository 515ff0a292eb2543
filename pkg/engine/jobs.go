package engine

import (
	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/specification"
)

// JobFor готовит задание для маппинга name; таблица по умолчанию
// называется по маппингу. Цепочка копируется, так что задание можно
// выполнять в другой горутине.
func JobFor(name string, e *specification.Entry) Job {
	return Job{
		Name:               name,
		Root:               mapping.Clone(e.Root),
		AlwaysExportHeader: e.AlwaysExportHeader,
		GroupFn:            e.GroupFn,
		DefaultTable:       name,
		HighlightDimension: e.HighlightDimension,
	}
}

// JobsFor возвращает задания для включенных маппингов в порядке записи.
// Для CSV и Excel таблица без узла TableName остается безымянной.
func JobsFor(spec *specification.Specification) []Job {
	plan := spec.WritePlan()
	jobs := make([]Job, 0, len(plan))
	for _, item := range plan {
		job := JobFor(item.Name, item.Entry)
		if !spec.OutputFormat.NamesTablesByMapping() {
			job.DefaultTable = ""
		}
		jobs = append(jobs, job)
	}
	return jobs
}
