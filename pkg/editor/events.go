package editor

// EventKind - вид изменения спецификации
type EventKind int

const (
	MappingAdded EventKind = iota
	MappingRemoved
	MappingRenamed
	MappingMoved
	RootChanged
	EnabledChanged
	TypeChanged
	AlwaysExportHeaderChanged
	FixedTableNameChanged
	GroupFunctionChanged
	HighlightDimensionChanged
	OutputFormatChanged
	OutLabelChanged
	OutputURLChanged
)

var eventNames = [...]string{
	MappingAdded:              "mapping added",
	MappingRemoved:            "mapping removed",
	MappingRenamed:            "mapping renamed",
	MappingMoved:              "mapping moved",
	RootChanged:               "root changed",
	EnabledChanged:            "enabled changed",
	TypeChanged:               "type changed",
	AlwaysExportHeaderChanged: "always export header changed",
	FixedTableNameChanged:     "fixed table name changed",
	GroupFunctionChanged:      "group function changed",
	HighlightDimensionChanged: "highlight dimension changed",
	OutputFormatChanged:       "output format changed",
	OutLabelChanged:           "out label changed",
	OutputURLChanged:          "output URL changed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event - уведомление об изменении
type Event struct {
	Kind EventKind
	// Mapping - имя маппинга (для переименования - новое имя)
	Mapping string
	// OldName - прежнее имя при переименовании
	OldName string
	// URL - адрес базы для событий настроек вывода
	URL string
}

// Listener получает события редактора
type Listener func(Event)

// Subscribe добавляет слушателя и возвращает функцию отписки
func (e *Editor) Subscribe(l Listener) (unsubscribe func()) {
	e.nextListener++
	id := e.nextListener
	e.listeners[id] = l
	e.listenerOrder = append(e.listenerOrder, id)
	return func() {
		delete(e.listeners, id)
		for i, x := range e.listenerOrder {
			if x == id {
				e.listenerOrder = append(e.listenerOrder[:i], e.listenerOrder[i+1:]...)
				break
			}
		}
	}
}

func (e *Editor) emit(ev Event) {
	for _, id := range e.listenerOrder {
		if l := e.listeners[id]; l != nil {
			l(ev)
		}
	}
}
