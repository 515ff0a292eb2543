package editor

import (
	"fmt"

	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/undo"
)

// Идентификаторы слияния команд; noMergeID - команда не сливается
const (
	noMergeID = -1

	idFixedTableName   = 1
	idMappingPositions = 2
	idOutLabel         = 3
	idOutputURL        = 4
)

// entryCommand заменяет маппинг целиком: before при Undo, after при Redo.
// Команды с одинаковым id и маппингом сливаются, если accepts.
type entryCommand struct {
	ed      *Editor
	name    string
	text    string
	kinds   []EventKind
	before  *specification.Entry
	after   *specification.Entry
	id      int
	accepts bool
	// once - команда принимает только одно слияние
	once bool
}

func (c *entryCommand) apply(e *specification.Entry) error {
	current := c.ed.spec.Entry(c.name)
	if current == nil {
		return fmt.Errorf("%w: %s", ErrNoMapping, c.name)
	}
	*current = *e.Clone()
	for _, k := range c.kinds {
		c.ed.emit(Event{Kind: k, Mapping: c.name})
	}
	return nil
}

func (c *entryCommand) Redo() error  { return c.apply(c.after) }
func (c *entryCommand) Undo()        { c.apply(c.before) }
func (c *entryCommand) Text() string { return c.text }
func (c *entryCommand) ID() int      { return c.id }

func (c *entryCommand) Obsolete() bool { return c.before.Equal(c.after) }

func (c *entryCommand) MergeWith(next undo.Command) bool {
	n, ok := next.(*entryCommand)
	if !ok || !c.accepts || n.name != c.name || n.id != c.id {
		return false
	}
	c.after = n.after
	for _, k := range n.kinds {
		if !containsKind(c.kinds, k) {
			c.kinds = append(c.kinds, k)
		}
	}
	if c.once {
		c.accepts = false
	}
	return true
}

func containsKind(kinds []EventKind, k EventKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

// addMappingCommand добавляет маппинг; Undo удаляет его
type addMappingCommand struct {
	ed    *Editor
	name  string
	entry *specification.Entry
	at    int
}

func (c *addMappingCommand) Redo() error {
	if err := c.ed.spec.Insert(c.at, c.name, c.entry.Clone()); err != nil {
		return err
	}
	c.ed.current = c.name
	c.ed.emit(Event{Kind: MappingAdded, Mapping: c.name})
	return nil
}

func (c *addMappingCommand) Undo() {
	if _, _, err := c.ed.spec.Remove(c.name); err == nil {
		c.ed.afterRemove(c.name)
		c.ed.emit(Event{Kind: MappingRemoved, Mapping: c.name})
	}
}

func (c *addMappingCommand) Text() string { return "new mapping" }

// deleteMappingCommand удаляет маппинг; Undo возвращает его на прежнее место
type deleteMappingCommand struct {
	ed    *Editor
	name  string
	entry *specification.Entry
	at    int
}

func (c *deleteMappingCommand) Redo() error {
	e, at, err := c.ed.spec.Remove(c.name)
	if err != nil {
		return err
	}
	c.entry, c.at = e, at
	c.ed.afterRemove(c.name)
	c.ed.emit(Event{Kind: MappingRemoved, Mapping: c.name})
	return nil
}

func (c *deleteMappingCommand) Undo() {
	if err := c.ed.spec.Insert(c.at, c.name, c.entry); err == nil {
		c.ed.current = c.name
		c.ed.emit(Event{Kind: MappingAdded, Mapping: c.name})
	}
}

func (c *deleteMappingCommand) Text() string { return "delete mapping" }

type renameMappingCommand struct {
	ed       *Editor
	old, new string
}

func (c *renameMappingCommand) rename(from, to string) error {
	if err := c.ed.spec.Rename(from, to); err != nil {
		return err
	}
	if c.ed.current == from {
		c.ed.current = to
	}
	c.ed.emit(Event{Kind: MappingRenamed, Mapping: to, OldName: from})
	return nil
}

func (c *renameMappingCommand) Redo() error  { return c.rename(c.old, c.new) }
func (c *renameMappingCommand) Undo()        { c.rename(c.new, c.old) }
func (c *renameMappingCommand) Text() string { return "rename mapping" }

type moveMappingCommand struct {
	ed       *Editor
	name     string
	from, to int
}

func (c *moveMappingCommand) move(to int) error {
	if err := c.ed.spec.Move(c.name, to); err != nil {
		return err
	}
	c.ed.emit(Event{Kind: MappingMoved, Mapping: c.name})
	return nil
}

func (c *moveMappingCommand) Redo() error  { return c.move(c.to) }
func (c *moveMappingCommand) Undo()        { c.move(c.from) }
func (c *moveMappingCommand) Text() string { return "move mapping" }

type outputFormatCommand struct {
	ed          *Editor
	old, format specification.OutputFormat
}

func (c *outputFormatCommand) set(f specification.OutputFormat) error {
	c.ed.spec.OutputFormat = f
	c.ed.emit(Event{Kind: OutputFormatChanged})
	return nil
}

func (c *outputFormatCommand) Redo() error  { return c.set(c.format) }
func (c *outputFormatCommand) Undo()        { c.set(c.old) }
func (c *outputFormatCommand) Text() string { return "change output format" }

// outLabelCommand меняет метку вывода базы; правки одной базы сливаются
type outLabelCommand struct {
	ed         *Editor
	url        string
	old, label string
}

func (c *outLabelCommand) set(label string) error {
	c.ed.settings.setLabel(c.url, label)
	c.ed.emit(Event{Kind: OutLabelChanged, URL: c.url})
	return nil
}

func (c *outLabelCommand) Redo() error    { return c.set(c.label) }
func (c *outLabelCommand) Undo()          { c.set(c.old) }
func (c *outLabelCommand) Text() string   { return "change out label" }
func (c *outLabelCommand) ID() int        { return idOutLabel }
func (c *outLabelCommand) Obsolete() bool { return c.old == c.label }

func (c *outLabelCommand) MergeWith(next undo.Command) bool {
	n, ok := next.(*outLabelCommand)
	if !ok || n.url != c.url {
		return false
	}
	c.label = n.label
	return true
}

// outputURLCommand меняет выходную базу; nil - описание удалено
type outputURLCommand struct {
	ed       *Editor
	url      string
	old, new *source.Descriptor
}

func (c *outputURLCommand) set(d *source.Descriptor) error {
	c.ed.settings.setOutputURL(c.url, d)
	c.ed.emit(Event{Kind: OutputURLChanged, URL: c.url})
	return nil
}

func (c *outputURLCommand) Redo() error  { return c.set(c.new) }
func (c *outputURLCommand) Undo()        { c.set(c.old) }
func (c *outputURLCommand) Text() string { return "change output URL" }
func (c *outputURLCommand) ID() int      { return idOutputURL }

func (c *outputURLCommand) Obsolete() bool {
	if c.old == nil || c.new == nil {
		return c.old == c.new
	}
	return *c.old == *c.new
}

func (c *outputURLCommand) MergeWith(next undo.Command) bool {
	n, ok := next.(*outputURLCommand)
	if !ok || n.url != c.url {
		return false
	}
	c.new = n.new
	return true
}
