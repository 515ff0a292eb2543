// Package undo реализует ограниченный стек отмены со слиянием команд.
//
// Команда изменяет модель в Redo и возвращает ее в Undo. Команды с одинаковым ID
// могут сливаться: так серия нажатий клавиш становится одним шагом отмены.
// SealCommand запечатывает последнюю команду с заданным ID, и следующая
// правка начинает новый шаг.
//
// Стек не потокобезопасен: им владеет одна горутина редактора.
package undo

import (
	"errors"
	"fmt"
)

// DefaultLimit - размер стека по умолчанию
const DefaultLimit = 100

var (
	// ErrMacroAborted - команда внутри макроса завершилась ошибкой, макрос откачен
	ErrMacroAborted = errors.New("macro aborted")
	// ErrNoMacro - EndMacro без BeginMacro
	ErrNoMacro = errors.New("no macro in progress")
)

// Command - отменяемое действие
type Command interface {
	// Redo применяет действие. Ошибка означает, что модель не изменилась.
	Redo() error
	Undo()
	Text() string
}

// Identified - команда, которая может сливаться с командами того же ID
type Identified interface {
	ID() int
}

// Merger - команда поглощает следующую команду того же ID
type Merger interface {
	MergeWith(next Command) bool
}

// Obsoleter - команда после слияния может стать пустой
type Obsoleter interface {
	Obsolete() bool
}

type entry struct {
	cmd    Command
	sealed bool
}

// Stack - стек отмены
type Stack struct {
	entries []entry
	index   int // число примененных команд
	limit   int
	clean   int // индекс чистого состояния или -1

	macros []*macro

	onIndexChanged func(index int)
}

// NewStack создает стек. limit <= 0 - DefaultLimit.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{limit: limit}
}

// OnIndexChanged задает обработчик изменения индекса
func (s *Stack) OnIndexChanged(fn func(index int)) {
	s.onIndexChanged = fn
}

func (s *Stack) notify() {
	if s.onIndexChanged != nil {
		s.onIndexChanged(s.index)
	}
}

// Push применяет команду и кладет ее в стек.
// Внутри макроса команда становится частью макроса.
func (s *Stack) Push(cmd Command) error {
	if seal, ok := cmd.(sealCommand); ok {
		s.SealCommand(seal.id)
		return nil
	}
	if m := s.openMacro(); m != nil {
		return s.pushIntoMacro(m, cmd)
	}
	if err := cmd.Redo(); err != nil {
		return err
	}
	s.pushApplied(cmd)
	return nil
}

// pushApplied кладет уже примененную команду
func (s *Stack) pushApplied(cmd Command) {
	if s.index < len(s.entries) {
		s.entries = s.entries[:s.index]
		if s.clean > s.index {
			s.clean = -1
		}
	}

	if s.index > 0 && s.tryMerge(&s.entries[s.index-1], cmd) {
		if s.clean == s.index {
			s.clean = -1
		}
		if o, ok := s.entries[s.index-1].cmd.(Obsoleter); ok && o.Obsolete() {
			s.entries = s.entries[:s.index-1]
			s.index--
		}
		s.notify()
		return
	}

	s.entries = append(s.entries, entry{cmd: cmd})
	s.index++
	if len(s.entries) > s.limit {
		drop := len(s.entries) - s.limit
		s.entries = append([]entry(nil), s.entries[drop:]...)
		s.index -= drop
		if s.clean >= 0 {
			s.clean -= drop
			if s.clean < 0 {
				s.clean = -1
			}
		}
	}
	s.notify()
}

func (s *Stack) tryMerge(top *entry, next Command) bool {
	if top.sealed {
		return false
	}
	a, ok := top.cmd.(Identified)
	if !ok || a.ID() < 0 {
		return false
	}
	b, ok := next.(Identified)
	if !ok || a.ID() != b.ID() {
		return false
	}
	m, ok := top.cmd.(Merger)
	return ok && m.MergeWith(next)
}

// SealCommand запечатывает последнюю примененную команду с данным ID
func (s *Stack) SealCommand(id int) {
	for i := s.index - 1; i >= 0; i-- {
		if c, ok := s.entries[i].cmd.(Identified); ok && c.ID() == id {
			s.entries[i].sealed = true
			return
		}
	}
}

// Seal возвращает команду, которая при Push запечатывает команду с данным ID
func Seal(id int) Command {
	return sealCommand{id: id}
}

type sealCommand struct{ id int }

func (sealCommand) Redo() error  { return nil }
func (sealCommand) Undo()        {}
func (sealCommand) Text() string { return "" }

// Undo отменяет последнюю команду. false - отменять нечего.
func (s *Stack) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.index--
	s.entries[s.index].cmd.Undo()
	s.notify()
	return true
}

// Redo повторяет отмененную команду
func (s *Stack) Redo() error {
	if !s.CanRedo() {
		return nil
	}
	if err := s.entries[s.index].cmd.Redo(); err != nil {
		return fmt.Errorf("redo %q: %w", s.entries[s.index].cmd.Text(), err)
	}
	s.index++
	s.notify()
	return nil
}

// CanUndo - есть примененные команды и нет открытого макроса
func (s *Stack) CanUndo() bool { return s.index > 0 && len(s.macros) == 0 }

// CanRedo - есть отмененные команды и нет открытого макроса
func (s *Stack) CanRedo() bool { return s.index < len(s.entries) && len(s.macros) == 0 }

// UndoText - текст команды, которая будет отменена
func (s *Stack) UndoText() string {
	if s.index == 0 {
		return ""
	}
	return s.entries[s.index-1].cmd.Text()
}

// RedoText - текст команды, которая будет повторена
func (s *Stack) RedoText() string {
	if s.index >= len(s.entries) {
		return ""
	}
	return s.entries[s.index].cmd.Text()
}

// Count - число команд в стеке
func (s *Stack) Count() int { return len(s.entries) }

// Index - число примененных команд
func (s *Stack) Index() int { return s.index }

// Limit - максимальное число команд
func (s *Stack) Limit() int { return s.limit }

// Command возвращает команду по индексу
func (s *Stack) Command(i int) Command {
	if i < 0 || i >= len(s.entries) {
		return nil
	}
	return s.entries[i].cmd
}

// SetClean отмечает текущее состояние как сохраненное
func (s *Stack) SetClean() { s.clean = s.index }

// IsClean - текущее состояние совпадает с сохраненным
func (s *Stack) IsClean() bool { return s.clean == s.index }

// Clear удаляет все команды и открытые макросы без отмены
func (s *Stack) Clear() {
	s.entries = nil
	s.index = 0
	s.clean = 0
	s.macros = nil
	s.notify()
}
