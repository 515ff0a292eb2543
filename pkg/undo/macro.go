package undo

import "fmt"

// macro - составная команда из нескольких дочерних
type macro struct {
	text     string
	children []Command
	aborted  bool
}

func (m *macro) Redo() error {
	for i, c := range m.children {
		if err := c.Redo(); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.children[j].Undo()
			}
			return err
		}
	}
	return nil
}

func (m *macro) Undo() {
	for i := len(m.children) - 1; i >= 0; i-- {
		m.children[i].Undo()
	}
}

func (m *macro) Text() string { return m.text }

// Children возвращает команды макроса
func (m *macro) Children() []Command { return m.children }

func (m *macro) rollback() {
	m.Undo()
	m.children = nil
	m.aborted = true
}

// BeginMacro открывает макрос. Макросы могут быть вложенными.
func (s *Stack) BeginMacro(text string) {
	s.macros = append(s.macros, &macro{text: text})
}

// InMacro - открыт хотя бы один макрос
func (s *Stack) InMacro() bool { return len(s.macros) > 0 }

func (s *Stack) openMacro() *macro {
	if len(s.macros) == 0 {
		return nil
	}
	return s.macros[len(s.macros)-1]
}

func (s *Stack) pushIntoMacro(m *macro, cmd Command) error {
	if m.aborted {
		return ErrMacroAborted
	}
	if err := cmd.Redo(); err != nil {
		// Откатываются все открытые макросы, начиная с внутреннего
		for i := len(s.macros) - 1; i >= 0; i-- {
			s.macros[i].rollback()
		}
		return fmt.Errorf("%w: %s: %v", ErrMacroAborted, cmd.Text(), err)
	}
	if n := len(m.children); n > 0 {
		top := entry{cmd: m.children[n-1]}
		if s.tryMerge(&top, cmd) {
			if o, ok := top.cmd.(Obsoleter); ok && o.Obsolete() {
				m.children = m.children[:n-1]
			}
			return nil
		}
	}
	m.children = append(m.children, cmd)
	return nil
}

// EndMacro закрывает макрос. Закрытый внешний макрос становится одним шагом отмены.
// Для откаченного макроса возвращает ErrMacroAborted.
func (s *Stack) EndMacro() error {
	m := s.openMacro()
	if m == nil {
		return ErrNoMacro
	}
	s.macros = s.macros[:len(s.macros)-1]
	if m.aborted {
		return ErrMacroAborted
	}
	if len(m.children) == 0 {
		return nil
	}
	if parent := s.openMacro(); parent != nil {
		parent.children = append(parent.children, m)
		return nil
	}
	s.pushApplied(m)
	return nil
}
