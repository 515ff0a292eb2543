package undo

import (
	"errors"
	"testing"
)

// setText - правка текстового поля, сливается с правками того же поля
type setText struct {
	target   *string
	old, new string
	id       int
}

func edit(target *string, value string, id int) *setText {
	return &setText{target: target, old: *target, new: value, id: id}
}

func (c *setText) Redo() error    { *c.target = c.new; return nil }
func (c *setText) Undo()          { *c.target = c.old }
func (c *setText) Text() string   { return "set text" }
func (c *setText) ID() int        { return c.id }
func (c *setText) Obsolete() bool { return c.old == c.new }

func (c *setText) MergeWith(next Command) bool {
	n, ok := next.(*setText)
	if !ok || n.target != c.target {
		return false
	}
	c.new = n.new
	return true
}

// appendItem - немергируемая команда
type appendItem struct {
	list *[]int
	item int
	fail bool
}

func (c *appendItem) Redo() error {
	if c.fail {
		return errors.New("rejected")
	}
	*c.list = append(*c.list, c.item)
	return nil
}

func (c *appendItem) Undo()        { *c.list = (*c.list)[:len(*c.list)-1] }
func (c *appendItem) Text() string { return "append" }

func TestStack_MergeAndSeal(t *testing.T) {
	s := NewStack(0)
	name := ""

	// Быстрый ввод "abc" - один шаг отмены
	for _, v := range []string{"a", "ab", "abc"} {
		if err := s.Push(edit(&name, v, 1)); err != nil {
			t.Fatalf("Push(%q) error = %v", v, err)
		}
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
	if name != "abc" {
		t.Fatalf("name = %q, want abc", name)
	}

	// Потеря фокуса запечатывает команду
	if err := s.Push(Seal(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(edit(&name, "abcd", 1)); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 2 {
		t.Fatalf("Count() after seal = %d, want 2", s.Count())
	}

	s.Undo()
	if name != "abc" {
		t.Errorf("after first undo name = %q, want abc", name)
	}
	s.Undo()
	if name != "" {
		t.Errorf("after second undo name = %q, want empty", name)
	}
	if err := s.Redo(); err != nil {
		t.Fatal(err)
	}
	if name != "abc" {
		t.Errorf("after redo name = %q, want abc", name)
	}
}

func TestStack_DifferentIDsDoNotMerge(t *testing.T) {
	s := NewStack(0)
	a, b := "", ""
	s.Push(edit(&a, "x", 1))
	s.Push(edit(&b, "y", 2))
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestStack_MergeObsoletion(t *testing.T) {
	s := NewStack(0)
	name := ""
	s.Push(edit(&name, "x", 1))
	// Возврат к исходному значению делает команду пустой
	s.Push(edit(&name, "", 1))
	if s.Count() != 0 || s.Index() != 0 {
		t.Errorf("Count() = %d, Index() = %d, want empty stack", s.Count(), s.Index())
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true for empty stack")
	}
}

func TestStack_InverseLaw(t *testing.T) {
	s := NewStack(0)
	var list []int
	name := "start"

	s.Push(&appendItem{list: &list, item: 1})
	s.Push(edit(&name, "one", 7))
	s.Push(&appendItem{list: &list, item: 2})
	s.Push(edit(&name, "two", 7))
	s.Push(&appendItem{list: &list, item: 3})

	for s.CanUndo() {
		s.Undo()
	}
	if len(list) != 0 || name != "start" {
		t.Errorf("after undo all: list = %v, name = %q", list, name)
	}

	for s.CanRedo() {
		if err := s.Redo(); err != nil {
			t.Fatal(err)
		}
	}
	if len(list) != 3 || name != "two" {
		t.Errorf("after redo all: list = %v, name = %q", list, name)
	}
}

func TestStack_PushDiscardsRedoTail(t *testing.T) {
	s := NewStack(0)
	var list []int
	s.Push(&appendItem{list: &list, item: 1})
	s.Push(&appendItem{list: &list, item: 2})
	s.Undo()
	s.Push(&appendItem{list: &list, item: 3})

	if s.CanRedo() {
		t.Error("CanRedo() = true after push")
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestStack_FailedPushNotRecorded(t *testing.T) {
	s := NewStack(0)
	var list []int
	if err := s.Push(&appendItem{list: &list, fail: true}); err == nil {
		t.Fatal("Push() error = nil, want failure")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestStack_Limit(t *testing.T) {
	s := NewStack(2)
	var list []int
	for i := 1; i <= 3; i++ {
		s.Push(&appendItem{list: &list, item: i})
	}
	if s.Count() != 2 || s.Index() != 2 {
		t.Errorf("Count() = %d, Index() = %d, want 2, 2", s.Count(), s.Index())
	}
	for s.CanUndo() {
		s.Undo()
	}
	// Первая команда вытеснена и не отменяется
	if len(list) != 1 || list[0] != 1 {
		t.Errorf("list = %v, want [1]", list)
	}
}

func TestStack_CleanState(t *testing.T) {
	s := NewStack(0)
	var list []int
	if !s.IsClean() {
		t.Error("new stack must be clean")
	}
	s.Push(&appendItem{list: &list, item: 1})
	s.SetClean()
	s.Push(&appendItem{list: &list, item: 2})
	if s.IsClean() {
		t.Error("IsClean() = true after push")
	}
	s.Undo()
	if !s.IsClean() {
		t.Error("IsClean() = false after undo to saved state")
	}
	s.Undo()
	s.Push(&appendItem{list: &list, item: 3})
	s.Undo()
	s.Redo()
	if s.IsClean() {
		t.Error("clean state must be unreachable after redo tail was discarded")
	}
}

func TestStack_IndexChanged(t *testing.T) {
	s := NewStack(0)
	var indexes []int
	s.OnIndexChanged(func(i int) { indexes = append(indexes, i) })
	var list []int
	s.Push(&appendItem{list: &list, item: 1})
	s.Push(&appendItem{list: &list, item: 2})
	s.Undo()
	want := []int{1, 2, 1}
	if len(indexes) != len(want) {
		t.Fatalf("indexes = %v, want %v", indexes, want)
	}
	for i := range want {
		if indexes[i] != want[i] {
			t.Errorf("indexes = %v, want %v", indexes, want)
		}
	}
}

func TestStack_Macro(t *testing.T) {
	s := NewStack(0)
	var list []int
	name := ""

	s.BeginMacro("batch")
	s.Push(&appendItem{list: &list, item: 1})
	s.BeginMacro("inner")
	s.Push(edit(&name, "x", 1))
	s.Push(edit(&name, "xy", 1))
	if err := s.EndMacro(); err != nil {
		t.Fatal(err)
	}
	s.Push(&appendItem{list: &list, item: 2})
	if s.CanUndo() {
		t.Error("CanUndo() = true inside macro")
	}
	if err := s.EndMacro(); err != nil {
		t.Fatal(err)
	}

	if s.Count() != 1 || s.UndoText() != "batch" {
		t.Fatalf("Count() = %d, UndoText() = %q, want one batch", s.Count(), s.UndoText())
	}
	s.Undo()
	if len(list) != 0 || name != "" {
		t.Errorf("after undo: list = %v, name = %q", list, name)
	}
	if err := s.Redo(); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || name != "xy" {
		t.Errorf("after redo: list = %v, name = %q", list, name)
	}
}

func TestStack_MacroAborted(t *testing.T) {
	s := NewStack(0)
	var list []int

	s.BeginMacro("outer")
	s.Push(&appendItem{list: &list, item: 1})
	s.BeginMacro("inner")
	s.Push(&appendItem{list: &list, item: 2})
	err := s.Push(&appendItem{list: &list, fail: true})
	if !errors.Is(err, ErrMacroAborted) {
		t.Fatalf("Push() error = %v, want ErrMacroAborted", err)
	}
	if len(list) != 0 {
		t.Errorf("list = %v, want rolled back", list)
	}
	if err := s.Push(&appendItem{list: &list, item: 3}); !errors.Is(err, ErrMacroAborted) {
		t.Errorf("Push() into aborted macro = %v, want ErrMacroAborted", err)
	}
	if err := s.EndMacro(); !errors.Is(err, ErrMacroAborted) {
		t.Errorf("EndMacro(inner) = %v, want ErrMacroAborted", err)
	}
	if err := s.EndMacro(); !errors.Is(err, ErrMacroAborted) {
		t.Errorf("EndMacro(outer) = %v, want ErrMacroAborted", err)
	}
	if s.Count() != 0 || s.InMacro() {
		t.Errorf("Count() = %d, InMacro() = %v", s.Count(), s.InMacro())
	}
	if err := s.EndMacro(); !errors.Is(err, ErrNoMacro) {
		t.Errorf("EndMacro() without macro = %v, want ErrNoMacro", err)
	}
}
