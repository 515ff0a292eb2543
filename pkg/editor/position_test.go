package editor

import (
	"errors"
	"testing"

	"github.com/ruslano69/spine-export/pkg/mapping"
)

func positionsEqual(a, b []mapping.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParsePositionText(t *testing.T) {
	tests := []struct {
		text    string
		pivoted bool
		want    mapping.Position
		wantErr bool
	}{
		{"1", false, mapping.Column(0), false},
		{" 3 ", false, mapping.Column(2), false},
		{"2", true, mapping.PivotRow(2), false},
		{"table name", false, mapping.TableName, false},
		{"T", false, mapping.TableName, false},
		{"hidden", false, mapping.Hidden, false},
		{"column header", false, mapping.Header, false},
		{"0", false, mapping.Position{}, true},
		{"-1", false, mapping.Position{}, true},
		{"", false, mapping.Position{}, true},
		{"xyz", false, mapping.Position{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePositionText(tt.text, tt.pivoted)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPosition) {
				t.Errorf("ParsePositionText(%q) error = %v, want ErrInvalidPosition", tt.text, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePositionText(%q, %v) = %v, %v; want %v", tt.text, tt.pivoted, got, err, tt.want)
		}
	}
}

func TestPositionText_RoundTrip(t *testing.T) {
	for _, p := range []mapping.Position{mapping.Column(0), mapping.Column(4), mapping.TableName, mapping.Hidden, mapping.Header} {
		got, err := ParsePositionText(PositionText(p), false)
		if err != nil || got != p {
			t.Errorf("round trip %v = %v, %v", p, got, err)
		}
	}
	if got, _ := ParsePositionText(PositionText(mapping.PivotRow(3)), true); got != mapping.PivotRow(3) {
		t.Errorf("pivot round trip = %v", got)
	}
}

func TestTogglePivot(t *testing.T) {
	if got := TogglePivot(mapping.Column(0), true); got != mapping.PivotRow(1) {
		t.Errorf("TogglePivot(col 0, true) = %v", got)
	}
	if got := TogglePivot(mapping.PivotRow(2), false); got != mapping.Column(1) {
		t.Errorf("TogglePivot(pivot 2, false) = %v", got)
	}
	if got := TogglePivot(mapping.Hidden, true); got != mapping.Hidden {
		t.Errorf("TogglePivot(hidden) = %v", got)
	}
}

func TestProposePositions(t *testing.T) {
	tests := []struct {
		name      string
		positions []mapping.Position
		row       int
		pos       mapping.Position
		want      []mapping.Position
	}{
		{
			// Имя таблицы переходит к строке 1, прежний владелец получает ее колонку
			name:      "table name swap",
			positions: []mapping.Position{mapping.TableName, mapping.Column(0), mapping.Column(1)},
			row:       1,
			pos:       mapping.TableName,
			want:      []mapping.Position{mapping.Column(0), mapping.TableName, mapping.Column(1)},
		},
		{
			name:      "column collision pushes outward",
			positions: []mapping.Position{mapping.Column(0), mapping.Column(1), mapping.Column(2)},
			row:       2,
			pos:       mapping.Column(1),
			want:      []mapping.Position{mapping.Column(0), mapping.Column(2), mapping.Column(1)},
		},
		{
			name:      "cascade",
			positions: []mapping.Position{mapping.Column(0), mapping.Column(1), mapping.Column(2), mapping.Hidden},
			row:       3,
			pos:       mapping.Column(0),
			want:      []mapping.Position{mapping.Column(1), mapping.Column(2), mapping.Column(3), mapping.Column(0)},
		},
		{
			name:      "pivot rows push outward",
			positions: []mapping.Position{mapping.PivotRow(1), mapping.Column(0), mapping.Column(1)},
			row:       1,
			pos:       mapping.PivotRow(1),
			want:      []mapping.Position{mapping.PivotRow(2), mapping.PivotRow(1), mapping.Column(1)},
		},
		{
			// Лист становится pivot: прочие pivot узлы уходят в свободные колонки
			name:      "pivoted leaf",
			positions: []mapping.Position{mapping.Column(0), mapping.PivotRow(1), mapping.Column(1)},
			row:       2,
			pos:       mapping.PivotRow(1),
			want:      []mapping.Position{mapping.Column(0), mapping.Column(2), mapping.PivotRow(1)},
		},
		{
			name:      "header swap",
			positions: []mapping.Position{mapping.Column(0), mapping.Header, mapping.Column(1), mapping.Column(2)},
			row:       2,
			pos:       mapping.Header,
			want:      []mapping.Position{mapping.Column(0), mapping.Column(1), mapping.Header, mapping.Column(2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]mapping.Position(nil), tt.positions...)
			got := ProposePositions(tt.positions, tt.row, tt.pos, len(tt.positions)-1)
			if !positionsEqual(got, tt.want) {
				t.Errorf("ProposePositions() = %v, want %v", got, tt.want)
			}
			if !positionsEqual(tt.positions, before) {
				t.Errorf("input modified: %v", tt.positions)
			}
			// Повторное применение не меняет результат
			again := ProposePositions(got, tt.row, tt.pos, len(got)-1)
			if !positionsEqual(again, got) {
				t.Errorf("second application = %v, want %v", again, got)
			}
			assertUniquePositions(t, got)
		})
	}
}

func assertUniquePositions(t *testing.T, positions []mapping.Position) {
	t.Helper()
	seen := make(map[mapping.Position]bool)
	for _, p := range positions {
		if p == mapping.Hidden {
			continue
		}
		if seen[p] {
			t.Errorf("duplicate position %v in %v", p, positions)
		}
		seen[p] = true
	}
}
