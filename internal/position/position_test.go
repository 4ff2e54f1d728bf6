package position

import "testing"

func TestPositionString(t *testing.T) {
	pos := Position{Filename: "/tmp/app.rpl", Line: 3, Column: 7, Offset: 42}

	if got := pos.String(); got != "app.rpl:3:7" {
		t.Errorf("Position.String() = %q, want %q", got, "app.rpl:3:7")
	}

	bare := Position{Line: 1, Column: 2, Offset: 1}
	if got := bare.String(); got != "1:2" {
		t.Errorf("Position.String() = %q, want %q", got, "1:2")
	}
}

func TestPositionOrdering(t *testing.T) {
	a := Position{Filename: "a.rpl", Line: 1, Column: 1, Offset: 0}
	b := Position{Filename: "a.rpl", Line: 2, Column: 1, Offset: 10}

	if !a.Before(b) {
		t.Error("a should come before b")
	}
	if !b.After(a) {
		t.Error("b should come after a")
	}
}

func TestSpanValidity(t *testing.T) {
	valid := Span{
		Start: Position{Filename: "a.rpl", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.rpl", Line: 1, Column: 5, Offset: 4},
	}
	if !valid.IsValid() {
		t.Error("span should be valid")
	}
	if valid.Length() != 4 {
		t.Errorf("Length() = %d, want 4", valid.Length())
	}

	crossFile := Span{
		Start: Position{Filename: "a.rpl", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "b.rpl", Line: 1, Column: 5, Offset: 4},
	}
	if crossFile.IsValid() {
		t.Error("cross-file span should be invalid")
	}
}

func TestSpanUnion(t *testing.T) {
	first := Span{
		Start: Position{Filename: "a.rpl", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.rpl", Line: 1, Column: 4, Offset: 3},
	}
	second := Span{
		Start: Position{Filename: "a.rpl", Line: 2, Column: 1, Offset: 10},
		End:   Position{Filename: "a.rpl", Line: 2, Column: 6, Offset: 15},
	}

	union := first.Union(second)
	if union.Start != first.Start {
		t.Errorf("union start = %v, want %v", union.Start, first.Start)
	}
	if union.End != second.End {
		t.Errorf("union end = %v, want %v", union.End, second.End)
	}
}

func TestSourceFilePositionFromOffset(t *testing.T) {
	sf := NewSourceFile("main.rpl", "actor A {\n}\n")

	pos := sf.PositionFromOffset(10)
	if pos.Line != 2 || pos.Column != 1 {
		t.Errorf("PositionFromOffset(10) = %d:%d, want 2:1", pos.Line, pos.Column)
	}

	if got := sf.GetLine(1); got != "actor A {" {
		t.Errorf("GetLine(1) = %q", got)
	}
}

func TestSourceMap(t *testing.T) {
	sm := NewSourceMap()
	sm.AddFile("one.rpl", "actor One {}")

	span := Span{
		Start: Position{Filename: "one.rpl", Line: 1, Column: 7, Offset: 6},
		End:   Position{Filename: "one.rpl", Line: 1, Column: 10, Offset: 9},
	}
	if got := sm.GetSpanText(span); got != "One" {
		t.Errorf("GetSpanText = %q, want %q", got, "One")
	}

	if sm.GetFile("missing.rpl") != nil {
		t.Error("GetFile for unknown file should be nil")
	}
}
