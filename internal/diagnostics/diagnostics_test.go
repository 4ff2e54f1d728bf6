package diagnostics

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/replica-lang/replica/internal/position"
)

func spanAt(line, column int) position.Span {
	return position.Span{
		Start: position.Position{Filename: "test.rpl", Line: line, Column: column, Offset: line*100 + column},
		End:   position.Position{Filename: "test.rpl", Line: line, Column: column + 1, Offset: line*100 + column + 1},
	}
}

func TestFindingsOrderedByPosition(t *testing.T) {
	report := NewReport()
	report.Addf(UseAfterMove, spanAt(5, 3), "second")
	report.Addf(DuplicateDeclaration, spanAt(1, 1), "first")
	report.Addf(CyclicTaskDependency, spanAt(9, 2), "third")

	findings := report.Findings()
	if len(findings) != 3 {
		t.Fatalf("got %d findings, want 3", len(findings))
	}

	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if findings[i].Message != want {
			t.Errorf("finding %d = %q, want %q", i, findings[i].Message, want)
		}
	}
}

func TestIdenticalFindingsDeduplicated(t *testing.T) {
	report := NewReport()
	span := spanAt(2, 4)
	report.Addf(UseAfterMove, span, "binding 'x' used after move")
	report.Addf(UseAfterMove, span, "binding 'x' used after move")
	report.Addf(UseAfterMove, span, "binding 'y' used after move")

	findings := report.Findings()
	if len(findings) != 2 {
		t.Fatalf("got %d findings after dedup, want 2", len(findings))
	}
}

func TestHasFindingsGatesGeneration(t *testing.T) {
	report := NewReport()
	if report.HasFindings() {
		t.Error("empty report should have no findings")
	}

	report.Addf(MutationRequiresAsync, spanAt(1, 1), "write outside async method")
	if !report.HasFindings() {
		t.Error("report with findings must gate")
	}
}

func TestMergePreservesAll(t *testing.T) {
	a := NewReport()
	a.Addf(UseAfterMove, spanAt(1, 1), "one")

	b := NewReport()
	b.Addf(UnknownPriorityLevel, spanAt(2, 1), "two")

	a.Merge(b)
	if a.Count() != 2 {
		t.Errorf("merged count = %d, want 2", a.Count())
	}
}

func TestFindingsOfKind(t *testing.T) {
	report := NewReport()
	report.Addf(UseAfterMove, spanAt(1, 1), "move error")
	report.Addf(IncompatibleActorPlacement, spanAt(2, 1), "placement error")

	moves := report.FindingsOfKind(UseAfterMove)
	if len(moves) != 1 || moves[0].Message != "move error" {
		t.Errorf("FindingsOfKind(UseAfterMove) = %v", moves)
	}
}

func TestFormatIncludesRelatedPositions(t *testing.T) {
	report := NewReport()
	report.Add(Finding{
		Kind:    UseAfterMove,
		Span:    spanAt(4, 2),
		Message: "binding 'job' used after move",
		Related: []RelatedInformation{
			{Message: "value moved here", Span: spanAt(3, 2)},
		},
	})

	out := report.Format(false)
	if !strings.Contains(out, "use-after-move") {
		t.Errorf("format missing error kind: %s", out)
	}
	if !strings.Contains(out, "value moved here") {
		t.Errorf("format missing related info: %s", out)
	}
	if !strings.Contains(out, "test.rpl:4:2") {
		t.Errorf("format missing source position: %s", out)
	}
}

func TestJSONEncoding(t *testing.T) {
	report := NewReport()
	report.Addf(CyclicTaskDependency, spanAt(7, 1), "cycle in gather")

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if !strings.Contains(string(data), `"cyclic-task-dependency"`) {
		t.Errorf("JSON missing kind code: %s", data)
	}
	if !strings.Contains(string(data), `"cycle in gather"`) {
		t.Errorf("JSON missing message: %s", data)
	}
}

func TestErrorKindCodes(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{DuplicateDeclaration, "duplicate-declaration"},
		{UnknownIdentifier, "unknown-identifier"},
		{IllegalSuspensionInImmediateInit, "illegal-suspension-in-immediate-init"},
		{MutationRequiresAsync, "mutation-requires-async"},
		{IncompatibleActorPlacement, "incompatible-actor-placement"},
		{UseAfterMove, "use-after-move"},
		{UseAfterPartialMove, "use-after-partial-move"},
		{CannotMoveSharedReference, "cannot-move-shared-reference"},
		{SchedulingRequiresAsync, "scheduling-requires-async"},
		{UnknownPriorityLevel, "unknown-priority-level"},
		{CyclicTaskDependency, "cyclic-task-dependency"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
