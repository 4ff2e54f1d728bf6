package sema

import (
	"testing"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
	"github.com/replica-lang/replica/internal/parser"
)

func parseProgram(t *testing.T, source string) *ast.Program {
	t.Helper()

	program, errs := parser.ParseSource(source, "test.rpl")
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return program
}

func buildTable(t *testing.T, source string) (*DeclTable, *diagnostics.Report) {
	t.Helper()

	report := diagnostics.NewReport()
	table := BuildDeclTable(parseProgram(t, source), report)
	return table, report
}

func requireKinds(t *testing.T, report *diagnostics.Report, kinds ...diagnostics.ErrorKind) {
	t.Helper()

	findings := report.Findings()
	if len(findings) != len(kinds) {
		t.Fatalf("got %d findings, want %d: %v", len(findings), len(kinds), findings)
	}
	for i, kind := range kinds {
		if findings[i].Kind != kind {
			t.Errorf("finding %d kind = %s, want %s: %s",
				i, findings[i].Kind, kind, findings[i].Message)
		}
	}
}

func TestBuildDeclTableResolvesActors(t *testing.T) {
	table, report := buildTable(t, `
actor Worker {
	var count: Int

	async func bump() {
		count = count + 1
	}
}

actor Pool {
	var primary: Worker
}`)

	if report.HasFindings() {
		t.Fatalf("unexpected findings: %s", report.Format(false))
	}
	if _, ok := table.Actor("Worker"); !ok {
		t.Error("Worker not in table")
	}
	if _, ok := table.Method("Worker", "bump"); !ok {
		t.Error("Worker.bump not in table")
	}
	if field, ok := table.Field("Pool", "primary"); !ok || field.Type.Name != "Worker" {
		t.Error("Pool.primary not resolved")
	}
}

func TestDuplicateActorSkipsSecond(t *testing.T) {
	table, report := buildTable(t, `
actor Store {
	var a: Int
}

actor Store {
	var b: Int
}`)

	requireKinds(t, report, diagnostics.DuplicateDeclaration)

	finding := report.Findings()[0]
	if len(finding.Related) == 0 {
		t.Error("duplicate finding should reference the prior declaration")
	}
	if table.Skipped("Store") {
		t.Error("first declaration of Store must stay in the table")
	}
	if _, ok := table.Field("Store", "a"); !ok {
		t.Error("first Store declaration should win")
	}
}

func TestDuplicateFieldAndMethodReported(t *testing.T) {
	_, report := buildTable(t, `
actor Twice {
	var x: Int
	var x: Int

	async func go() {
	}

	async func go() {
	}
}`)

	requireKinds(t, report,
		diagnostics.DuplicateDeclaration,
		diagnostics.DuplicateDeclaration)
}

func TestUnknownTypeReferenceReported(t *testing.T) {
	_, report := buildTable(t, `
actor Owner {
	var w: Widget
}`)

	requireKinds(t, report, diagnostics.UnknownIdentifier)
}

func TestBuiltinTypesAreNotActorReferences(t *testing.T) {
	table, report := buildTable(t, `
actor Plain {
	var n: Int
	var f: Float
	var s: String
	var b: Bool
}`)

	if report.HasFindings() {
		t.Fatalf("builtin types flagged: %s", report.Format(false))
	}
	field, _ := table.Field("Plain", "n")
	if table.IsActorType(field.Type) {
		t.Error("Int must not classify as an actor type")
	}
}

func TestUndefinedVariableReported(t *testing.T) {
	_, report := buildTable(t, `
actor Calc {
	async func run() -> Int {
		let x = ghost + 1
		return x
	}
}`)

	requireKinds(t, report, diagnostics.UnknownIdentifier)

	finding := report.Findings()[0]
	if finding.Message != "undefined variable 'ghost'" {
		t.Errorf("message = %q", finding.Message)
	}
}

func TestBranchLocalBindingOutOfScopeAfterJoin(t *testing.T) {
	_, report := buildTable(t, `
single actor Job {
}

single actor Runner {
	async func run(flag: Bool) {
		if flag {
			let t = Job()
		}
		let u = move t
	}
}`)

	requireKinds(t, report, diagnostics.UnknownIdentifier)
}

func TestUnknownConstructorReported(t *testing.T) {
	_, report := buildTable(t, `
actor Spawner {
	async func spawn() {
		let g = Ghost()
	}
}`)

	requireKinds(t, report, diagnostics.UnknownIdentifier)
}

func TestUnknownSelfFieldAssignmentReported(t *testing.T) {
	_, report := buildTable(t, `
actor Counter {
	var count: Int

	async func bump() {
		self.total = 1
	}
}`)

	requireKinds(t, report, diagnostics.UnknownIdentifier)
}

func TestFieldsParamsAndLocalsResolve(t *testing.T) {
	_, report := buildTable(t, `
actor Counter {
	var count: Int

	async func bump(n: Int) {
		let next = count + n
		count = next
	}
}`)

	if report.HasFindings() {
		t.Fatalf("declared names flagged: %s", report.Format(false))
	}
}

func TestActorsReturnsDeclarationOrder(t *testing.T) {
	table, _ := buildTable(t, `
actor Zeta {
}

actor Alpha {
}

actor Mid {
}`)

	actors := table.Actors()
	want := []string{"Zeta", "Alpha", "Mid"}
	if len(actors) != len(want) {
		t.Fatalf("got %d actors, want %d", len(actors), len(want))
	}
	for i, name := range want {
		if actors[i].Name.Name != name {
			t.Errorf("actor %d = %s, want %s", i, actors[i].Name.Name, name)
		}
	}
}
