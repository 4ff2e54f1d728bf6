package parser

import (
	"testing"

	"github.com/replica-lang/replica/internal/ast"
)

func parseOne(t *testing.T, source string) *ast.ActorDeclaration {
	t.Helper()

	program, errs := ParseSource(source, "test.rpl")
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(program.Actors) != 1 {
		t.Fatalf("got %d actors, want 1", len(program.Actors))
	}
	return program.Actors[0]
}

func TestParseActorDeclaration(t *testing.T) {
	actor := parseOne(t, `
actor Registry {
	var total: Int
	let label: String

	init() {
		total = 0
	}

	async func record(count: Int) {
		total = total + count
	}
}`)

	if actor.Name.Name != "Registry" {
		t.Errorf("actor name = %q, want Registry", actor.Name.Name)
	}
	if actor.Single {
		t.Error("actor should not be single")
	}
	if len(actor.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(actor.Fields))
	}
	if !actor.Fields[0].Mutable {
		t.Error("var field should be mutable")
	}
	if actor.Fields[1].Mutable {
		t.Error("let field should be immutable")
	}
	if actor.Init == nil {
		t.Fatal("initializer missing")
	}
	if actor.Init.Kind != ast.InitStandard {
		t.Errorf("init kind = %s, want standard", actor.Init.Kind)
	}
	if len(actor.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(actor.Methods))
	}
	if !actor.Methods[0].IsAsync {
		t.Error("method should be async")
	}
}

func TestParseSingleActorWithImmediateInit(t *testing.T) {
	actor := parseOne(t, `
single actor Cache {
	var hits: Int

	immediate init() {
		hits = 0
	}
}`)

	if !actor.Single {
		t.Error("actor should be single")
	}
	if actor.Init == nil || actor.Init.Kind != ast.InitImmediate {
		t.Error("immediate initializer not recognized")
	}
}

func TestParseSchedulingAnnotations(t *testing.T) {
	actor := parseOne(t, `
actor Scheduler {
	sequential async func logMessage(msg: String) {
	}

	priority(high) async func urgent() {
	}

	taskgroup async func gather() {
	}
}`)

	if !actor.Methods[0].SequentialKeyword {
		t.Error("sequential annotation not recognized")
	}
	if actor.Methods[1].PriorityName != "high" {
		t.Errorf("priority name = %q, want high", actor.Methods[1].PriorityName)
	}
	if !actor.Methods[2].TaskGroupKeyword {
		t.Error("taskgroup annotation not recognized")
	}
}

func TestParseMoveParameterAndOwnershipFields(t *testing.T) {
	actor := parseOne(t, `
actor Holder {
	var peer: shared Remote
	let snap: copy Remote

	async func consume(move job: Job) {
	}
}`)

	if actor.Fields[0].Ownership != ast.OwnShared {
		t.Errorf("field ownership = %s, want shared", actor.Fields[0].Ownership)
	}
	if actor.Fields[1].Ownership != ast.OwnCopy {
		t.Errorf("field ownership = %s, want copy", actor.Fields[1].Ownership)
	}
	if !actor.Methods[0].Params[0].Move {
		t.Error("move parameter not recognized")
	}
}

func TestParseOwnershipExpressions(t *testing.T) {
	actor := parseOne(t, `
actor Mover {
	async func run() {
		let a = Job()
		let b = move a
		let c = copy b
		let d = shared b
	}
}`)

	body := actor.Methods[0].Body.Statements
	if len(body) != 4 {
		t.Fatalf("got %d statements, want 4", len(body))
	}

	if _, ok := body[1].(*ast.LetStatement).Value.(*ast.MoveExpression); !ok {
		t.Errorf("statement 1 value = %T, want MoveExpression", body[1].(*ast.LetStatement).Value)
	}
	if _, ok := body[2].(*ast.LetStatement).Value.(*ast.CopyExpression); !ok {
		t.Errorf("statement 2 value = %T, want CopyExpression", body[2].(*ast.LetStatement).Value)
	}
	if _, ok := body[3].(*ast.LetStatement).Value.(*ast.SharedExpression); !ok {
		t.Errorf("statement 3 value = %T, want SharedExpression", body[3].(*ast.LetStatement).Value)
	}
}

func TestParseAwaitAndIfElse(t *testing.T) {
	actor := parseOne(t, `
actor Flow {
	async func branch(flag: Bool) -> Int {
		if flag {
			let r = await self.step()
			return r
		} else {
			return 0
		}
	}

	async func step() -> Int {
		return 1
	}
}`)

	method := actor.Methods[0]
	if method.ReturnType == nil || method.ReturnType.Name != "Int" {
		t.Fatalf("return type = %v, want Int", method.ReturnType)
	}

	ifStmt, ok := method.Body.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("statement 0 = %T, want IfStatement", method.Body.Statements[0])
	}
	if ifStmt.Else == nil {
		t.Error("else branch missing")
	}

	letStmt, ok := ifStmt.Then.Statements[0].(*ast.LetStatement)
	if !ok {
		t.Fatalf("then statement 0 = %T, want LetStatement", ifStmt.Then.Statements[0])
	}
	if _, ok := letStmt.Value.(*ast.AwaitExpression); !ok {
		t.Errorf("let value = %T, want AwaitExpression", letStmt.Value)
	}
}

func TestParseErrorsAreCollected(t *testing.T) {
	_, errs := ParseSource(`
actor Broken {
	var total Int
}

actor Fine {
	init() {
	}
}`, "test.rpl")

	if len(errs) == 0 {
		t.Fatal("expected parse errors")
	}

	// The second actor still parses despite errors in the first.
	program, _ := ParseSource(`
actor Broken {
	var total Int
}

actor Fine {
	init() {
	}
}`, "test.rpl")

	found := false
	for _, actor := range program.Actors {
		if actor.Name.Name == "Fine" {
			found = true
		}
	}
	if !found {
		t.Error("recovery failed: actor after error not parsed")
	}
}

func TestParseDuplicateInitializerReported(t *testing.T) {
	_, errs := ParseSource(`
actor Twice {
	init() {
	}
	init() {
	}
}`, "test.rpl")

	if len(errs) == 0 {
		t.Fatal("expected an error for the duplicate initializer")
	}
}

func TestParseOptionalAndArrayTypes(t *testing.T) {
	actor := parseOne(t, `
actor Typed {
	var items: [Int]
	var maybe: String?
}`)

	if actor.Fields[0].Type.Elem == nil || actor.Fields[0].Type.Elem.Name != "Int" {
		t.Errorf("array element type = %v", actor.Fields[0].Type.Elem)
	}
	if !actor.Fields[1].Type.Optional {
		t.Error("optional marker not recognized")
	}
}
