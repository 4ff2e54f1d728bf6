// Package sema implements the Replica semantic verifier: the ownership
// and concurrency analysis that gates code generation.
//
// The verifier runs in a fixed order over one immutable syntax tree:
// the declaration table is built first, then actor classification and
// scheduling classification run independently, and the ownership tracker
// runs last because the legality of ownership transitions depends on
// each actor's resolved placement kind. All findings are collected into
// a single diagnostics report; nothing is fail-fast.
package sema

import (
	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
)

// Builtin value types recognized by the declaration table. Any other
// named type must resolve to a declared actor.
var builtinTypes = map[string]bool{
	"Int":    true,
	"Float":  true,
	"String": true,
	"Bool":   true,
}

// DeclTable is the flat registry of actor, method and field declarations
// for one program. It is a pure function of the input tree: building it
// has no side effects beyond the findings it records.
type DeclTable struct {
	actors  map[string]*ast.ActorDeclaration
	order   []string // declaration order for deterministic iteration
	methods map[string]map[string]*ast.MethodDeclaration
	fields  map[string]map[string]*ast.FieldDeclaration

	// skipped actors had structural errors; later analyses leave them
	// alone but continue with the rest of the program.
	skipped map[string]bool
}

// BuildDeclTable registers every declaration in the program, reporting
// duplicate names and unresolvable type references.
func BuildDeclTable(program *ast.Program, report *diagnostics.Report) *DeclTable {
	table := &DeclTable{
		actors:  make(map[string]*ast.ActorDeclaration),
		methods: make(map[string]map[string]*ast.MethodDeclaration),
		fields:  make(map[string]map[string]*ast.FieldDeclaration),
		skipped: make(map[string]bool),
	}

	for _, actor := range program.Actors {
		name := actor.Name.Name
		if existing, ok := table.actors[name]; ok {
			report.Add(diagnostics.Finding{
				Kind:    diagnostics.DuplicateDeclaration,
				Span:    actor.Name.Span,
				Message: "actor '" + name + "' is already declared",
				Related: []diagnostics.RelatedInformation{
					{Message: "previous declaration here", Span: existing.Name.Span},
				},
			})
			continue
		}

		table.actors[name] = actor
		table.order = append(table.order, name)
		table.methods[name] = make(map[string]*ast.MethodDeclaration)
		table.fields[name] = make(map[string]*ast.FieldDeclaration)
	}

	for _, name := range table.order {
		table.registerMembers(table.actors[name], report)
	}

	// References are resolved only for structurally sound actors.
	for _, name := range table.order {
		if !table.skipped[name] {
			table.resolveReferences(table.actors[name], report)
			table.resolveBodies(table.actors[name], report)
		}
	}

	return table
}

func (t *DeclTable) registerMembers(actor *ast.ActorDeclaration, report *diagnostics.Report) {
	name := actor.Name.Name

	for _, field := range actor.Fields {
		if existing, ok := t.fields[name][field.Name.Name]; ok {
			report.Add(diagnostics.Finding{
				Kind:    diagnostics.DuplicateDeclaration,
				Span:    field.Name.Span,
				Message: "field '" + field.Name.Name + "' is already declared in actor '" + name + "'",
				Related: []diagnostics.RelatedInformation{
					{Message: "previous declaration here", Span: existing.Name.Span},
				},
			})
			t.skipped[name] = true
			continue
		}
		t.fields[name][field.Name.Name] = field
	}

	for _, method := range actor.Methods {
		if existing, ok := t.methods[name][method.Name.Name]; ok {
			report.Add(diagnostics.Finding{
				Kind:    diagnostics.DuplicateDeclaration,
				Span:    method.Name.Span,
				Message: "method '" + method.Name.Name + "' is already declared in actor '" + name + "'",
				Related: []diagnostics.RelatedInformation{
					{Message: "previous declaration here", Span: existing.Name.Span},
				},
			})
			t.skipped[name] = true
			continue
		}
		t.methods[name][method.Name.Name] = method
	}
}

func (t *DeclTable) resolveReferences(actor *ast.ActorDeclaration, report *diagnostics.Report) {
	for _, field := range actor.Fields {
		t.checkTypeRef(field.Type, report)
	}

	if actor.Init != nil {
		for _, param := range actor.Init.Params {
			t.checkTypeRef(param.Type, report)
		}
	}

	for _, method := range actor.Methods {
		for _, param := range method.Params {
			t.checkTypeRef(param.Type, report)
		}
		if method.ReturnType != nil {
			t.checkTypeRef(method.ReturnType, report)
		}
	}
}

func (t *DeclTable) checkTypeRef(ref *ast.TypeRef, report *diagnostics.Report) {
	if ref == nil {
		return
	}
	if ref.Elem != nil {
		t.checkTypeRef(ref.Elem, report)
		return
	}
	if builtinTypes[ref.Name] {
		return
	}
	if _, ok := t.actors[ref.Name]; !ok {
		report.Addf(diagnostics.UnknownIdentifier, ref.Span,
			"unknown type '%s'", ref.Name)
	}
}

// Actor returns the declaration for the given actor name
func (t *DeclTable) Actor(name string) (*ast.ActorDeclaration, bool) {
	actor, ok := t.actors[name]
	return actor, ok
}

// Method returns a method declaration by actor and method name
func (t *DeclTable) Method(actor, method string) (*ast.MethodDeclaration, bool) {
	methods, ok := t.methods[actor]
	if !ok {
		return nil, false
	}
	m, ok := methods[method]
	return m, ok
}

// Field returns a field declaration by actor and field name
func (t *DeclTable) Field(actor, field string) (*ast.FieldDeclaration, bool) {
	fields, ok := t.fields[actor]
	if !ok {
		return nil, false
	}
	f, ok := fields[field]
	return f, ok
}

// Actors returns all registered actors in declaration order
func (t *DeclTable) Actors() []*ast.ActorDeclaration {
	actors := make([]*ast.ActorDeclaration, 0, len(t.order))
	for _, name := range t.order {
		actors = append(actors, t.actors[name])
	}
	return actors
}

// Skipped reports whether the named actor had structural errors and is
// excluded from further analysis.
func (t *DeclTable) Skipped(name string) bool {
	return t.skipped[name]
}

// IsActorType reports whether the type reference names a declared actor
func (t *DeclTable) IsActorType(ref *ast.TypeRef) bool {
	if ref == nil || ref.Elem != nil {
		return false
	}
	_, ok := t.actors[ref.Name]
	return ok
}
