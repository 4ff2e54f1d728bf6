package sema

import (
	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
)

// bodyResolver checks every name read in initializer and method bodies
// against the names actually in scope: parameters, fields of the
// containing actor, local let bindings, 'self', and declared actor
// names. Scopes nest lexically; a binding declared inside a branch is
// gone after the branch closes.
type bodyResolver struct {
	table  *DeclTable
	actor  *ast.ActorDeclaration
	report *diagnostics.Report
	scopes []map[string]bool
}

func (t *DeclTable) resolveBodies(actor *ast.ActorDeclaration, report *diagnostics.Report) {
	r := &bodyResolver{table: t, actor: actor, report: report}

	if actor.Init != nil {
		r.run(actor.Init.Params, actor.Init.Body)
	}
	for _, method := range actor.Methods {
		r.run(method.Params, method.Body)
	}
}

func (r *bodyResolver) run(params []*ast.Parameter, body *ast.BlockStatement) {
	r.push()
	for _, param := range params {
		r.declare(param.Name.Name)
	}
	r.block(body)
	r.pop()
}

func (r *bodyResolver) push() {
	r.scopes = append(r.scopes, make(map[string]bool))
}

func (r *bodyResolver) pop() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *bodyResolver) declare(name string) {
	r.scopes[len(r.scopes)-1][name] = true
}

func (r *bodyResolver) inScope(name string) bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if r.scopes[i][name] {
			return true
		}
	}
	if name == "self" {
		return true
	}
	if _, ok := r.table.fields[r.actor.Name.Name][name]; ok {
		return true
	}
	_, isActor := r.table.actors[name]
	return isActor
}

func (r *bodyResolver) block(body *ast.BlockStatement) {
	if body == nil {
		return
	}
	r.push()
	for _, stmt := range body.Statements {
		r.statement(stmt)
	}
	r.pop()
}

func (r *bodyResolver) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		r.table.checkTypeRef(s.Type, r.report)
		// The binding is visible inside its own initializer, so a
		// taskgroup call reading its own result resolves and surfaces
		// as a dependency cycle instead.
		r.declare(s.Name.Name)
		r.expression(s.Value)
	case *ast.AssignStatement:
		r.expression(s.Value)
		r.assignTarget(s.Target)
	case *ast.ReturnStatement:
		if s.Value != nil {
			r.expression(s.Value)
		}
	case *ast.IfStatement:
		r.expression(s.Condition)
		r.block(s.Then)
		switch e := s.Else.(type) {
		case *ast.BlockStatement:
			r.block(e)
		case *ast.IfStatement:
			r.statement(e)
		}
	case *ast.ExpressionStatement:
		r.expression(s.Expr)
	case *ast.BlockStatement:
		r.block(s)
	}
}

func (r *bodyResolver) assignTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		if !r.inScope(t.Name) {
			r.report.Addf(diagnostics.UnknownIdentifier, t.Span,
				"undefined variable '%s'", t.Name)
		}
	case *ast.FieldAccessExpression:
		r.expression(t.Receiver)
		if recv, ok := t.Receiver.(*ast.Identifier); ok && recv.Name == "self" {
			if _, isField := r.table.fields[r.actor.Name.Name][t.Field.Name]; !isField {
				r.report.Addf(diagnostics.UnknownIdentifier, t.Field.Span,
					"actor '%s' has no field '%s'", r.actor.Name.Name, t.Field.Name)
			}
		}
	}
}

func (r *bodyResolver) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Identifier:
		if !r.inScope(e.Name) {
			r.report.Addf(diagnostics.UnknownIdentifier, e.Span,
				"undefined variable '%s'", e.Name)
		}
	case *ast.BinaryExpression:
		r.expression(e.Left)
		r.expression(e.Right)
	case *ast.MoveExpression:
		r.expression(e.Operand)
	case *ast.CopyExpression:
		r.expression(e.Operand)
	case *ast.SharedExpression:
		r.expression(e.Operand)
	case *ast.AwaitExpression:
		r.expression(e.Call)
	case *ast.CallExpression:
		if e.Receiver == nil {
			// Bare calls are constructors; the callee must name an
			// actor.
			if _, ok := r.table.actors[e.Method.Name]; !ok {
				r.report.Addf(diagnostics.UnknownIdentifier, e.Method.Span,
					"unknown actor '%s'", e.Method.Name)
			}
		} else {
			r.expression(e.Receiver)
		}
		for _, arg := range e.Arguments {
			r.expression(arg)
		}
	case *ast.FieldAccessExpression:
		r.expression(e.Receiver)
	}
}
