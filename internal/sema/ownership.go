package sema

import (
	"sort"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
	"github.com/replica-lang/replica/internal/position"
)

// OwnershipState is the per-path dataflow state of a binding of actor
// type. Exactly one binding may be Owned for a given runtime instance at
// any program point along a single control-flow path.
type OwnershipState int

const (
	// StateUnknown is the lattice bottom: the binding is not live or not
	// of actor type on this path.
	StateUnknown OwnershipState = iota
	// StateOwned holds exclusive ownership of the instance.
	StateOwned
	// StateMoved is permanently dead for the remainder of the path.
	StateMoved
	// StateShared is a non-exclusive handle to a distributed actor.
	StateShared
	// StateInconsistent marks a join point where incoming paths disagree;
	// any subsequent use is a use-after-partial-move.
	StateInconsistent
)

// String returns the string representation of OwnershipState
func (s OwnershipState) String() string {
	switch s {
	case StateOwned:
		return "owned"
	case StateMoved:
		return "moved"
	case StateShared:
		return "shared"
	case StateInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// StateTransition records one ownership state change of a binding.
type StateTransition struct {
	Span  position.Span
	State OwnershipState
}

// MethodOwnership is the annotated ownership output for one method: the
// final state history of every actor-typed binding encountered.
type MethodOwnership struct {
	Actor  string
	Method string
	// History maps binding names to their ordered state transitions.
	History map[string][]StateTransition
}

// binding is the tracked dataflow state of one named value.
type binding struct {
	actorType string // declared actor type name, "" when not actor-typed
	state     OwnershipState
	moveSpan  position.Span // site of the invalidating move, if any
}

// env maps binding names to states along one control-flow path. Values
// are copied wholesale when control flow branches.
type env map[string]binding

func (e env) clone() env {
	clone := make(env, len(e))
	for name, b := range e {
		clone[name] = b
	}
	return clone
}

// value is the abstract result of evaluating an expression.
type value struct {
	actorType string
	state     OwnershipState
}

// AnalyzeOwnership runs the flow-sensitive ownership analysis for every
// method and initializer of the actor. It requires ClassifyActors to have
// resolved placement kinds already. All violations within a method are
// collected; none aborts the pass.
func AnalyzeOwnership(table *DeclTable, actor *ast.ActorDeclaration, report *diagnostics.Report) []*MethodOwnership {
	if table.Skipped(actor.Name.Name) {
		return nil
	}

	var results []*MethodOwnership

	if actor.Init != nil {
		t := newTracker(table, actor, "init", report)
		t.run(actor.Init.Params, actor.Init.Body)
		results = append(results, t.finish())
	}

	for _, method := range actor.Methods {
		t := newTracker(table, actor, method.Name.Name, report)
		t.run(method.Params, method.Body)
		results = append(results, t.finish())
	}

	return results
}

type tracker struct {
	table   *DeclTable
	actor   *ast.ActorDeclaration
	method  string
	report  *diagnostics.Report
	history map[string][]StateTransition
}

func newTracker(table *DeclTable, actor *ast.ActorDeclaration, method string, report *diagnostics.Report) *tracker {
	return &tracker{
		table:   table,
		actor:   actor,
		method:  method,
		report:  report,
		history: make(map[string][]StateTransition),
	}
}

func (t *tracker) finish() *MethodOwnership {
	return &MethodOwnership{
		Actor:   t.actor.Name.Name,
		Method:  t.method,
		History: t.history,
	}
}

func (t *tracker) run(params []*ast.Parameter, body *ast.BlockStatement) {
	e := make(env)

	for _, param := range params {
		if !t.table.IsActorType(param.Type) {
			continue
		}

		state := StateOwned
		if !param.Move && PlacementOf(t.table, param.Type.Name) == ast.PlacementDistributed {
			// A non-move distributed actor parameter is a handle the
			// caller retains; the callee never owns it exclusively.
			state = StateShared
		}

		e[param.Name.Name] = binding{actorType: param.Type.Name, state: state}
		t.record(param.Name.Name, param.Span, state)
	}

	t.block(e, body)
}

func (t *tracker) record(name string, span position.Span, state OwnershipState) {
	t.history[name] = append(t.history[name], StateTransition{Span: span, State: state})
}

// block analyzes a statement sequence and reports whether the path
// terminated early via return.
func (t *tracker) block(e env, body *ast.BlockStatement) (terminated bool) {
	if body == nil {
		return false
	}

	for _, stmt := range body.Statements {
		if t.statement(e, stmt) {
			return true
		}
	}

	return false
}

func (t *tracker) statement(e env, stmt ast.Statement) (terminated bool) {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		t.letStatement(e, s)
	case *ast.AssignStatement:
		v := t.rvalue(e, s.Value)
		if target, ok := s.Target.(*ast.Identifier); ok {
			if _, isField := t.table.Field(t.actor.Name.Name, target.Name); !isField {
				e[target.Name] = binding{actorType: v.actorType, state: v.state}
				if v.actorType != "" {
					t.record(target.Name, s.Span, v.state)
				}
			}
		}
	case *ast.ReturnStatement:
		if s.Value != nil {
			t.expression(e, s.Value)
		}
		return true
	case *ast.IfStatement:
		t.expression(e, s.Condition)
		t.ifStatement(e, s)
	case *ast.ExpressionStatement:
		t.expression(e, s.Expr)
	case *ast.BlockStatement:
		return t.block(e, s)
	}

	return false
}

// rvalue evaluates an expression whose result is being bound. Rebinding
// an owned actor is an implicit transfer, never an alias: exactly one
// owner exists per path, so the source is dead afterwards. Shared
// handles alias freely.
func (t *tracker) rvalue(e env, expr ast.Expression) value {
	if ident, ok := expr.(*ast.Identifier); ok {
		if b, tracked := e[ident.Name]; tracked && b.state == StateOwned {
			return t.moveExpression(e, &ast.MoveExpression{Span: ident.Span, Operand: ident})
		}
	}
	return t.expression(e, expr)
}

func (t *tracker) letStatement(e env, s *ast.LetStatement) {
	v := t.rvalue(e, s.Value)

	// A copy destination must be a distributed actor. The copy operation
	// itself only knows its source; the declared destination type closes
	// the check.
	if _, isCopy := s.Value.(*ast.CopyExpression); isCopy && s.Type != nil {
		if t.table.IsActorType(s.Type) && PlacementOf(t.table, s.Type.Name) != ast.PlacementDistributed {
			t.report.Addf(diagnostics.IncompatibleActorPlacement, s.Span,
				"copy destination '%s' must be a distributed actor", s.Type.Name)
		}
		v.actorType = s.Type.Name
	}

	if s.Type != nil && t.table.IsActorType(s.Type) && v.actorType == "" {
		v.actorType = s.Type.Name
	}

	e[s.Name.Name] = binding{actorType: v.actorType, state: v.state}
	if v.actorType != "" {
		t.record(s.Name.Name, s.Span, v.state)
	}
}

// ifStatement forks the environment per branch and merges at the join
// point with the greatest-lower-bound rule: paths that disagree about a
// binding leave it Inconsistent, so any later use is rejected unless the
// program moves unconditionally before the join or not at all.
func (t *tracker) ifStatement(e env, s *ast.IfStatement) {
	outer := make(map[string]bool, len(e))
	for name := range e {
		outer[name] = true
	}

	thenEnv := e.clone()
	thenTerminated := t.block(thenEnv, s.Then)

	elseEnv := e.clone()
	elseTerminated := false
	switch elseStmt := s.Else.(type) {
	case *ast.BlockStatement:
		elseTerminated = t.block(elseEnv, elseStmt)
	case *ast.IfStatement:
		t.expression(elseEnv, elseStmt.Condition)
		t.ifStatement(elseEnv, elseStmt)
	}

	// A terminated path contributes nothing to the join.
	switch {
	case thenTerminated && elseTerminated:
		return
	case thenTerminated:
		replace(e, elseEnv)
	case elseTerminated:
		replace(e, thenEnv)
	default:
		t.merge(e, thenEnv, elseEnv, s.Span)
	}

	// Bindings declared inside a branch are out of scope at the join.
	for name := range e {
		if !outer[name] {
			delete(e, name)
		}
	}
}

func replace(dst, src env) {
	for name := range dst {
		delete(dst, name)
	}
	for name, b := range src {
		dst[name] = b
	}
}

func (t *tracker) merge(dst, a, b env, joinSpan position.Span) {
	names := make(map[string]bool, len(a)+len(b))
	for name := range a {
		names[name] = true
	}
	for name := range b {
		names[name] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	for name := range dst {
		delete(dst, name)
	}

	for _, name := range ordered {
		ba, inA := a[name]
		bb, inB := b[name]

		switch {
		case inA && !inB:
			dst[name] = ba
		case inB && !inA:
			dst[name] = bb
		case ba.state == bb.state:
			dst[name] = ba
		default:
			merged := binding{actorType: ba.actorType, state: StateInconsistent}
			// Keep whichever branch's move site exists for the later
			// use-after-partial-move report.
			if ba.state == StateMoved {
				merged.moveSpan = ba.moveSpan
			} else if bb.state == StateMoved {
				merged.moveSpan = bb.moveSpan
			}
			dst[name] = merged
			t.record(name, joinSpan, StateInconsistent)
		}
	}
}

// expression evaluates an expression for its abstract value, reporting
// every illegal use it encounters.
func (t *tracker) expression(e env, expr ast.Expression) value {
	switch ex := expr.(type) {
	case *ast.Identifier:
		return t.identifierUse(e, ex)
	case *ast.Literal:
		return value{}
	case *ast.BinaryExpression:
		t.expression(e, ex.Left)
		t.expression(e, ex.Right)
		return value{}
	case *ast.MoveExpression:
		return t.moveExpression(e, ex)
	case *ast.CopyExpression:
		return t.copyExpression(e, ex)
	case *ast.SharedExpression:
		return t.sharedExpression(e, ex)
	case *ast.AwaitExpression:
		return t.callExpression(e, ex.Call)
	case *ast.CallExpression:
		return t.callExpression(e, ex)
	case *ast.FieldAccessExpression:
		t.expression(e, ex.Receiver)
		return value{}
	}
	return value{}
}

// identifierUse checks a read of a binding on the current path.
func (t *tracker) identifierUse(e env, ident *ast.Identifier) value {
	b, ok := e[ident.Name]
	if !ok {
		return value{}
	}

	switch b.state {
	case StateMoved:
		t.report.Add(diagnostics.Finding{
			Kind:    diagnostics.UseAfterMove,
			Span:    ident.Span,
			Message: "binding '" + ident.Name + "' used after move",
			Related: []diagnostics.RelatedInformation{
				{Message: "value moved here", Span: b.moveSpan},
			},
		})
	case StateInconsistent:
		f := diagnostics.Finding{
			Kind:    diagnostics.UseAfterPartialMove,
			Span:    ident.Span,
			Message: "binding '" + ident.Name + "' is moved on some control-flow paths but not others",
		}
		if b.moveSpan.IsValid() {
			f.Related = []diagnostics.RelatedInformation{
				{Message: "moved on this path", Span: b.moveSpan},
			}
		}
		t.report.Add(f)
	}

	return value{actorType: b.actorType, state: b.state}
}

// moveExpression validates and applies an ownership transfer. The source
// must be exclusively owned on this path; afterwards it is dead.
func (t *tracker) moveExpression(e env, ex *ast.MoveExpression) value {
	ident, ok := ex.Operand.(*ast.Identifier)
	if !ok {
		t.expression(e, ex.Operand)
		return value{}
	}

	b, tracked := e[ident.Name]
	if !tracked {
		return value{}
	}

	switch b.state {
	case StateOwned:
		e[ident.Name] = binding{actorType: b.actorType, state: StateMoved, moveSpan: ex.Span}
		t.record(ident.Name, ex.Span, StateMoved)
		return value{actorType: b.actorType, state: StateOwned}
	case StateShared:
		t.report.Addf(diagnostics.CannotMoveSharedReference, ex.Span,
			"cannot move '%s': a shared handle is not exclusively owned", ident.Name)
	case StateMoved:
		t.report.Add(diagnostics.Finding{
			Kind:    diagnostics.UseAfterMove,
			Span:    ex.Span,
			Message: "binding '" + ident.Name + "' moved again after move",
			Related: []diagnostics.RelatedInformation{
				{Message: "value moved here", Span: b.moveSpan},
			},
		})
	case StateInconsistent:
		t.report.Addf(diagnostics.UseAfterPartialMove, ex.Span,
			"cannot move '%s': it is moved on some control-flow paths but not others", ident.Name)
	}

	return value{actorType: b.actorType, state: b.state}
}

// copyExpression validates a field-wise snapshot. The source must be an
// owned single actor; its state is unchanged and the result is a new,
// independently owned distributed instance.
func (t *tracker) copyExpression(e env, ex *ast.CopyExpression) value {
	ident, ok := ex.Operand.(*ast.Identifier)
	if !ok {
		t.expression(e, ex.Operand)
		return value{state: StateOwned}
	}

	v := t.identifierUse(e, ident)
	if v.actorType != "" && PlacementOf(t.table, v.actorType) != ast.PlacementSingle {
		t.report.Addf(diagnostics.IncompatibleActorPlacement, ex.Span,
			"copy source '%s' must be a single actor, '%s' is %s",
			ident.Name, v.actorType, PlacementOf(t.table, v.actorType))
	}

	// The snapshot is independently owned; its concrete distributed type
	// comes from the destination declaration.
	return value{state: StateOwned}
}

// sharedExpression validates handle creation between distributed actors.
func (t *tracker) sharedExpression(e env, ex *ast.SharedExpression) value {
	ident, ok := ex.Operand.(*ast.Identifier)
	if !ok {
		t.expression(e, ex.Operand)
		return value{state: StateShared}
	}

	v := t.identifierUse(e, ident)
	if v.actorType != "" && PlacementOf(t.table, v.actorType) != ast.PlacementDistributed {
		t.report.Addf(diagnostics.IncompatibleActorPlacement, ex.Span,
			"shared handles exist only between distributed actors, '%s' is %s",
			v.actorType, PlacementOf(t.table, v.actorType))
	}

	return value{actorType: v.actorType, state: StateShared}
}

// callExpression analyzes receiver and arguments, applying implicit moves
// for arguments bound to move parameters.
func (t *tracker) callExpression(e env, call *ast.CallExpression) value {
	var params []*ast.Parameter

	if call.Receiver == nil {
		// Constructor call: the result is a freshly owned instance.
		if actor, ok := t.table.Actor(call.Method.Name); ok {
			if actor.Init != nil {
				params = actor.Init.Params
			}
			t.arguments(e, call, params)
			return value{actorType: call.Method.Name, state: StateOwned}
		}
		t.arguments(e, call, nil)
		return value{}
	}

	recv := t.expression(e, call.Receiver)
	if recv.actorType != "" {
		if method, ok := t.table.Method(recv.actorType, call.Method.Name); ok {
			params = method.Params
			t.arguments(e, call, params)
			return t.callResult(method)
		}
	} else if recvIdent, ok := call.Receiver.(*ast.Identifier); ok && recvIdent.Name == "self" {
		if method, ok := t.table.Method(t.actor.Name.Name, call.Method.Name); ok {
			params = method.Params
			t.arguments(e, call, params)
			return t.callResult(method)
		}
	}

	t.arguments(e, call, nil)
	return value{}
}

func (t *tracker) callResult(method *ast.MethodDeclaration) value {
	if method.ReturnType != nil && t.table.IsActorType(method.ReturnType) {
		return value{actorType: method.ReturnType.Name, state: StateOwned}
	}
	return value{}
}

// arguments evaluates call arguments. Passing a binding to a move
// parameter is an implicit move at the call site.
func (t *tracker) arguments(e env, call *ast.CallExpression, params []*ast.Parameter) {
	for i, arg := range call.Arguments {
		isMoveParam := i < len(params) && params[i].Move

		if ident, ok := arg.(*ast.Identifier); ok && isMoveParam {
			t.moveExpression(e, &ast.MoveExpression{Span: ident.Span, Operand: ident})
			continue
		}

		t.expression(e, arg)
	}
}
