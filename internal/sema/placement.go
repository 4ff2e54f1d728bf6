package sema

import (
	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
)

// ClassifyActors assigns every actor its placement kind and validates the
// placement-sensitive declaration rules:
//
//   - an immediate initializer body must contain no suspension point;
//   - a mutable field may only be written outside the initializer from an
//     async method, and an immutable field only inside the initializer;
//   - a field or parameter of actor type must reference an actor of the
//     same placement kind unless the relationship carries an explicit
//     copy (single -> distributed) or shared (distributed <-> distributed)
//     annotation.
//
// Classification must complete before ownership tracking: the legality of
// move, copy and shared transitions depends on the resolved kinds.
func ClassifyActors(table *DeclTable, report *diagnostics.Report) {
	for _, actor := range table.Actors() {
		if actor.Single {
			actor.Placement = ast.PlacementSingle
		} else {
			actor.Placement = ast.PlacementDistributed
		}
	}

	for _, actor := range table.Actors() {
		if table.Skipped(actor.Name.Name) {
			continue
		}

		c := &actorClassifier{table: table, report: report, actor: actor}
		c.checkImmediateInit()
		c.checkMutationSites()
		c.checkContainment()
	}
}

// PlacementOf resolves the placement kind of the named actor, or
// PlacementUnresolved when the name is not a declared actor.
func PlacementOf(table *DeclTable, name string) ast.PlacementKind {
	if actor, ok := table.Actor(name); ok {
		return actor.Placement
	}
	return ast.PlacementUnresolved
}

type actorClassifier struct {
	table  *DeclTable
	report *diagnostics.Report
	actor  *ast.ActorDeclaration
}

// checkImmediateInit rejects suspension points inside immediate
// initializer bodies. An await expression is always a suspension point;
// so is any call that resolves to a declared async method, and any
// construction of a distributed actor, which requires placement and
// therefore network access.
func (c *actorClassifier) checkImmediateInit() {
	init := c.actor.Init
	if init == nil || init.Kind != ast.InitImmediate {
		return
	}

	// Immediate construction completes on the local worker; a
	// distributed actor's construction always crosses the cluster.
	if c.actor.Placement == ast.PlacementDistributed {
		c.report.Addf(diagnostics.IncompatibleActorPlacement, init.Span,
			"distributed actor '%s' cannot declare an immediate initializer", c.actor.Name.Name)
	}

	// Calls directly under an await are reported once, as the await.
	awaited := make(map[*ast.CallExpression]bool)
	walkExpressions(init.Body, func(expr ast.Expression) {
		if aw, ok := expr.(*ast.AwaitExpression); ok && aw.Call != nil {
			awaited[aw.Call] = true
		}
	})

	walkExpressions(init.Body, func(expr ast.Expression) {
		switch e := expr.(type) {
		case *ast.AwaitExpression:
			c.report.Addf(diagnostics.IllegalSuspensionInImmediateInit, e.Span,
				"immediate initializer of actor '%s' contains an awaited call", c.actor.Name.Name)
		case *ast.CallExpression:
			if !awaited[e] && c.isSuspendingCall(e) {
				c.report.Addf(diagnostics.IllegalSuspensionInImmediateInit, e.Span,
					"immediate initializer of actor '%s' calls a suspending operation", c.actor.Name.Name)
			}
		}
	})
}

func (c *actorClassifier) isSuspendingCall(call *ast.CallExpression) bool {
	if call.Receiver == nil {
		// Constructing a distributed actor requires cluster placement.
		return PlacementOf(c.table, call.Method.Name) == ast.PlacementDistributed
	}

	// A call on self resolves within the containing actor; async entry
	// points are suspension points.
	if recv, ok := call.Receiver.(*ast.Identifier); ok && recv.Name == "self" {
		if method, ok := c.table.Method(c.actor.Name.Name, call.Method.Name); ok {
			return method.IsAsync
		}
	}

	return false
}

// checkMutationSites validates every field write outside the initializer.
func (c *actorClassifier) checkMutationSites() {
	for _, method := range c.actor.Methods {
		method := method
		walkStatements(method.Body, func(stmt ast.Statement) {
			assign, ok := stmt.(*ast.AssignStatement)
			if !ok {
				return
			}

			field := c.assignedField(assign.Target)
			if field == nil {
				return
			}

			if !field.Mutable {
				c.report.Add(diagnostics.Finding{
					Kind:    diagnostics.ImmutableFieldAssignment,
					Span:    assign.Span,
					Message: "immutable field '" + field.Name.Name + "' may only be set inside an initializer",
					Related: []diagnostics.RelatedInformation{
						{Message: "field declared immutable here", Span: field.Span},
					},
				})
				return
			}

			if !method.IsAsync {
				c.report.Addf(diagnostics.MutationRequiresAsync, assign.Span,
					"mutable field '%s' may only be written from an async method", field.Name.Name)
			}
		})
	}
}

// assignedField resolves an assignment target to a field of the
// containing actor. Bare identifiers and self.field both count; local
// bindings shadow nothing because field and binding namespaces are
// checked against the declaration table directly.
func (c *actorClassifier) assignedField(target ast.Expression) *ast.FieldDeclaration {
	switch t := target.(type) {
	case *ast.Identifier:
		if field, ok := c.table.Field(c.actor.Name.Name, t.Name); ok {
			return field
		}
	case *ast.FieldAccessExpression:
		if recv, ok := t.Receiver.(*ast.Identifier); ok && recv.Name == "self" {
			if field, ok := c.table.Field(c.actor.Name.Name, t.Field.Name); ok {
				return field
			}
		}
	}
	return nil
}

// checkContainment enforces the cross-kind reachability invariant for
// fields and parameters of actor type.
func (c *actorClassifier) checkContainment() {
	containing := c.actor.Placement

	for _, field := range c.actor.Fields {
		if !c.table.IsActorType(field.Type) {
			continue
		}
		referenced := PlacementOf(c.table, field.Type.Name)

		switch field.Ownership {
		case ast.OwnCopy:
			if containing != ast.PlacementSingle || referenced != ast.PlacementDistributed {
				c.report.Addf(diagnostics.IncompatibleActorPlacement, field.Span,
					"copy field '%s' requires a single containing actor and a distributed target, got %s containing %s",
					field.Name.Name, containing, referenced)
			}
		case ast.OwnShared:
			if containing != ast.PlacementDistributed || referenced != ast.PlacementDistributed {
				c.report.Addf(diagnostics.IncompatibleActorPlacement, field.Span,
					"shared field '%s' requires distributed actors on both ends, got %s containing %s",
					field.Name.Name, containing, referenced)
			}
		default:
			if containing != referenced {
				c.report.Addf(diagnostics.IncompatibleActorPlacement, field.Span,
					"%s actor '%s' cannot contain %s actor '%s' without an explicit copy or shared annotation",
					containing, c.actor.Name.Name, referenced, field.Type.Name)
			}
		}
	}

	for _, method := range c.actor.Methods {
		c.checkParams(method.Params, containing)
	}
	if c.actor.Init != nil {
		c.checkParams(c.actor.Init.Params, containing)
	}
}

func (c *actorClassifier) checkParams(params []*ast.Parameter, containing ast.PlacementKind) {
	for _, param := range params {
		if !c.table.IsActorType(param.Type) {
			continue
		}
		referenced := PlacementOf(c.table, param.Type.Name)
		if containing != referenced {
			c.report.Addf(diagnostics.IncompatibleActorPlacement, param.Span,
				"parameter '%s' passes a %s actor into a %s actor",
				param.Name.Name, referenced, containing)
		}
	}
}
