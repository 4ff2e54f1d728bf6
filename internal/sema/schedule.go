package sema

import (
	"sort"
	"strings"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/diagnostics"
	"github.com/replica-lang/replica/internal/position"
)

// ScheduleNode is one awaited call site inside a taskgroup method body.
type ScheduleNode struct {
	Index   int
	Call    *ast.CallExpression
	Binding string // result binding name, "" when the call is unbound
	Span    position.Span
}

// Label returns a short description of the call site for diagnostics.
func (n *ScheduleNode) Label() string {
	if n.Binding != "" {
		return n.Binding + " = " + n.Call.String()
	}
	return n.Call.String()
}

// ScheduleGraph is the task dependency graph of one taskgroup method.
// Nodes are awaited call sites; an edge from X to Y exists when Y's
// argument expressions read a value produced by X. Nodes with no path
// between them may execute concurrently; the graph must be acyclic.
//
// The runtime contract encoded here: a DAG scheduler executes independent
// nodes concurrently and a dependent node only after all its predecessors
// complete.
type ScheduleGraph struct {
	Nodes []*ScheduleNode
	// Edges maps a producer node index to its dependent node indices.
	Edges map[int][]int
}

// HasEdge reports whether the dependency edge from -> to exists.
func (g *ScheduleGraph) HasEdge(from, to int) bool {
	for _, dep := range g.Edges[from] {
		if dep == to {
			return true
		}
	}
	return false
}

// TopologicalOrder returns a dependency-respecting execution order, or
// the indices of the nodes participating in a cycle.
func (g *ScheduleGraph) TopologicalOrder() (order []int, cycle []int) {
	indegree := make(map[int]int, len(g.Nodes))
	for _, node := range g.Nodes {
		indegree[node.Index] = 0
	}
	for _, deps := range g.Edges {
		for _, to := range deps {
			indegree[to]++
		}
	}

	var ready []int
	for _, node := range g.Nodes {
		if indegree[node.Index] == 0 {
			ready = append(ready, node.Index)
		}
	}
	sort.Ints(ready)

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, to := range g.Edges[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
		sort.Ints(ready)
	}

	if len(order) == len(g.Nodes) {
		return order, nil
	}

	for _, node := range g.Nodes {
		if indegree[node.Index] > 0 {
			cycle = append(cycle, node.Index)
		}
	}
	return nil, cycle
}

// MethodSchedule is the resolved scheduling metadata for one method.
//
// The runtime contracts per class: Plain methods may execute on any
// number of parallel workers. Sequential methods on the same instance
// share one exclusive FIFO queue, pooled instance-wide across every
// sequential method of the actor. Priority methods require a
// priority-ordered ready queue per instance, high before low, FIFO
// within a level. Single-placement actors additionally execute all
// methods on one designated worker regardless of class.
type MethodSchedule struct {
	Actor    string
	Method   string
	Class    ast.SchedulingClass
	Priority ast.PriorityLevel
	Graph    *ScheduleGraph // non-nil only for taskgroup methods
}

// Key returns the canonical "Actor.method" schedule map key.
func (ms *MethodSchedule) Key() string {
	return ms.Actor + "." + ms.Method
}

// recognized priority levels
var priorityLevels = map[string]ast.PriorityLevel{
	"high": ast.PriorityHigh,
	"low":  ast.PriorityLow,
}

// ClassifySchedules assigns every method its scheduling class and builds
// the task dependency graph for taskgroup methods. Classification is
// terminal: a method's class is assigned exactly once from its
// declaration annotations.
func ClassifySchedules(table *DeclTable, report *diagnostics.Report) map[string]*MethodSchedule {
	schedules := make(map[string]*MethodSchedule)

	for _, actor := range table.Actors() {
		if table.Skipped(actor.Name.Name) {
			continue
		}

		for _, method := range actor.Methods {
			schedule := classifyMethod(actor, method, report)
			schedules[schedule.Key()] = schedule
		}
	}

	return schedules
}

func classifyMethod(actor *ast.ActorDeclaration, method *ast.MethodDeclaration, report *diagnostics.Report) *MethodSchedule {
	schedule := &MethodSchedule{
		Actor:  actor.Name.Name,
		Method: method.Name.Name,
		Class:  ast.SchedPlain,
	}

	// Scheduling annotations order message delivery; a synchronous
	// method never goes through the mailbox.
	if !method.IsAsync {
		switch {
		case method.SequentialKeyword:
			report.Addf(diagnostics.SchedulingRequiresAsync, method.Name.Span,
				"sequential method '%s' must be async", method.Name.Name)
		case method.TaskGroupKeyword:
			report.Addf(diagnostics.SchedulingRequiresAsync, method.Name.Span,
				"taskgroup method '%s' must be async", method.Name.Name)
		case method.PriorityName != "":
			report.Addf(diagnostics.SchedulingRequiresAsync, method.PrioritySpan,
				"priority method '%s' must be async", method.Name.Name)
		}
	}

	switch {
	case method.TaskGroupKeyword:
		schedule.Class = ast.SchedTaskGroup
		schedule.Graph = buildScheduleGraph(method.Body)
		checkCycle(schedule, report)
	case method.SequentialKeyword:
		schedule.Class = ast.SchedSequential
	case method.PriorityName != "":
		schedule.Class = ast.SchedPriority
		level, ok := priorityLevels[method.PriorityName]
		if !ok {
			report.Addf(diagnostics.UnknownPriorityLevel, method.PrioritySpan,
				"unknown priority level '%s', expected 'high' or 'low'", method.PriorityName)
			level = ast.PriorityUnresolved
		}
		schedule.Priority = level
	}

	method.Scheduling = schedule.Class
	method.Priority = schedule.Priority

	return schedule
}

// buildScheduleGraph collects the awaited call sites of the body in
// program order and draws a dependency edge from producer to consumer
// whenever a consumer's arguments read a producer's result binding,
// directly or through intermediate non-awaited bindings.
func buildScheduleGraph(body *ast.BlockStatement) *ScheduleGraph {
	graph := &ScheduleGraph{Edges: make(map[int][]int)}

	// producers maps a binding name to the node that produced it;
	// derived tracks bindings computed from node results without an
	// intervening await.
	producers := make(map[string]int)
	derived := make(map[string]map[int]bool)

	addNode := func(call *ast.CallExpression, bindingName string, span position.Span) {
		node := &ScheduleNode{
			Index:   len(graph.Nodes),
			Call:    call,
			Binding: bindingName,
			Span:    span,
		}
		graph.Nodes = append(graph.Nodes, node)

		deps := make(map[int]bool)
		for _, arg := range call.Arguments {
			collectDependencies(arg, producers, derived, deps)
		}
		// A call whose arguments read its own result binding depends on
		// itself: an immediate cycle.
		if bindingName != "" {
			for _, arg := range call.Arguments {
				if readsBinding(arg, bindingName) {
					deps[node.Index] = true
				}
			}
		}

		ordered := make([]int, 0, len(deps))
		for from := range deps {
			ordered = append(ordered, from)
		}
		sort.Ints(ordered)
		for _, from := range ordered {
			graph.Edges[from] = append(graph.Edges[from], node.Index)
		}

		if bindingName != "" {
			producers[bindingName] = node.Index
			delete(derived, bindingName)
		}
	}

	walkStatements(body, func(stmt ast.Statement) {
		switch s := stmt.(type) {
		case *ast.LetStatement:
			if await, ok := s.Value.(*ast.AwaitExpression); ok {
				addNode(await.Call, s.Name.Name, await.Span)
				return
			}
			// A non-awaited binding derives from whatever node results
			// its initializer reads.
			deps := make(map[int]bool)
			collectDependencies(s.Value, producers, derived, deps)
			if len(deps) > 0 {
				derived[s.Name.Name] = deps
			}
		case *ast.ExpressionStatement:
			if await, ok := s.Expr.(*ast.AwaitExpression); ok {
				addNode(await.Call, "", await.Span)
			}
		}
	})

	return graph
}

// collectDependencies finds the producing nodes read by an expression.
func collectDependencies(expr ast.Expression, producers map[string]int, derived map[string]map[int]bool, deps map[int]bool) {
	walkExpr(expr, func(e ast.Expression) {
		ident, ok := e.(*ast.Identifier)
		if !ok {
			return
		}
		if from, ok := producers[ident.Name]; ok {
			deps[from] = true
		}
		for from := range derived[ident.Name] {
			deps[from] = true
		}
	})
}

func readsBinding(expr ast.Expression, name string) bool {
	found := false
	walkExpr(expr, func(e ast.Expression) {
		if ident, ok := e.(*ast.Identifier); ok && ident.Name == name {
			found = true
		}
	})
	return found
}

func checkCycle(schedule *MethodSchedule, report *diagnostics.Report) {
	_, cycle := schedule.Graph.TopologicalOrder()
	if len(cycle) == 0 {
		return
	}

	var labels []string
	var related []diagnostics.RelatedInformation
	span := position.Span{}
	for _, index := range cycle {
		node := schedule.Graph.Nodes[index]
		labels = append(labels, node.Label())
		related = append(related, diagnostics.RelatedInformation{
			Message: "call site in cycle: " + node.Label(),
			Span:    node.Span,
		})
		if !span.IsValid() {
			span = node.Span
		}
	}

	report.Add(diagnostics.Finding{
		Kind: diagnostics.CyclicTaskDependency,
		Span: span,
		Message: "taskgroup method '" + schedule.Key() +
			"' has cyclic task dependencies: " + strings.Join(labels, ", "),
		Related: related,
	})
}
