// Package ast defines the Abstract Syntax Tree (AST) nodes for the Replica
// programming language. Replica programs are collections of actor
// declarations; this package provides strongly-typed nodes with
// comprehensive position tracking for the semantic verifier.
//
// Nodes carry annotation slots (PlacementKind on actors, SchedulingClass
// on methods) that start unresolved after parsing and are filled in by the
// semantic verifier. Code generation consumes the annotated tree.
package ast

import (
	"fmt"
	"strings"

	"github.com/replica-lang/replica/internal/position"
)

// Node is the base interface for all AST nodes
// Every AST node must provide position information for error reporting
type Node interface {
	// GetSpan returns the source span covered by this node
	GetSpan() position.Span
	// String returns a human-readable representation of the node
	String() string
}

// Statement represents all statement nodes in the AST
type Statement interface {
	Node
	statementNode() // Marker method to distinguish statements
}

// Expression represents all expression nodes in the AST
type Expression interface {
	Node
	expressionNode() // Marker method to distinguish expressions
}

// ===== Annotation enumerations =====

// PlacementKind classifies where instances of an actor may be placed.
// It is a closed enumeration attached to each actor type; the two kinds
// are incompatible except through the explicit copy and shared operations.
type PlacementKind int

const (
	// PlacementUnresolved is the parser's initial value, replaced during
	// semantic analysis.
	PlacementUnresolved PlacementKind = iota
	// PlacementDistributed actors may be placed on any node of a cluster.
	PlacementDistributed
	// PlacementSingle actors execute all methods on one exclusive worker.
	PlacementSingle
)

// String returns the string representation of PlacementKind
func (pk PlacementKind) String() string {
	switch pk {
	case PlacementDistributed:
		return "distributed"
	case PlacementSingle:
		return "single"
	default:
		return "unresolved"
	}
}

// SchedulingClass classifies the ordering guarantee of an async method.
type SchedulingClass int

const (
	// SchedUnclassified is the initial value before semantic analysis.
	SchedUnclassified SchedulingClass = iota
	// SchedPlain methods carry no ordering guarantee.
	SchedPlain
	// SchedSequential methods on one instance share a FIFO queue.
	SchedSequential
	// SchedPriority methods are dequeued by priority level per instance.
	SchedPriority
	// SchedTaskGroup methods execute their awaited calls as a dependency DAG.
	SchedTaskGroup
)

// String returns the string representation of SchedulingClass
func (sc SchedulingClass) String() string {
	switch sc {
	case SchedPlain:
		return "plain"
	case SchedSequential:
		return "sequential"
	case SchedPriority:
		return "priority"
	case SchedTaskGroup:
		return "taskgroup"
	default:
		return "unclassified"
	}
}

// PriorityLevel ranks SchedPriority methods on the same instance.
type PriorityLevel int

const (
	PriorityUnresolved PriorityLevel = iota
	PriorityHigh
	PriorityLow
)

// String returns the string representation of PriorityLevel
func (pl PriorityLevel) String() string {
	switch pl {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unresolved"
	}
}

// InitKind distinguishes standard from immediate initializers.
type InitKind int

const (
	// InitStandard initializers may suspend.
	InitStandard InitKind = iota
	// InitImmediate initializers must complete synchronously; any
	// suspension point in the body is a hard error.
	InitImmediate
)

// String returns the string representation of InitKind
func (ik InitKind) String() string {
	if ik == InitImmediate {
		return "immediate"
	}
	return "standard"
}

// OwnershipAnnotation is an explicit ownership marker on a field or
// parameter of actor type.
type OwnershipAnnotation int

const (
	// OwnNone means no explicit annotation: containment requires matching
	// placement kinds.
	OwnNone OwnershipAnnotation = iota
	// OwnMove marks a move parameter: passing an argument transfers
	// exclusive ownership to the callee.
	OwnMove
	// OwnCopy marks a value snapshot: legal only Single -> Distributed.
	OwnCopy
	// OwnShared marks a non-exclusive handle: legal only between
	// Distributed actors.
	OwnShared
)

// String returns the string representation of OwnershipAnnotation
func (oa OwnershipAnnotation) String() string {
	switch oa {
	case OwnMove:
		return "move"
	case OwnCopy:
		return "copy"
	case OwnShared:
		return "shared"
	default:
		return "none"
	}
}

// ===== Program structure =====

// Program represents the root of the AST - a complete Replica source file
type Program struct {
	Span   position.Span
	Actors []*ActorDeclaration
}

func (p *Program) GetSpan() position.Span { return p.Span }
func (p *Program) String() string {
	var parts []string
	for _, actor := range p.Actors {
		parts = append(parts, actor.String())
	}
	return strings.Join(parts, "\n")
}

// ActorDeclaration represents an actor definition
type ActorDeclaration struct {
	Span    position.Span
	Name    *Identifier
	Single  bool // true when declared with the `single` keyword
	Fields  []*FieldDeclaration
	Methods []*MethodDeclaration
	Init    *InitializerDeclaration // at most one initializer

	// Placement is resolved by the semantic verifier; the parser leaves
	// it PlacementUnresolved.
	Placement PlacementKind
}

func (a *ActorDeclaration) GetSpan() position.Span { return a.Span }
func (a *ActorDeclaration) String() string {
	prefix := "actor"
	if a.Single {
		prefix = "single actor"
	}
	return fmt.Sprintf("%s %s { %d fields, %d methods }",
		prefix, a.Name.Name, len(a.Fields), len(a.Methods))
}

// FieldDeclaration represents a field inside an actor
type FieldDeclaration struct {
	Span      position.Span
	Name      *Identifier
	Mutable   bool // var -> mutable, let -> immutable
	Type      *TypeRef
	Ownership OwnershipAnnotation // explicit copy/shared marker, if any
}

func (f *FieldDeclaration) GetSpan() position.Span { return f.Span }
func (f *FieldDeclaration) String() string {
	kw := "let"
	if f.Mutable {
		kw = "var"
	}
	if f.Ownership != OwnNone {
		return fmt.Sprintf("%s %s: %s %s", kw, f.Name.Name, f.Ownership, f.Type)
	}
	return fmt.Sprintf("%s %s: %s", kw, f.Name.Name, f.Type)
}

// InitializerDeclaration represents an actor initializer
type InitializerDeclaration struct {
	Span   position.Span
	Kind   InitKind
	Params []*Parameter
	Body   *BlockStatement
}

func (i *InitializerDeclaration) GetSpan() position.Span { return i.Span }
func (i *InitializerDeclaration) String() string {
	if i.Kind == InitImmediate {
		return fmt.Sprintf("immediate init(%d params)", len(i.Params))
	}
	return fmt.Sprintf("init(%d params)", len(i.Params))
}

// MethodDeclaration represents a method inside an actor
type MethodDeclaration struct {
	Span       position.Span
	Name       *Identifier
	IsAsync    bool
	Params     []*Parameter
	ReturnType *TypeRef // nil for void methods
	Body       *BlockStatement

	// Raw scheduling surface as written; resolved by the verifier into
	// Scheduling and Priority below.
	SequentialKeyword bool
	TaskGroupKeyword  bool
	PriorityName      string // raw priority level identifier, "" if absent
	PrioritySpan      position.Span

	Scheduling SchedulingClass
	Priority   PriorityLevel
}

func (m *MethodDeclaration) GetSpan() position.Span { return m.Span }
func (m *MethodDeclaration) String() string {
	var parts []string
	if m.IsAsync {
		parts = append(parts, "async")
	}
	if m.SequentialKeyword {
		parts = append(parts, "sequential")
	}
	if m.TaskGroupKeyword {
		parts = append(parts, "taskgroup")
	}
	if m.PriorityName != "" {
		parts = append(parts, fmt.Sprintf("priority(%s)", m.PriorityName))
	}
	parts = append(parts, fmt.Sprintf("func %s(%d params)", m.Name.Name, len(m.Params)))
	return strings.Join(parts, " ")
}

// Parameter represents a method or initializer parameter
type Parameter struct {
	Span position.Span
	Name *Identifier
	Type *TypeRef
	Move bool // move parameter: the call site performs an implicit move
}

func (p *Parameter) GetSpan() position.Span { return p.Span }
func (p *Parameter) String() string {
	if p.Move {
		return fmt.Sprintf("move %s: %s", p.Name.Name, p.Type)
	}
	return fmt.Sprintf("%s: %s", p.Name.Name, p.Type)
}

// TypeRef represents a type reference
type TypeRef struct {
	Span     position.Span
	Name     string   // named type, "" for array types
	Elem     *TypeRef // element type for array types
	Optional bool
}

func (t *TypeRef) GetSpan() position.Span { return t.Span }
func (t *TypeRef) String() string {
	var base string
	if t.Elem != nil {
		base = fmt.Sprintf("[%s]", t.Elem)
	} else {
		base = t.Name
	}
	if t.Optional {
		return base + "?"
	}
	return base
}

// ===== Statements =====

// BlockStatement represents a braced sequence of statements
type BlockStatement struct {
	Span       position.Span
	Statements []Statement
}

func (b *BlockStatement) GetSpan() position.Span { return b.Span }
func (b *BlockStatement) statementNode()         {}
func (b *BlockStatement) String() string {
	return fmt.Sprintf("{ %d statements }", len(b.Statements))
}

// LetStatement represents a local binding declaration
type LetStatement struct {
	Span  position.Span
	Name  *Identifier
	Type  *TypeRef // optional declared type
	Value Expression
}

func (l *LetStatement) GetSpan() position.Span { return l.Span }
func (l *LetStatement) statementNode()         {}
func (l *LetStatement) String() string {
	if l.Type != nil {
		return fmt.Sprintf("let %s: %s = %s", l.Name.Name, l.Type, l.Value)
	}
	return fmt.Sprintf("let %s = %s", l.Name.Name, l.Value)
}

// AssignStatement represents an assignment to a binding or field
type AssignStatement struct {
	Span   position.Span
	Target Expression // Identifier or FieldAccessExpression
	Value  Expression
}

func (a *AssignStatement) GetSpan() position.Span { return a.Span }
func (a *AssignStatement) statementNode()         {}
func (a *AssignStatement) String() string {
	return fmt.Sprintf("%s = %s", a.Target, a.Value)
}

// ReturnStatement represents a return from a method
type ReturnStatement struct {
	Span  position.Span
	Value Expression // nil for bare return
}

func (r *ReturnStatement) GetSpan() position.Span { return r.Span }
func (r *ReturnStatement) statementNode()         {}
func (r *ReturnStatement) String() string {
	if r.Value != nil {
		return fmt.Sprintf("return %s", r.Value)
	}
	return "return"
}

// IfStatement represents conditional control flow
type IfStatement struct {
	Span      position.Span
	Condition Expression
	Then      *BlockStatement
	Else      Statement // *BlockStatement, *IfStatement, or nil
}

func (i *IfStatement) GetSpan() position.Span { return i.Span }
func (i *IfStatement) statementNode()         {}
func (i *IfStatement) String() string {
	if i.Else != nil {
		return fmt.Sprintf("if %s %s else %s", i.Condition, i.Then, i.Else)
	}
	return fmt.Sprintf("if %s %s", i.Condition, i.Then)
}

// ExpressionStatement represents an expression evaluated for effect
type ExpressionStatement struct {
	Span position.Span
	Expr Expression
}

func (e *ExpressionStatement) GetSpan() position.Span { return e.Span }
func (e *ExpressionStatement) statementNode()         {}
func (e *ExpressionStatement) String() string         { return e.Expr.String() }

// ===== Expressions =====

// Identifier represents a name reference
type Identifier struct {
	Span position.Span
	Name string
}

func (i *Identifier) GetSpan() position.Span { return i.Span }
func (i *Identifier) expressionNode()        {}
func (i *Identifier) String() string         { return i.Name }

// LiteralKind distinguishes literal expression values
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
)

// Literal represents a literal value
type Literal struct {
	Span  position.Span
	Kind  LiteralKind
	Value string // raw literal text
}

func (l *Literal) GetSpan() position.Span { return l.Span }
func (l *Literal) expressionNode()        {}
func (l *Literal) String() string {
	if l.Kind == LiteralString {
		return fmt.Sprintf("%q", l.Value)
	}
	return l.Value
}

// BinaryExpression represents a binary operation
type BinaryExpression struct {
	Span     position.Span
	Left     Expression
	Operator string
	Right    Expression
}

func (b *BinaryExpression) GetSpan() position.Span { return b.Span }
func (b *BinaryExpression) expressionNode()        {}
func (b *BinaryExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Operator, b.Right)
}

// CallExpression represents a method call or actor construction.
// A nil Receiver with a Method naming an actor type is a constructor call.
type CallExpression struct {
	Span      position.Span
	Receiver  Expression // nil for constructor calls
	Method    *Identifier
	Arguments []Expression
}

func (c *CallExpression) GetSpan() position.Span { return c.Span }
func (c *CallExpression) expressionNode()        {}
func (c *CallExpression) String() string {
	var args []string
	for _, arg := range c.Arguments {
		args = append(args, arg.String())
	}
	if c.Receiver != nil {
		return fmt.Sprintf("%s.%s(%s)", c.Receiver, c.Method.Name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", c.Method.Name, strings.Join(args, ", "))
}

// AwaitExpression represents an awaited call - a suspension point
type AwaitExpression struct {
	Span position.Span
	Call *CallExpression
}

func (a *AwaitExpression) GetSpan() position.Span { return a.Span }
func (a *AwaitExpression) expressionNode()        {}
func (a *AwaitExpression) String() string         { return fmt.Sprintf("await %s", a.Call) }

// MoveExpression transfers exclusive ownership of the operand
type MoveExpression struct {
	Span    position.Span
	Operand Expression
}

func (m *MoveExpression) GetSpan() position.Span { return m.Span }
func (m *MoveExpression) expressionNode()        {}
func (m *MoveExpression) String() string         { return fmt.Sprintf("move %s", m.Operand) }

// CopyExpression snapshots a single actor's state into a new distributed
// instance; the operand remains valid.
type CopyExpression struct {
	Span    position.Span
	Operand Expression
}

func (c *CopyExpression) GetSpan() position.Span { return c.Span }
func (c *CopyExpression) expressionNode()        {}
func (c *CopyExpression) String() string         { return fmt.Sprintf("copy %s", c.Operand) }

// SharedExpression produces a non-exclusive handle to a distributed actor
type SharedExpression struct {
	Span    position.Span
	Operand Expression
}

func (s *SharedExpression) GetSpan() position.Span { return s.Span }
func (s *SharedExpression) expressionNode()        {}
func (s *SharedExpression) String() string         { return fmt.Sprintf("shared %s", s.Operand) }

// FieldAccessExpression represents reading a field through a receiver
type FieldAccessExpression struct {
	Span     position.Span
	Receiver Expression
	Field    *Identifier
}

func (f *FieldAccessExpression) GetSpan() position.Span { return f.Span }
func (f *FieldAccessExpression) expressionNode()        {}
func (f *FieldAccessExpression) String() string {
	return fmt.Sprintf("%s.%s", f.Receiver, f.Field.Name)
}
