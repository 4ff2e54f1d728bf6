// Package codegen emits portable Replica bytecode (.rbc) from the
// verified, annotated syntax tree. The module format carries actor
// descriptors with resolved placement kinds, method descriptors with
// scheduling classes and task dependency graphs, and a compact stack
// instruction stream per body. Generation refuses to run while the
// verifier's report has findings.
package codegen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/sema"
)

// ErrFindings is returned when generation is attempted on a program that
// failed verification.
var ErrFindings = errors.New("codegen: program has verification findings")

// Module format constants.
var magic = [4]byte{'R', 'B', 'C', 0x01}

const formatVersion uint16 = 1

// Placement flags in actor descriptors.
const (
	placementDistributed byte = 1
	placementSingle      byte = 2
)

// Opcodes for the body instruction stream.
const (
	OpLoadConst byte = iota + 1 // kind byte, pool index
	OpLoadLocal                 // pool index of name
	OpStoreLocal
	OpLoadField
	OpStoreField
	OpBinary    // pool index of operator
	OpConstruct // pool index of actor name, arg count byte
	OpCall      // pool index of method name, arg count byte
	OpAwait
	OpMove
	OpCopy
	OpShared
	OpJump        // signed 16-bit relative offset
	OpJumpIfFalse // signed 16-bit relative offset
	OpPop
	OpReturn
	OpReturnValue
)

// Generate encodes the verified program as a bytecode module.
func Generate(result *sema.Result) ([]byte, error) {
	if result.Report.HasFindings() {
		return nil, ErrFindings
	}

	g := &generator{
		result:  result,
		pool:    make(map[string]uint16),
		strings: nil,
	}

	body := &bytes.Buffer{}
	actors := result.Table.Actors()

	if err := writeU16(body, uint16(len(actors))); err != nil {
		return nil, err
	}
	for _, actor := range actors {
		if err := g.writeActor(body, actor); err != nil {
			return nil, err
		}
	}

	// Assemble: header, string pool, then the descriptor stream. The
	// pool is complete only after every descriptor has been encoded.
	out := &bytes.Buffer{}
	out.Write(magic[:])
	if err := writeU16(out, formatVersion); err != nil {
		return nil, err
	}
	if err := g.writePool(out); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

type generator struct {
	result  *sema.Result
	pool    map[string]uint16
	strings []string
}

// intern returns the string pool index for s, adding it if new.
func (g *generator) intern(s string) uint16 {
	if idx, ok := g.pool[s]; ok {
		return idx
	}
	idx := uint16(len(g.strings))
	g.pool[s] = idx
	g.strings = append(g.strings, s)
	return idx
}

func (g *generator) writePool(w *bytes.Buffer) error {
	if err := writeU16(w, uint16(len(g.strings))); err != nil {
		return err
	}
	for _, s := range g.strings {
		if len(s) > 0xFFFF {
			return fmt.Errorf("codegen: string constant too long (%d bytes)", len(s))
		}
		if err := writeU16(w, uint16(len(s))); err != nil {
			return err
		}
		w.WriteString(s)
	}
	return nil
}

func (g *generator) writeActor(w *bytes.Buffer, actor *ast.ActorDeclaration) error {
	if err := writeU16(w, g.intern(actor.Name.Name)); err != nil {
		return err
	}

	placement := placementDistributed
	if actor.Placement == ast.PlacementSingle {
		placement = placementSingle
	}
	w.WriteByte(placement)

	if err := writeU16(w, uint16(len(actor.Fields))); err != nil {
		return err
	}
	for _, field := range actor.Fields {
		if err := writeU16(w, g.intern(field.Name.Name)); err != nil {
			return err
		}
		if err := writeU16(w, g.intern(field.Type.String())); err != nil {
			return err
		}
		var flags byte
		if field.Mutable {
			flags |= 1
		}
		flags |= byte(field.Ownership) << 1
		w.WriteByte(flags)
	}

	if actor.Init != nil {
		w.WriteByte(1)
		w.WriteByte(byte(actor.Init.Kind))
		if err := g.writeParams(w, actor.Init.Params); err != nil {
			return err
		}
		if err := g.writeBody(w, actor.Init.Body); err != nil {
			return err
		}
	} else {
		w.WriteByte(0)
	}

	if err := writeU16(w, uint16(len(actor.Methods))); err != nil {
		return err
	}
	for _, method := range actor.Methods {
		if err := g.writeMethod(w, actor, method); err != nil {
			return err
		}
	}

	return nil
}

func (g *generator) writeMethod(w *bytes.Buffer, actor *ast.ActorDeclaration, method *ast.MethodDeclaration) error {
	if err := writeU16(w, g.intern(method.Name.Name)); err != nil {
		return err
	}

	var flags byte
	if method.IsAsync {
		flags |= 1
	}
	w.WriteByte(flags)
	w.WriteByte(byte(method.Scheduling))
	w.WriteByte(byte(method.Priority))

	if err := g.writeParams(w, method.Params); err != nil {
		return err
	}

	if method.Scheduling == ast.SchedTaskGroup {
		schedule := g.result.Schedules[actor.Name.Name+"."+method.Name.Name]
		if err := g.writeGraph(w, schedule); err != nil {
			return err
		}
	}

	return g.writeBody(w, method.Body)
}

func (g *generator) writeParams(w *bytes.Buffer, params []*ast.Parameter) error {
	if err := writeU16(w, uint16(len(params))); err != nil {
		return err
	}
	for _, param := range params {
		if err := writeU16(w, g.intern(param.Name.Name)); err != nil {
			return err
		}
		if err := writeU16(w, g.intern(param.Type.String())); err != nil {
			return err
		}
		var flags byte
		if param.Move {
			flags |= 1
		}
		w.WriteByte(flags)
	}
	return nil
}

// writeGraph encodes the task dependency graph: the DAG scheduler in the
// runtime executes independent nodes concurrently and a dependent node
// only after all its predecessors complete.
func (g *generator) writeGraph(w *bytes.Buffer, schedule *sema.MethodSchedule) error {
	graph := schedule.Graph
	if graph == nil {
		return writeU16(w, 0)
	}

	if err := writeU16(w, uint16(len(graph.Nodes))); err != nil {
		return err
	}
	for _, node := range graph.Nodes {
		if err := writeU16(w, g.intern(node.Binding)); err != nil {
			return err
		}
		if err := writeU16(w, g.intern(node.Call.Method.Name)); err != nil {
			return err
		}
	}

	var edgeCount uint16
	for _, deps := range graph.Edges {
		edgeCount += uint16(len(deps))
	}
	if err := writeU16(w, edgeCount); err != nil {
		return err
	}
	for from := 0; from < len(graph.Nodes); from++ {
		for _, to := range graph.Edges[from] {
			if err := writeU16(w, uint16(from)); err != nil {
				return err
			}
			if err := writeU16(w, uint16(to)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *generator) writeBody(w *bytes.Buffer, body *ast.BlockStatement) error {
	code := &bytes.Buffer{}
	if err := g.block(code, body); err != nil {
		return err
	}
	if err := writeU32(w, uint32(code.Len())); err != nil {
		return err
	}
	w.Write(code.Bytes())
	return nil
}

func (g *generator) block(code *bytes.Buffer, body *ast.BlockStatement) error {
	if body == nil {
		return nil
	}
	for _, stmt := range body.Statements {
		if err := g.statement(code, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) statement(code *bytes.Buffer, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		if err := g.expression(code, s.Value); err != nil {
			return err
		}
		code.WriteByte(OpStoreLocal)
		return writeU16(code, g.intern(s.Name.Name))

	case *ast.AssignStatement:
		if err := g.expression(code, s.Value); err != nil {
			return err
		}
		switch target := s.Target.(type) {
		case *ast.Identifier:
			code.WriteByte(OpStoreLocal)
			return writeU16(code, g.intern(target.Name))
		case *ast.FieldAccessExpression:
			code.WriteByte(OpStoreField)
			return writeU16(code, g.intern(target.Field.Name))
		}
		return fmt.Errorf("codegen: unsupported assignment target %T", s.Target)

	case *ast.ReturnStatement:
		if s.Value == nil {
			code.WriteByte(OpReturn)
			return nil
		}
		if err := g.expression(code, s.Value); err != nil {
			return err
		}
		code.WriteByte(OpReturnValue)
		return nil

	case *ast.IfStatement:
		return g.ifStatement(code, s)

	case *ast.ExpressionStatement:
		if err := g.expression(code, s.Expr); err != nil {
			return err
		}
		code.WriteByte(OpPop)
		return nil

	case *ast.BlockStatement:
		return g.block(code, s)
	}

	return fmt.Errorf("codegen: unsupported statement %T", stmt)
}

func (g *generator) ifStatement(code *bytes.Buffer, s *ast.IfStatement) error {
	if err := g.expression(code, s.Condition); err != nil {
		return err
	}

	code.WriteByte(OpJumpIfFalse)
	elsePatch := code.Len()
	writeU16(code, 0)

	if err := g.block(code, s.Then); err != nil {
		return err
	}

	if s.Else == nil {
		patchJump(code, elsePatch)
		return nil
	}

	code.WriteByte(OpJump)
	endPatch := code.Len()
	writeU16(code, 0)

	patchJump(code, elsePatch)

	if err := g.statement(code, s.Else); err != nil {
		return err
	}

	patchJump(code, endPatch)
	return nil
}

// patchJump back-fills a jump operand with the relative distance from
// the end of the operand to the current end of the stream.
func patchJump(code *bytes.Buffer, operandAt int) {
	distance := code.Len() - (operandAt + 2)
	b := code.Bytes()
	binary.BigEndian.PutUint16(b[operandAt:], uint16(distance))
}

func (g *generator) expression(code *bytes.Buffer, expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Identifier:
		code.WriteByte(OpLoadLocal)
		return writeU16(code, g.intern(e.Name))

	case *ast.Literal:
		code.WriteByte(OpLoadConst)
		code.WriteByte(byte(e.Kind))
		return writeU16(code, g.intern(e.Value))

	case *ast.BinaryExpression:
		if err := g.expression(code, e.Left); err != nil {
			return err
		}
		if err := g.expression(code, e.Right); err != nil {
			return err
		}
		code.WriteByte(OpBinary)
		return writeU16(code, g.intern(e.Operator))

	case *ast.CallExpression:
		return g.call(code, e)

	case *ast.AwaitExpression:
		if err := g.call(code, e.Call); err != nil {
			return err
		}
		code.WriteByte(OpAwait)
		return nil

	case *ast.MoveExpression:
		if err := g.expression(code, e.Operand); err != nil {
			return err
		}
		code.WriteByte(OpMove)
		return nil

	case *ast.CopyExpression:
		// The emitted copy must realize a deep, field-wise snapshot as
		// observed at the call's start, even for container-typed fields.
		if err := g.expression(code, e.Operand); err != nil {
			return err
		}
		code.WriteByte(OpCopy)
		return nil

	case *ast.SharedExpression:
		if err := g.expression(code, e.Operand); err != nil {
			return err
		}
		code.WriteByte(OpShared)
		return nil

	case *ast.FieldAccessExpression:
		if err := g.expression(code, e.Receiver); err != nil {
			return err
		}
		code.WriteByte(OpLoadField)
		return writeU16(code, g.intern(e.Field.Name))
	}

	return fmt.Errorf("codegen: unsupported expression %T", expr)
}

func (g *generator) call(code *bytes.Buffer, call *ast.CallExpression) error {
	if call.Receiver == nil {
		for _, arg := range call.Arguments {
			if err := g.expression(code, arg); err != nil {
				return err
			}
		}
		code.WriteByte(OpConstruct)
		if err := writeU16(code, g.intern(call.Method.Name)); err != nil {
			return err
		}
		code.WriteByte(byte(len(call.Arguments)))
		return nil
	}

	if err := g.expression(code, call.Receiver); err != nil {
		return err
	}
	for _, arg := range call.Arguments {
		if err := g.expression(code, arg); err != nil {
			return err
		}
	}
	code.WriteByte(OpCall)
	if err := writeU16(code, g.intern(call.Method.Name)); err != nil {
		return err
	}
	code.WriteByte(byte(len(call.Arguments)))
	return nil
}

func writeU16(w *bytes.Buffer, v uint16) error {
	return binary.Write(w, binary.BigEndian, v)
}

func writeU32(w *bytes.Buffer, v uint32) error {
	return binary.Write(w, binary.BigEndian, v)
}
