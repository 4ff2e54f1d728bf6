package sema

import "github.com/replica-lang/replica/internal/ast"

// walkStatements visits every statement in the block, depth first.
func walkStatements(block *ast.BlockStatement, visit func(ast.Statement)) {
	if block == nil {
		return
	}
	for _, stmt := range block.Statements {
		visit(stmt)
		switch s := stmt.(type) {
		case *ast.BlockStatement:
			walkStatements(s, visit)
		case *ast.IfStatement:
			walkStatements(s.Then, visit)
			switch e := s.Else.(type) {
			case *ast.BlockStatement:
				walkStatements(e, visit)
			case *ast.IfStatement:
				walkStatements(&ast.BlockStatement{Statements: []ast.Statement{e}}, visit)
			}
		}
	}
}

// walkExpressions visits every expression reachable from the block,
// outermost first.
func walkExpressions(block *ast.BlockStatement, visit func(ast.Expression)) {
	walkStatements(block, func(stmt ast.Statement) {
		switch s := stmt.(type) {
		case *ast.LetStatement:
			walkExpr(s.Value, visit)
		case *ast.AssignStatement:
			walkExpr(s.Target, visit)
			walkExpr(s.Value, visit)
		case *ast.ReturnStatement:
			walkExpr(s.Value, visit)
		case *ast.IfStatement:
			walkExpr(s.Condition, visit)
		case *ast.ExpressionStatement:
			walkExpr(s.Expr, visit)
		}
	})
}

func walkExpr(expr ast.Expression, visit func(ast.Expression)) {
	if expr == nil {
		return
	}
	visit(expr)

	switch e := expr.(type) {
	case *ast.BinaryExpression:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *ast.CallExpression:
		walkExpr(e.Receiver, visit)
		for _, arg := range e.Arguments {
			walkExpr(arg, visit)
		}
	case *ast.AwaitExpression:
		walkExpr(e.Call, visit)
	case *ast.MoveExpression:
		walkExpr(e.Operand, visit)
	case *ast.CopyExpression:
		walkExpr(e.Operand, visit)
	case *ast.SharedExpression:
		walkExpr(e.Operand, visit)
	case *ast.FieldAccessExpression:
		walkExpr(e.Receiver, visit)
	}
}
