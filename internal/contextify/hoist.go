package contextify

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
	"github.com/dop251/goja/unistring"
)

// parseHoisted parses src and rewrites its top level so the program can run
// against a proxy global.
//
// The proxy global cannot hold non-configurable properties, which is what the
// engine creates for top-level var and function declarations. Var names are
// returned so the caller can declare them through the proxy before each run;
// the engine then finds them present and skips its own definition. Function
// declarations become assignments placed right after the directive prologue,
// keeping their hoisting order and leaving "use strict" detection intact.
func parseHoisted(origin, src string) (*ast.Program, []string, error) {
	prg, err := goja.Parse(origin, src)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	seen := make(map[unistring.String]struct{})
	declare := func(name unistring.String) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name.String())
	}

	for _, decl := range prg.DeclarationList {
		for _, b := range decl.List {
			bindingNames(b.Target, declare)
		}
	}

	var prologue, funcs, rest []ast.Statement
	inPrologue := true
	for _, st := range prg.Body {
		if inPrologue && isDirective(st) {
			prologue = append(prologue, st)
			continue
		}
		inPrologue = false

		if fd, ok := st.(*ast.FunctionDeclaration); ok && fd.Function.Name != nil {
			declare(fd.Function.Name.Name)
			funcs = append(funcs, assignFunction(fd.Function))
			continue
		}
		rest = append(rest, st)
	}

	if len(funcs) > 0 {
		body := make([]ast.Statement, 0, len(prg.Body))
		body = append(body, prologue...)
		body = append(body, funcs...)
		body = append(body, rest...)
		prg.Body = body
	}
	return prg, names, nil
}

func isDirective(st ast.Statement) bool {
	es, ok := st.(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	_, ok = es.Expression.(*ast.StringLiteral)
	return ok
}

// assignFunction builds `void (name = function name(...) {...})`.
func assignFunction(fn *ast.FunctionLiteral) ast.Statement {
	return &ast.ExpressionStatement{
		Expression: &ast.UnaryExpression{
			Operator: token.VOID,
			Idx:      fn.Function,
			Operand: &ast.AssignExpression{
				Operator: token.ASSIGN,
				Left:     &ast.Identifier{Name: fn.Name.Name, Idx: fn.Name.Idx},
				Right:    fn,
			},
		},
	}
}

// bindingNames reports every identifier bound by a declaration target.
func bindingNames(target ast.Node, fn func(unistring.String)) {
	switch t := target.(type) {
	case *ast.Identifier:
		fn(t.Name)
	case *ast.AssignExpression:
		bindingNames(t.Left, fn)
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if el != nil {
				bindingNames(el, fn)
			}
		}
		if t.Rest != nil {
			bindingNames(t.Rest, fn)
		}
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch p := prop.(type) {
			case *ast.PropertyShort:
				fn(p.Name.Name)
			case *ast.PropertyKeyed:
				bindingNames(p.Value, fn)
			}
		}
		if t.Rest != nil {
			bindingNames(t.Rest, fn)
		}
	}
}
