package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// MaxCalls bounds the number of action calls a single snippet may contain.
const MaxCalls = 16

// argKind tells how a call argument is resolved at run time.
type argKind int

const (
	argLiteral argKind = iota
	argLocation
)

type arg struct {
	kind  argKind
	value string
}

// call is one validated invocation. scoped is true for `actions.name(...)`,
// whose unknown names are reported as not found rather than rejected.
type call struct {
	name   string
	args   []arg
	scoped bool
}

// descriptor is the structured form of action code.
type descriptor struct {
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
	Target string   `json:"target,omitempty"`
}

// compile turns action code into a list of calls, without running anything.
func compile(code string) ([]call, error) {
	code = stripFence(code)
	if code == "" {
		return nil, nil
	}

	if strings.HasPrefix(code, "{") || strings.HasPrefix(code, "[") {
		if calls, ok := compileDescriptors(code); ok {
			return limit(calls)
		}
	}

	program, err := parser.ParseFile(nil, "action.js", code, 0)
	if err != nil {
		return nil, &ExecutionError{Reason: "syntax error", Err: err}
	}

	var calls []call
	if err := compileStatements(program.Body, &calls, 0); err != nil {
		return nil, err
	}
	return limit(calls)
}

func limit(calls []call) ([]call, error) {
	if len(calls) > MaxCalls {
		return nil, rejected(fmt.Sprintf("too many calls (%d > %d)", len(calls), MaxCalls))
	}
	return calls, nil
}

func compileDescriptors(code string) ([]call, bool) {
	var list []descriptor
	if strings.HasPrefix(code, "{") {
		var d descriptor
		if err := json.Unmarshal([]byte(code), &d); err != nil {
			return nil, false
		}
		list = []descriptor{d}
	} else if err := json.Unmarshal([]byte(code), &list); err != nil {
		return nil, false
	}

	calls := make([]call, 0, len(list))
	for _, d := range list {
		if d.Action == "" {
			return nil, false
		}
		c := call{name: d.Action, scoped: true}
		args := d.Args
		if len(args) == 0 && d.Target != "" {
			args = []string{d.Target}
		}
		for _, a := range args {
			c.args = append(c.args, arg{kind: argLiteral, value: a})
		}
		calls = append(calls, c)
	}
	return calls, true
}

func compileStatements(stmts []ast.Statement, calls *[]call, depth int) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.EmptyStatement:
		case *ast.ExpressionStatement:
			if err := compileExpression(s.Expression, calls, depth); err != nil {
				return err
			}
		default:
			return rejected(fmt.Sprintf("statement %T is not allowed", stmt))
		}
	}
	return nil
}

func compileExpression(expr ast.Expression, calls *[]call, depth int) error {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		// Directive prologue such as "use strict".
		return nil
	case *ast.CallExpression:
		if body, ok := iifeBody(e); ok {
			if depth > 0 {
				return rejected("nested function wrappers are not allowed")
			}
			return compileStatements(body, calls, depth+1)
		}
		c, err := compileCall(e)
		if err != nil {
			return err
		}
		*calls = append(*calls, c)
		return nil
	default:
		return rejected(fmt.Sprintf("expression %T is not allowed", expr))
	}
}

// iifeBody recognises `(function () { ... })()` and `(() => { ... })()`.
func iifeBody(e *ast.CallExpression) ([]ast.Statement, bool) {
	if len(e.ArgumentList) != 0 {
		return nil, false
	}

	switch fn := e.Callee.(type) {
	case *ast.FunctionLiteral:
		if hasParams(fn.ParameterList) || fn.Body == nil {
			return nil, false
		}
		return fn.Body.List, true
	case *ast.ArrowFunctionLiteral:
		if hasParams(fn.ParameterList) {
			return nil, false
		}
		switch body := fn.Body.(type) {
		case *ast.BlockStatement:
			return body.List, true
		case *ast.ExpressionBody:
			return []ast.Statement{&ast.ExpressionStatement{Expression: body.Expression}}, true
		}
	}
	return nil, false
}

func hasParams(params *ast.ParameterList) bool {
	return params != nil && (len(params.List) > 0 || params.Rest != nil)
}

func compileCall(e *ast.CallExpression) (call, error) {
	var c call

	switch callee := e.Callee.(type) {
	case *ast.Identifier:
		c.name = callee.Name.String()
	case *ast.DotExpression:
		obj, ok := callee.Left.(*ast.Identifier)
		if !ok || obj.Name.String() != "actions" {
			return call{}, rejected("only actions.<name>(...) calls are allowed")
		}
		c.name = callee.Identifier.Name.String()
		c.scoped = true
	default:
		return call{}, rejected(fmt.Sprintf("callee %T is not allowed", e.Callee))
	}

	for _, a := range e.ArgumentList {
		compiled, err := compileArg(a)
		if err != nil {
			return call{}, err
		}
		c.args = append(c.args, compiled)
	}
	return c, nil
}

func compileArg(expr ast.Expression) (arg, error) {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return arg{kind: argLiteral, value: e.Value.String()}, nil
	case *ast.Identifier:
		if e.Name.String() == "location" {
			return arg{kind: argLocation}, nil
		}
	case *ast.DotExpression:
		if obj, ok := e.Left.(*ast.Identifier); ok && obj.Name.String() == "location" && e.Identifier.Name.String() == "href" {
			return arg{kind: argLocation}, nil
		}
	}
	return arg{}, rejected(fmt.Sprintf("argument %T is not allowed", expr))
}

// stripFence removes a surrounding Markdown code fence.
func stripFence(code string) string {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code
	}

	code = strings.TrimPrefix(code, "```")
	code = strings.TrimSpace(strings.TrimSuffix(code, "```"))
	if nl := strings.IndexByte(code, '\n'); nl >= 0 && isInfoString(code[:nl]) {
		code = code[nl+1:]
	}
	return strings.TrimSpace(code)
}

// isInfoString reports whether the first fenced line names a language
// (```js, ```javascript) instead of holding code.
func isInfoString(line string) bool {
	line = strings.TrimSpace(line)
	for _, r := range line {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '+') {
			return false
		}
	}
	return true
}
