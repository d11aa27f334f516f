package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// Node is a parsed program. Trees are immutable and may be evaluated many
// times against different environments.
type Node interface {
	Eval(ctx *evalContext) (Primitive, error)
	Position() NodePosition
	String() string
}

const maxCallDepth = 128

type evalContext struct {
	env      Env
	scope    map[string]Primitive
	builtins *Builtins
	depth    int
}

// lookup resolves a name through lambda parameters, the caller's environment
// and configured constants, in that order.
func (c *evalContext) lookup(name string) (Primitive, bool) {
	if v, ok := c.scope[name]; ok {
		return v, true
	}
	if v, ok := c.env[name]; ok {
		return v, true
	}
	if v, ok := c.builtins.constants[name]; ok {
		return v, true
	}
	return nil, false
}

// evalValue folds evaluation failures into error values.
func evalValue(n Node, ctx *evalContext) Primitive {
	v, err := n.Eval(ctx)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		return NewError(ErrorCodeValue, err.Error())
	}
	return v
}

type NumberNode struct {
	Value    float64
	Pos      NodePosition
	Original string
}

func (n *NumberNode) Eval(*evalContext) (Primitive, error) { return n.Value, nil }
func (n *NumberNode) Position() NodePosition               { return n.Pos }
func (n *NumberNode) String() string                       { return formatNumber(n.Value) }

type StringNode struct {
	Value string
	Pos   NodePosition
}

func (n *StringNode) Eval(*evalContext) (Primitive, error) { return n.Value, nil }
func (n *StringNode) Position() NodePosition               { return n.Pos }

func (n *StringNode) String() string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

type BooleanNode struct {
	Value bool
	Pos   NodePosition
}

func (n *BooleanNode) Eval(*evalContext) (Primitive, error) { return n.Value, nil }
func (n *BooleanNode) Position() NodePosition               { return n.Pos }
func (n *BooleanNode) String() string                       { return toString(n.Value) }

// ErrorNode is an error literal such as #REF!.
type ErrorNode struct {
	Code ErrorCode
	Pos  NodePosition
}

func (n *ErrorNode) Eval(*evalContext) (Primitive, error) {
	return NewError(n.Code, ""), nil
}
func (n *ErrorNode) Position() NodePosition { return n.Pos }
func (n *ErrorNode) String() string         { return ErrorMapper[n.Code] }

// RefNode is a reference token, resolved by the caller through the
// environment under its exact source text.
type RefNode struct {
	Text string
	Pos  NodePosition
}

func (n *RefNode) Eval(ctx *evalContext) (Primitive, error) {
	if v, ok := ctx.lookup(n.Text); ok {
		return v, nil
	}
	return nil, NewError(ErrorCodeRef, fmt.Sprintf("unresolved reference %s", n.Text))
}
func (n *RefNode) Position() NodePosition { return n.Pos }
func (n *RefNode) String() string         { return n.Text }

// NameNode is a bare identifier: an alias, a constant or a lambda parameter.
type NameNode struct {
	Name string
	Pos  NodePosition
}

func (n *NameNode) Eval(ctx *evalContext) (Primitive, error) {
	if v, ok := ctx.lookup(n.Name); ok {
		return v, nil
	}
	return nil, NewError(ErrorCodeName, fmt.Sprintf("unknown name %s", n.Name))
}
func (n *NameNode) Position() NodePosition { return n.Pos }
func (n *NameNode) String() string         { return n.Name }

type BinaryOpNode struct {
	Op    BinaryOp
	Left  Node
	Right Node
	Pos   NodePosition
}

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (n *BinaryOpNode) Eval(ctx *evalContext) (Primitive, error) {
	left := evalValue(n.Left, ctx)
	right := evalValue(n.Right, ctx)
	_, leftArr := left.(Array)
	_, rightArr := right.(Array)
	if leftArr || rightArr {
		return broadcast(left, right, func(a, b Primitive) Primitive {
			return binaryScalar(n.Op, a, b)
		}), nil
	}
	return binaryScalar(n.Op, left, right), nil
}

func (n *BinaryOpNode) Position() NodePosition { return n.Pos }

func (n *BinaryOpNode) String() string {
	return "(" + n.Left.String() + binaryOpText[n.Op] + n.Right.String() + ")"
}

func binaryScalar(op BinaryOp, left, right Primitive) Primitive {
	if err := firstError(left, right); err != nil {
		return err
	}
	switch op {
	case BinOpConcat:
		return toString(left) + toString(right)
	case BinOpEqual:
		return comparePrimitives(left, right) == 0
	case BinOpNotEqual:
		return comparePrimitives(left, right) != 0
	case BinOpLess:
		return comparePrimitives(left, right) < 0
	case BinOpLessEqual:
		return comparePrimitives(left, right) <= 0
	case BinOpGreater:
		return comparePrimitives(left, right) > 0
	case BinOpGreaterEqual:
		return comparePrimitives(left, right) >= 0
	}

	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)
	if !leftOk || !rightOk {
		return NewError(ErrorCodeValue, fmt.Sprintf("operator %s requires numeric values", binaryOpText[op]))
	}
	switch op {
	case BinOpAdd:
		return leftNum + rightNum
	case BinOpSubtract:
		return leftNum - rightNum
	case BinOpMultiply:
		return leftNum * rightNum
	case BinOpDivide:
		if rightNum == 0 {
			return NewError(ErrorCodeDiv0, "Division by zero")
		}
		return leftNum / rightNum
	case BinOpPower:
		result := math.Pow(leftNum, rightNum)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return NewError(ErrorCodeNum, "")
		}
		return result
	}
	return NewError(ErrorCodeValue, "Unknown operator")
}

// broadcast applies f element-wise. A scalar operand is paired with every
// element of the other; two arrays must have the same shape.
func broadcast(left, right Primitive, f func(a, b Primitive) Primitive) Primitive {
	la, leftArr := left.(Array)
	ra, rightArr := right.(Array)
	rows, cols := 0, 0
	switch {
	case leftArr && rightArr:
		if la.Rows() != ra.Rows() || la.Cols() != ra.Cols() {
			return NewError(ErrorCodeValue, "array shapes differ")
		}
		rows, cols = la.Rows(), la.Cols()
	case leftArr:
		rows, cols = la.Rows(), la.Cols()
	default:
		rows, cols = ra.Rows(), ra.Cols()
	}
	out := NewArray(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a, b := left, right
			if leftArr {
				a = la.At(i, j)
			}
			if rightArr {
				b = ra.At(i, j)
			}
			out[i][j] = f(a, b)
		}
	}
	return out
}

type UnaryOpNode struct {
	Op      UnaryOp
	Operand Node
	Pos     NodePosition
}

func (n *UnaryOpNode) Eval(ctx *evalContext) (Primitive, error) {
	val := evalValue(n.Operand, ctx)
	if arr, ok := val.(Array); ok {
		return broadcast(arr, nil, func(a, _ Primitive) Primitive { return n.apply(a) }), nil
	}
	return n.apply(val), nil
}

func (n *UnaryOpNode) apply(val Primitive) Primitive {
	if err, ok := val.(*Error); ok {
		return err
	}
	num, ok := toNumber(val)
	if !ok {
		return NewError(ErrorCodeValue, "unary operator requires a numeric value")
	}
	switch n.Op {
	case UnaryOpMinus:
		return -num
	case UnaryOpPercent:
		return num / 100.0
	}
	return num
}

func (n *UnaryOpNode) Position() NodePosition { return n.Pos }

func (n *UnaryOpNode) String() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.String()
	case UnaryOpPercent:
		return "(" + n.Operand.String() + "%)"
	}
	return "+" + n.Operand.String()
}

// FunctionCallNode calls a builtin, or a lambda bound to the same name.
type FunctionCallNode struct {
	Name string // upper-cased, for builtin lookup
	Text string // as written, for environment lookup
	Args []Node
	Pos  NodePosition
}

func (n *FunctionCallNode) Eval(ctx *evalContext) (Primitive, error) {
	args := make([]Primitive, len(n.Args))
	for i, arg := range n.Args {
		args[i] = evalValue(arg, ctx)
	}
	if bound, ok := ctx.lookup(n.Text); ok {
		return callValue(ctx, bound, args)
	}
	result, err := ctx.builtins.Call(n.Name, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (n *FunctionCallNode) Position() NodePosition { return n.Pos }

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

// CallNode calls the value of an arbitrary expression, e.g.
// LAMBDA(x, x*2)(21).
type CallNode struct {
	Callee Node
	Args   []Node
	Pos    NodePosition
}

func (n *CallNode) Eval(ctx *evalContext) (Primitive, error) {
	callee := evalValue(n.Callee, ctx)
	args := make([]Primitive, len(n.Args))
	for i, arg := range n.Args {
		args[i] = evalValue(arg, ctx)
	}
	return callValue(ctx, callee, args)
}

func (n *CallNode) Position() NodePosition { return n.Pos }

func (n *CallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Callee.String() + "(" + strings.Join(args, ",") + ")"
}

func callValue(ctx *evalContext, callee Primitive, args []Primitive) (Primitive, error) {
	switch fn := callee.(type) {
	case *Error:
		return fn, nil
	case *Lambda:
		return callLambda(ctx, fn, args), nil
	}
	return nil, NewError(ErrorCodeValue, fmt.Sprintf("%s is not a function", toString(callee)))
}

func callLambda(ctx *evalContext, fn *Lambda, args []Primitive) Primitive {
	if len(args) != len(fn.Params) {
		return NewError(ErrorCodeNA, fmt.Sprintf("function expects %d arguments, got %d", len(fn.Params), len(args)))
	}
	if ctx.depth >= maxCallDepth {
		return NewError(ErrorCodeNum, "call depth exceeded")
	}
	scope := make(map[string]Primitive, len(fn.closure)+len(fn.Params))
	for k, v := range fn.closure {
		scope[k] = v
	}
	for i, p := range fn.Params {
		scope[p] = args[i]
	}
	child := &evalContext{env: ctx.env, scope: scope, builtins: ctx.builtins, depth: ctx.depth + 1}
	return evalValue(fn.Body, child)
}

type LambdaNode struct {
	Params []string
	Body   Node
	Pos    NodePosition
}

func (n *LambdaNode) Eval(ctx *evalContext) (Primitive, error) {
	closure := make(map[string]Primitive, len(ctx.scope))
	for k, v := range ctx.scope {
		closure[k] = v
	}
	return &Lambda{Params: n.Params, Body: n.Body, closure: closure}, nil
}

func (n *LambdaNode) Position() NodePosition { return n.Pos }

func (n *LambdaNode) String() string {
	return "LAMBDA(" + strings.Join(append(append([]string{}, n.Params...), n.Body.String()), ",") + ")"
}

// ArrayNode is a brace literal: {1,2;3,4}. Commas separate columns,
// semicolons rows.
type ArrayNode struct {
	Rows [][]Node
	Pos  NodePosition
}

func (n *ArrayNode) Eval(ctx *evalContext) (Primitive, error) {
	out := make(Array, len(n.Rows))
	for i, row := range n.Rows {
		out[i] = make([]Primitive, len(row))
		for j, item := range row {
			v := evalValue(item, ctx)
			if _, nested := v.(Array); nested {
				return nil, NewError(ErrorCodeValue, "array literals hold scalars only")
			}
			out[i][j] = v
		}
	}
	return out, nil
}

func (n *ArrayNode) Position() NodePosition { return n.Pos }

func (n *ArrayNode) String() string {
	rows := make([]string, len(n.Rows))
	for i, row := range n.Rows {
		items := make([]string, len(row))
		for j, item := range row {
			items[j] = item.String()
		}
		rows[i] = strings.Join(items, ",")
	}
	return "{" + strings.Join(rows, ";") + "}"
}

// ListNode is a bracket literal. [1,2,3] is a column; a list of lists is a
// matrix with one row per inner list.
type ListNode struct {
	Items []Node
	Pos   NodePosition
}

func (n *ListNode) Eval(ctx *evalContext) (Primitive, error) {
	if len(n.Items) == 0 {
		return nil, NewError(ErrorCodeValue, "empty list")
	}
	values := make([]Primitive, len(n.Items))
	nested := 0
	for i, item := range n.Items {
		values[i] = evalValue(item, ctx)
		if _, ok := values[i].(Array); ok {
			nested++
		}
	}
	if nested == 0 {
		return Column(values...), nil
	}
	if nested != len(values) {
		return nil, NewError(ErrorCodeValue, "cannot mix lists and scalars")
	}
	out := make(Array, len(values))
	for i, v := range values {
		for item := range v.(Array).Values() {
			out[i] = append(out[i], item)
		}
		if len(out[i]) != len(out[0]) {
			return nil, NewError(ErrorCodeValue, "rows have different lengths")
		}
	}
	return out, nil
}

func (n *ListNode) Position() NodePosition { return n.Pos }

func (n *ListNode) String() string {
	items := make([]string, len(n.Items))
	for i, item := range n.Items {
		items[i] = item.String()
	}
	return "[" + strings.Join(items, ",") + "]"
}

func parseNumberLiteral(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}
