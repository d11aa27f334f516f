package formula

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
)

const maxCachedPrograms = 4096

// Interpreter evaluates programs. It is safe for concurrent use; parsed
// programs are cached by source text.
type Interpreter struct {
	builtins *Builtins

	mu    sync.RWMutex
	cache map[string]compiled
}

type compiled struct {
	root Node
	err  error
}

type options struct {
	clock     Clock
	rng       RandomGenerator
	locale    language.Tag
	constants Env
}

type Option func(*options)

// WithClock sets the time source for NOW and TODAY.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRandom sets the source for RAND.
func WithRandom(r RandomGenerator) Option {
	return func(o *options) { o.rng = r }
}

// WithLocale sets the locale used by FIXED and TEXT.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

// WithConstants binds names visible to every program, below the caller's
// environment.
func WithConstants(env Env) Option {
	return func(o *options) { o.constants = env }
}

func New(opts ...Option) *Interpreter {
	o := options{
		clock:  &WallClock{},
		rng:    &DefaultRandomGenerator{},
		locale: language.AmericanEnglish,
	}
	for _, opt := range opts {
		opt(&o)
	}
	constants := make(Env, len(o.constants))
	for k, v := range o.constants {
		constants[k] = v
	}
	return &Interpreter{
		builtins: NewBuiltins(o.clock, o.rng, o.locale, constants),
		cache:    make(map[string]compiled),
	}
}

func (in *Interpreter) Locale() language.Tag { return in.builtins.locale }

func (in *Interpreter) compile(src string) (Node, error) {
	in.mu.RLock()
	c, ok := in.cache[src]
	in.mu.RUnlock()
	if ok {
		return c.root, c.err
	}

	root, err := Parse(src)
	in.mu.Lock()
	if len(in.cache) >= maxCachedPrograms {
		in.cache = make(map[string]compiled)
	}
	in.cache[src] = compiled{root: root, err: err}
	in.mu.Unlock()
	return root, err
}

// Check reports the syntax error in src, if any.
func (in *Interpreter) Check(src string) error {
	_, err := in.compile(src)
	return err
}

// Run evaluates src against env. The error is non-nil only for programs
// that do not parse; runtime failures are returned as *Error values.
func (in *Interpreter) Run(src string, env Env) (Primitive, error) {
	root, err := in.compile(src)
	if err != nil {
		return nil, err
	}
	return evalValue(root, &evalContext{env: env, builtins: in.builtins}), nil
}

// Apply calls a function value with already evaluated arguments.
func (in *Interpreter) Apply(fn Primitive, args []Primitive, env Env) Primitive {
	ctx := &evalContext{env: env, builtins: in.builtins}
	v, err := callValue(ctx, fn, args)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		return NewError(ErrorCodeValue, err.Error())
	}
	return v
}

// UnresolvedIdentifiers lists the names src needs from its environment:
// references, names not bound by a LAMBDA or a constant, and calls to
// functions that are not builtins.
func (in *Interpreter) UnresolvedIdentifiers(src string) (map[string]struct{}, error) {
	root, err := in.compile(src)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	in.collectFree(root, nil, out)
	return out, nil
}

func (in *Interpreter) collectFree(n Node, bound map[string]bool, out map[string]struct{}) {
	switch node := n.(type) {
	case *RefNode:
		out[node.Text] = struct{}{}
	case *NameNode:
		if _, isConst := in.builtins.constants[node.Name]; !bound[node.Name] && !isConst {
			out[node.Name] = struct{}{}
		}
	case *FunctionCallNode:
		if !bound[node.Text] && !IsBuiltin(node.Name) {
			out[node.Text] = struct{}{}
		}
		for _, arg := range node.Args {
			in.collectFree(arg, bound, out)
		}
	case *LambdaNode:
		inner := make(map[string]bool, len(bound)+len(node.Params))
		for k := range bound {
			inner[k] = true
		}
		for _, p := range node.Params {
			inner[p] = true
		}
		in.collectFree(node.Body, inner, out)
	case *BinaryOpNode:
		in.collectFree(node.Left, bound, out)
		in.collectFree(node.Right, bound, out)
	case *UnaryOpNode:
		in.collectFree(node.Operand, bound, out)
	case *CallNode:
		in.collectFree(node.Callee, bound, out)
		for _, arg := range node.Args {
			in.collectFree(arg, bound, out)
		}
	case *ArrayNode:
		for _, row := range node.Rows {
			for _, item := range row {
				in.collectFree(item, bound, out)
			}
		}
	case *ListNode:
		for _, item := range node.Items {
			in.collectFree(item, bound, out)
		}
	}
}

// Volatile reports whether src calls NOW, TODAY or RAND.
func (in *Interpreter) Volatile(src string) bool {
	root, err := in.compile(src)
	if err != nil {
		return false
	}
	volatile := false
	Walk(root, func(n Node) {
		if call, ok := n.(*FunctionCallNode); ok && isVolatileFunction(call.Name) {
			volatile = true
		}
	})
	return volatile
}

// Tokenize returns the full token stream of src, whitespace included.
func (in *Interpreter) Tokenize(src string) ([]Token, error) {
	return NewLexer(src).Tokenize()
}

// Untokenize joins token texts back into source.
func Untokenize(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// TransformIdentifiers returns a copy of tokens where the text of every
// reference, bare identifier and non-builtin function name is replaced by
// fn's result. Other tokens are kept as they are.
func TransformIdentifiers(tokens []Token, fn func(Token) string) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		out[i] = tok
		switch tok.Type {
		case TokenRef, TokenIdentifier:
		case TokenFunction:
			if IsBuiltin(tok.Value) {
				continue
			}
		default:
			continue
		}
		if text := fn(tok); text != tok.Text {
			out[i].Text = text
			out[i].Value = text
		}
	}
	return out
}

// Untokenize is the method form of the package function, so the
// interpreter satisfies collaborator interfaces that expect it.
func (in *Interpreter) Untokenize(tokens []Token) string { return Untokenize(tokens) }

func (in *Interpreter) TransformIdentifiers(tokens []Token, fn func(Token) string) []Token {
	return TransformIdentifiers(tokens, fn)
}
