package value

import (
	"context"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Evaluator runs script source in a realm.
type Evaluator interface {
	Evaluate(ctx context.Context, r *Realm, source string) (Value, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, r *Realm, source string) (Value, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, r *Realm, source string) (Value, error) {
	return f(ctx, r, source)
}

// RunScript evaluates source with the realm's evaluator.
func (r *Realm) RunScript(ctx context.Context, source string) (Value, error) {
	return r.evaluator.Evaluate(ctx, r, source)
}

// literalEvaluator understands expression statements made of a single literal
// or a dotted global reference: JSON values, undefined, NaN, Infinity,
// BigInt literals and paths such as globalThis.Object.prototype. Anything else
// throws a SyntaxError.
type literalEvaluator struct{}

func (literalEvaluator) Evaluate(ctx context.Context, r *Realm, source string) (Value, error) {
	src := strings.TrimRightFunc(trimJSSpace(source), func(c rune) bool {
		return c == ';' || isJSSpace(c)
	})
	switch src {
	case "":
		return Undefined, nil
	case "undefined":
		return Undefined, nil
	case "NaN":
		return Number(math.NaN()), nil
	case "Infinity":
		return Number(math.Inf(1)), nil
	case "-Infinity":
		return Number(math.Inf(-1)), nil
	case "this":
		return r.Global, nil
	}
	if gjson.Valid(src) {
		return r.FromJSON(gjson.Parse(src)), nil
	}
	if len(src) >= 2 && src[0] == '\'' && src[len(src)-1] == '\'' && !strings.ContainsAny(src[1:len(src)-1], "'\\\n") {
		return String(src[1 : len(src)-1]), nil
	}
	if strings.HasSuffix(src, "n") {
		if b, ok := stringToBigInt(src[:len(src)-1]); ok && isDigits(strings.TrimPrefix(src[:len(src)-1], "-")) {
			return b, nil
		}
	}
	if path, ok := dottedPath(src); ok {
		return r.resolveGlobal(ctx, path)
	}
	return nil, r.Throwf(SyntaxError, "Unexpected token '%s'", firstToken(src))
}

func (r *Realm) resolveGlobal(ctx context.Context, path []string) (Value, error) {
	head := StringKey(path[0])
	if !r.Global.HasProperty(head) {
		return nil, r.Throwf(ReferenceError, "%s is not defined", path[0])
	}
	v, err := r.Global.Get(ctx, head)
	if err != nil {
		return nil, err
	}
	for _, name := range path[1:] {
		if IsNullish(v) {
			return nil, r.Throwf(TypeError, "Cannot read properties of %s (reading '%s')", Describe(v), name)
		}
		o, err := r.ToObject(v)
		if err != nil {
			return nil, err
		}
		if v, err = o.GetWithReceiver(ctx, StringKey(name), v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func dottedPath(src string) ([]string, bool) {
	parts := strings.Split(src, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return nil, false
		}
	}
	return parts, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func firstToken(src string) string {
	for i, c := range src {
		if isJSSpace(c) || strings.ContainsRune("(){}[];,", c) {
			if i == 0 {
				return string(c)
			}
			return src[:i]
		}
	}
	return src
}
