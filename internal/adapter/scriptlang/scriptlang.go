// Package scriptlang implements the tiny textual mini-language shared by
// every scripting adapter in this module (mock, eventloop, gil, thread).
// None of these adapters embeds a real foreign interpreter; each
// simulates one by parsing this format and evaluating a small fixed set
// of behaviors. Factoring the parser and evaluator out here keeps the
// four adapters' real differences — their concurrency discipline — the
// only thing that differs between their source files.
//
// One function per line:
//
//	name(params) = behavior
//
// behavior is one of: concat, add, double, echo, apply,
// throw:Label:Message, or async:<behavior> to mark the function async.
package scriptlang

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/metacall/core/internal/kind"
	"github.com/metacall/core/internal/value"
)

// Func is one parsed function definition.
type Func struct {
	Name     string
	Params   []string
	Behavior string
	Async    bool
}

// Parse parses a script's source text into its function definitions.
func Parse(src []byte) ([]Func, error) {
	var out []Func
	sc := bufio.NewScanner(strings.NewReader(string(src)))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("scriptlang: line %d: missing '=' in %q", lineNo, line)
		}
		head := strings.TrimSpace(line[:eq])
		behavior := strings.TrimSpace(line[eq+1:])

		open, closeIdx := strings.Index(head, "("), strings.LastIndex(head, ")")
		if open < 0 || closeIdx < 0 || closeIdx < open {
			return nil, fmt.Errorf("scriptlang: line %d: malformed signature %q", lineNo, head)
		}
		name := strings.TrimSpace(head[:open])
		if name == "" {
			return nil, fmt.Errorf("scriptlang: line %d: empty function name", lineNo)
		}
		var params []string
		for _, p := range strings.Split(head[open+1:closeIdx], ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				params = append(params, p)
			}
		}

		async := false
		if strings.HasPrefix(behavior, "async:") {
			async = true
			behavior = strings.TrimPrefix(behavior, "async:")
		}
		out = append(out, Func{Name: name, Params: params, Behavior: behavior, Async: async})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scriptlang: no functions defined")
	}
	return out, nil
}

// Throwable builds a throwable-kind value wrapping a labeled exception.
func Throwable(label, msg string) *value.Value {
	return value.NewExceptionThrowable(msg, label, 0, "")
}

// Numeric coerces a scalar value to float64 for the arithmetic behaviors.
func Numeric(v *value.Value) float64 {
	switch v.Kind() {
	case kind.Int:
		return float64(v.Int())
	case kind.Long:
		return float64(v.Long())
	case kind.Float:
		return float64(v.Float())
	case kind.Double:
		return v.Double()
	case kind.Short:
		return float64(v.Short())
	case kind.String:
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// Eval runs a behavior against its arguments. It takes no lock and touches
// no adapter concurrency state itself, so every adapter can call it either
// inline or after acquiring whatever gate its profile requires. The one
// exception is the apply behavior, which invokes the argument function's
// vtable and may block on that function's own adapter.
func Eval(behavior string, args []*value.Value) (*value.Value, error) {
	switch behavior {
	case "concat":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.String())
		}
		return value.NewString(sb.String()), nil

	case "echo":
		if len(args) == 0 {
			return value.NewNull(), nil
		}
		return args[0].Copy(), nil

	case "double":
		if len(args) == 0 {
			return Throwable("TypeError", "double expects one numeric argument"), fmt.Errorf("arity")
		}
		return value.NewDouble(Numeric(args[0]) * 2), nil

	case "add":
		var sum float64
		for _, a := range args {
			sum += Numeric(a)
		}
		return value.NewDouble(sum), nil

	case "apply":
		// Calls args[0] (a function-kind callback) with the remaining
		// arguments — this is how a scripting adapter demonstrates a
		// callback crossing back into the host (spec.md §4.4, scenario 4).
		if len(args) < 1 || args[0].Kind() != kind.Function {
			return Throwable("TypeError", "apply expects a function as its first argument"), fmt.Errorf("bad callback")
		}
		if args[0].Destroyed() {
			return Throwable("ReferenceError", "apply: callback has already been destroyed"), fmt.Errorf("callback destroyed")
		}
		fn := args[0].Function()
		result, err := fn.VTable.Invoke(args[1:])
		if err != nil {
			return Throwable("RuntimeError", err.Error()), err
		}
		return result, nil

	default:
		if strings.HasPrefix(behavior, "throw:") {
			parts := strings.SplitN(behavior, ":", 3)
			label, msg := "RuntimeError", "mock error"
			if len(parts) >= 2 {
				label = parts[1]
			}
			if len(parts) >= 3 {
				msg = parts[2]
			}
			return Throwable(label, msg), fmt.Errorf("%s: %s", label, msg)
		}
		return Throwable("RuntimeError", "unknown behavior "+behavior), fmt.Errorf("unknown behavior")
	}
}
