package metacall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/metacall/core/internal/loader"
	"github.com/metacall/core/internal/logging"
	"github.com/metacall/core/internal/marshal"
	"github.com/metacall/core/internal/metrics"
	"github.com/metacall/core/internal/tracing"
	"github.com/metacall/core/internal/value"
)

func resolveFunction(mgr *loader.Manager, name string) (*value.Function, error) {
	v, ok := mgr.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("metacall: %q is not defined in any loaded scope", name)
	}
	if v.Kind().String() != "function" {
		return nil, fmt.Errorf("metacall: %q is %s, not a function", name, v.Kind())
	}
	if v.Destroyed() {
		return nil, fmt.Errorf("metacall: %q has already been destroyed", name)
	}
	return v.Function(), nil
}

// dispatch wraps one adapter invocation with the ambient dispatch/invoke
// spans, duration metric, and per-call log entry described in SPEC_FULL §2.
func dispatch(tag, name string, async bool, fn func(ctx context.Context) (*value.Value, error)) (*value.Value, error) {
	ctx, span := tracing.StartDispatch(context.Background(), name, async)
	elapsed := loader.Elapsed()

	result, err := fn(ctx)

	durationMs := elapsed()
	tracing.End(span, err)

	success := err == nil && (result == nil || result.Kind().String() != "throwable")
	logErr := ""
	if err != nil {
		logErr = err.Error()
	} else if !success {
		logErr = result.Throwable().Wrapped.Exception().Message
	}
	logging.Default().Log(&logging.CallLog{
		Tag: tag, Function: name, DurationMs: int64(durationMs),
		Async: async, Success: success, Error: logErr,
	})

	status := "ok"
	if !success {
		status = "error"
	}
	metrics.Current().RecordInvocation(tag, name, status, durationMs)

	return result, err
}

// Call resolves name in the flattened cross-loader scope and invokes it
// synchronously (spec.md §4.6). A throwable-kind return indicates the
// target callable threw; Call itself returns a Go error only when the
// runtime is not initialized, when resolution fails (unknown name,
// non-function binding, destroyed binding), or when the adapter's Invoke
// returns one.
func Call(name string, args ...*value.Value) (*value.Value, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	fn, err := resolveFunction(mgr, name)
	if err != nil {
		return nil, err
	}
	tag := ownerTag(mgr, name)
	return dispatch(tag, name, false, func(ctx context.Context) (*value.Value, error) {
		_, span := tracing.StartInvoke(ctx, tag, name)
		result, invokeErr := fn.VTable.Invoke(args)
		tracing.End(span, invokeErr)
		return result, invokeErr
	})
}

// CallS is the slice-argument form of Call, matching the C-ABI's
// call_s(name, args[], n).
func CallS(name string, args []*value.Value) (*value.Value, error) {
	return Call(name, args...)
}

// AwaitS dispatches name's async invocation (spec.md §4.6). Each
// adapter's function vtable implements "await dispatches to the real
// async bridge if the function is async, otherwise synthesizes an
// immediate resolution" per its own concurrency profile (§4.5), except
// the native adapter, whose Await returns adapter.ErrNotApplicable. The
// façade's job is only to resolve the name and delegate, never to
// re-invoke the callable itself, since that would bypass the owning
// adapter's event-loop/GIL gating.
func AwaitS(name string, args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	mgr, err := currentManager()
	if err != nil {
		return err
	}
	fn, err := resolveFunction(mgr, name)
	if err != nil {
		return err
	}

	tag := ownerTag(mgr, name)
	_, err = dispatch(tag, name, true, func(dctx context.Context) (*value.Value, error) {
		_, span := tracing.StartInvoke(dctx, tag, name)
		awaitErr := fn.VTable.Await(args, resolve, reject, ctx)
		tracing.End(span, awaitErr)
		return nil, awaitErr
	})
	return err
}

// CallHandle invokes name looked up within h's own scope rather than the
// flattened cross-loader scope, matching the C-ABI's call_handle(h, name,
// ...).
func CallHandle(h *Handle, name string, args ...*value.Value) (*value.Value, error) {
	if h == nil || h.Ctx == nil {
		return nil, fmt.Errorf("metacall: nil handle")
	}
	v, ok := h.Ctx.Scope.Get(name)
	if !ok || v.Kind().String() != "function" {
		return nil, fmt.Errorf("metacall: %q is not a function in handle %s", name, h.ID)
	}
	if v.Destroyed() {
		return nil, fmt.Errorf("metacall: %q has already been destroyed in handle %s", name, h.ID)
	}
	fn := v.Function()
	return dispatch(h.Tag, name, false, func(ctx context.Context) (*value.Value, error) {
		_, span := tracing.StartInvoke(ctx, h.Tag, name)
		result, invokeErr := fn.VTable.Invoke(args)
		tracing.End(span, invokeErr)
		return result, invokeErr
	})
}

// FunctionMetaString is the serialized-string call variant (the C-ABI's
// fms(func, json_args, size, allocator)): json-decodes an array of
// arguments, dispatches through Call, and json-encodes the native
// representation of the result.
func FunctionMetaString(name, jsonArgs string) (string, error) {
	var native []any
	if jsonArgs != "" {
		if err := json.Unmarshal([]byte(jsonArgs), &native); err != nil {
			return "", fmt.Errorf("metacall: decode json args: %w", err)
		}
	}
	args := make([]*value.Value, len(native))
	for i, n := range native {
		args[i] = marshal.FromNative(n)
	}

	result, err := Call(name, args...)
	if err != nil {
		return "", err
	}
	out, err := marshal.ToNative(result)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("metacall: encode json result: %w", err)
	}
	return string(encoded), nil
}

// ownerTag reports the adapter tag that defined name, for span/log/metric
// labels; "unknown" if name somehow isn't resolvable (defensive only,
// since callers reach here after a successful resolveFunction).
func ownerTag(mgr *loader.Manager, name string) string {
	if tag, ok := mgr.ResolveTag(name); ok {
		return tag
	}
	return "unknown"
}
