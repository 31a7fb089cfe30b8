package metacall

import (
	"fmt"

	"github.com/metacall/core/internal/value"
)

// Inspect returns the serialized introspection map: for every
// bootstrapped adapter tag, every loaded handle and the functions its
// scope currently defines (spec.md §4.6, §6). Two calls with no
// intervening load/clear return byte-identical output (§8).
func Inspect() ([]byte, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	return mgr.Inspect()
}

// HandleExport returns a map-value snapshot of h's scope (spec.md §4.6).
func HandleExport(h *Handle) (*value.Value, error) {
	if h == nil || h.Ctx == nil {
		return nil, fmt.Errorf("metacall: nil handle")
	}
	return h.Ctx.Scope.Snapshot(), nil
}

// Function resolves name in the flattened cross-loader scope and returns
// it only if it is function-kind (the C-ABI's function(name)).
func Function(name string) (*value.Value, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	v, ok := mgr.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("metacall: %q is not defined in any loaded scope", name)
	}
	if v.Kind().String() != "function" {
		return nil, fmt.Errorf("metacall: %q is %s, not a function", name, v.Kind())
	}
	return v, nil
}

// HandleByName locates the loaded handle under tag that defines name (the
// C-ABI's handle(tag, name)).
func HandleByName(tag, name string) (*Handle, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	for _, h := range mgr.HandlesByTag(tag) {
		if h.Ctx == nil {
			continue
		}
		if _, ok := h.Ctx.Scope.Get(name); ok {
			return h, nil
		}
	}
	return nil, fmt.Errorf("metacall: no handle under %q defines %q", tag, name)
}
