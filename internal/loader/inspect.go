package loader

import (
	"encoding/json"
	"sort"

	"github.com/metacall/core/internal/types"
)

// InspectFunction is one function's serialized signature within Inspect's
// output.
type InspectFunction struct {
	Name     string   `json:"name"`
	Params   []string `json:"params"`
	Variadic bool     `json:"variadic"`
	Async    bool     `json:"async"`
}

// InspectModule is one loaded handle's contribution to Inspect's output.
type InspectModule struct {
	HandleID  string            `json:"handle_id"`
	Functions []InspectFunction `json:"functions"`
}

// InspectResult is the full map `tag → [modules]` described by spec.md
// §4.2: "a map tag → [modules], each module → [functions, signatures,
// types]".
type InspectResult map[string][]InspectModule

// Inspect serializes the manager's current state: for each bootstrapped
// tag, every loaded handle and the functions its scope currently defines.
// Two successive calls with no intervening load/clear return
// byte-identical output (§8, "Inspect stability") because both the tag
// list and each handle's scope name order are stable and this function
// performs no further reordering beyond a deterministic per-tag sort of
// handle ids.
func (m *Manager) Inspect() ([]byte, error) {
	m.mu.Lock()
	tags := make([]string, len(m.order))
	copy(tags, m.order)
	m.mu.Unlock()

	result := make(InspectResult, len(tags))
	for _, tag := range tags {
		handles := m.HandlesByTag(tag)
		sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })

		modules := make([]InspectModule, 0, len(handles))
		for _, h := range handles {
			var fns []InspectFunction
			if h.Ctx != nil {
				for _, name := range h.Ctx.Scope.Names() {
					v, ok := h.Ctx.Scope.Get(name)
					if !ok || v.Kind().String() != "function" {
						continue
					}
					fn := v.Function()
					fns = append(fns, InspectFunction{
						Name:     fn.Name,
						Params:   paramNames(fn.Sig),
						Variadic: fn.Sig.Variadic(),
						Async:    fn.Async,
					})
				}
			}
			modules = append(modules, InspectModule{HandleID: h.ID, Functions: fns})
		}
		result[tag] = modules
	}

	return json.Marshal(result)
}

func paramNames(sig types.Signature) []string {
	names := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		names[i] = p.Name
	}
	return names
}
