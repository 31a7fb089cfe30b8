package metacall

import (
	"github.com/metacall/core/internal/adapter"
)

// Handle is an opaque reference to one loaded unit within one adapter
// (spec.md glossary). Obtained from LoadFromFile/Memory/Package/
// Configuration and consumed by Clear/CallHandle/HandleExport.
type Handle = adapter.Handle

func adapterSettings(tag string) (map[string]any, []string) {
	global.mu.Lock()
	cfg := global.cfg
	global.mu.Unlock()
	ac := cfg.AdapterByTag(tag)
	return ac.Settings, ac.ExecutionPaths
}

// LoadFromFile loads paths under tag's adapter, bootstrapping it on first
// use and merging every discovered name into the flattened scope (spec.md
// §4.2, §4.6).
func LoadFromFile(tag string, paths []string) (*Handle, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	settings, execPaths := adapterSettings(tag)
	return mgr.LoadFromFile(tag, paths, settings, execPaths)
}

// LoadFromMemory loads a synthetic module named name from buf under tag's
// adapter.
func LoadFromMemory(tag, name string, buf []byte) (*Handle, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	settings, execPaths := adapterSettings(tag)
	return mgr.LoadFromMemory(tag, name, buf, settings, execPaths)
}

// LoadFromPackage loads an adapter-defined binary/package form (for the
// native adapter, a local path or an s3://bucket/key URI, spec.md §4.8).
func LoadFromPackage(tag, path string) (*Handle, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	settings, execPaths := adapterSettings(tag)
	return mgr.LoadFromPackage(tag, path, settings, execPaths)
}

// LoadFromConfiguration reads a manifest enumerating, per language, an
// execution path and an array of scripts, and loads each entry in order
// (spec.md §6).
func LoadFromConfiguration(path string) ([]*Handle, error) {
	mgr, err := currentManager()
	if err != nil {
		return nil, err
	}
	return mgr.LoadFromConfiguration(path)
}

// Clear destroys h's scope via its owning adapter and removes its names
// from the flattened scope (spec.md §4.2, §8 invariant 2).
func Clear(h *Handle) error {
	mgr, err := currentManager()
	if err != nil {
		return err
	}
	return mgr.Clear(h)
}
