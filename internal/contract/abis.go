package contract

import "sort"

// BuiltinKind is an artifact embedded in the binary, usable without an
// artifacts directory. Built-ins register themselves from init().
type BuiltinKind struct {
	ID          string // machine key, e.g. "fiattoken"
	Description string // one-line summary shown in `contract builtins`
	Artifact    *Artifact
}

var builtinRegistry = map[string]BuiltinKind{}

// RegisterBuiltin adds a built-in artifact to the global registry.
func RegisterBuiltin(b BuiltinKind) {
	builtinRegistry[b.ID] = b
}

// GetBuiltin returns a built-in by ID or by contract name.
func GetBuiltin(ref string) (BuiltinKind, bool) {
	if b, ok := builtinRegistry[ref]; ok {
		return b, true
	}
	for _, b := range builtinRegistry {
		if b.Artifact.ContractName == ref {
			return b, true
		}
	}
	return BuiltinKind{}, false
}

// MustBuiltinInterface returns the parsed interface of a built-in. Built-ins
// are validated by tests, so a failure here is a programming error.
func MustBuiltinInterface(ref string) *Interface {
	b, ok := GetBuiltin(ref)
	if !ok {
		panic("unknown built-in contract " + ref)
	}
	iface, err := b.Artifact.Interface()
	if err != nil {
		panic(err)
	}
	return iface
}

// AllBuiltins returns all registered built-ins sorted by ID.
func AllBuiltins() []BuiltinKind {
	out := make([]BuiltinKind, 0, len(builtinRegistry))
	for _, b := range builtinRegistry {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
