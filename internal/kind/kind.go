// Package kind defines the closed set of value kinds that make up the
// polyglot type system. Every adapter, regardless of the guest runtime it
// bridges, marshals values down to one of these kinds — there is no
// extension point for adding new ones at runtime.
package kind

// Kind tags the payload carried by a Value.
type Kind int

const (
	Invalid Kind = iota
	Bool
	Char
	Short
	Int
	Long
	Float
	Double
	String
	Buffer
	Array
	Map
	Pointer
	Future
	Function
	Class
	Object
	Exception
	Throwable
	Null
)

var names = map[Kind]string{
	Invalid:   "invalid",
	Bool:      "bool",
	Char:      "char",
	Short:     "short",
	Int:       "int",
	Long:      "long",
	Float:     "float",
	Double:    "double",
	String:    "string",
	Buffer:    "buffer",
	Array:     "array",
	Map:       "map",
	Pointer:   "pointer",
	Future:    "future",
	Function:  "function",
	Class:     "class",
	Object:    "object",
	Exception: "exception",
	Throwable: "throwable",
	Null:      "null",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Scalar reports whether the kind is a fixed-size numeric or boolean scalar
// (the kinds for which plain copy is a value copy with no allocation).
func (k Kind) Scalar() bool {
	switch k {
	case Bool, Char, Short, Int, Long, Float, Double, Null:
		return true
	default:
		return false
	}
}

// Reference reports whether the kind follows reference-counted copy
// semantics under the owning adapter's rules (§3: "for function/class/
// object/future/pointer it increments a language-side reference").
func (k Kind) Reference() bool {
	switch k {
	case Function, Class, Object, Future, Pointer:
		return true
	default:
		return false
	}
}
