// Package typeref models the declared types of handler parameters and
// responses.
//
// Declared types may still contain unresolved type parameters: a handler
// declared as returning Page[T] has not been instantiated, so the framework
// cannot know how to encode its response. IsConcrete reports whether a
// declared type is fully resolved.
package typeref

import (
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

const (
	KindNamed Kind = iota
	KindSlice
	KindMap
	KindPointer
	KindVar
	KindWildcard
	KindGenericArray
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindSlice:
		return "slice"
	case KindMap:
		return "map"
	case KindPointer:
		return "pointer"
	case KindVar:
		return "var"
	case KindWildcard:
		return "wildcard"
	case KindGenericArray:
		return "generic_array"
	case KindVoid:
		return "void"
	default:
		return "unknown"
	}
}

// Type is a declared type expression.
type Type interface {
	Kind() Kind
	String() string
}

// Named is a nominal type, optionally instantiated with type arguments.
// A Named without Args is a plain nominal type.
type Named struct {
	Package string
	Name    string
	Args    []Type
}

func (t *Named) Kind() Kind { return KindNamed }

func (t *Named) String() string {
	var b strings.Builder
	if t.Package != "" {
		b.WriteString(t.Package)
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('[')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(typeString(a))
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Slice is []Elem where Elem is not a bare type variable.
type Slice struct {
	Elem Type
}

func (t *Slice) Kind() Kind      { return KindSlice }
func (t *Slice) String() string { return "[]" + typeString(t.Elem) }

// Map is map[Key]Elem.
type Map struct {
	Key  Type
	Elem Type
}

func (t *Map) Kind() Kind      { return KindMap }
func (t *Map) String() string { return "map[" + typeString(t.Key) + "]" + typeString(t.Elem) }

// Pointer is *Elem.
type Pointer struct {
	Elem Type
}

func (t *Pointer) Kind() Kind      { return KindPointer }
func (t *Pointer) String() string { return "*" + typeString(t.Elem) }

// Var is an unresolved type parameter such as T.
type Var struct {
	Name string
}

func (t *Var) Kind() Kind      { return KindVar }
func (t *Var) String() string { return t.Name }

// Wildcard is an unknown type argument, written "?".
type Wildcard struct{}

func (t *Wildcard) Kind() Kind      { return KindWildcard }
func (t *Wildcard) String() string { return "?" }

// GenericArray is a slice whose element is a type variable, e.g. []T.
type GenericArray struct {
	Elem Type
}

func (t *GenericArray) Kind() Kind      { return KindGenericArray }
func (t *GenericArray) String() string { return "[]" + typeString(t.Elem) }

type voidType struct{}

func (voidType) Kind() Kind      { return KindVoid }
func (voidType) String() string { return "void" }

// Void is the declared type of a handler that returns nothing.
var Void Type = voidType{}

// Any is the erasure of a type variable.
var Any Type = &Named{Name: "any"}

// IsVoid reports whether t is Void or nil.
func IsVoid(t Type) bool {
	return t == nil || t.Kind() == KindVoid
}

// IsConcrete reports whether t contains no type variable, wildcard or
// generic array, recursively through type arguments and element types.
func IsConcrete(t Type) bool {
	switch t := t.(type) {
	case nil:
		return false
	case *Named:
		for _, a := range t.Args {
			if !IsConcrete(a) {
				return false
			}
		}
		return true
	case *Slice:
		return IsConcrete(t.Elem)
	case *Map:
		return IsConcrete(t.Key) && IsConcrete(t.Elem)
	case *Pointer:
		return IsConcrete(t.Elem)
	case voidType:
		return true
	default:
		// Var, Wildcard, GenericArray
		return false
	}
}

// Erase returns the raw form of t: type arguments are dropped and type
// variables become Any.
func Erase(t Type) Type {
	switch t := t.(type) {
	case nil:
		return Void
	case *Named:
		if len(t.Args) == 0 {
			return t
		}
		return &Named{Package: t.Package, Name: t.Name}
	case *Slice:
		return &Slice{Elem: Erase(t.Elem)}
	case *GenericArray:
		return &Slice{Elem: Erase(t.Elem)}
	case *Map:
		return &Map{Key: Erase(t.Key), Elem: Erase(t.Elem)}
	case *Pointer:
		return &Pointer{Elem: Erase(t.Elem)}
	case *Var, *Wildcard:
		return Any
	default:
		return t
	}
}

// Equal reports whether a and b denote the same type expression.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.String() == b.String()
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
