package typeref

import (
	"reflect"
	"strings"
)

// FromReflect converts a runtime type. Runtime types are always
// instantiated, so the result is concrete. A nil type converts to Void.
func FromReflect(t reflect.Type) Type {
	if t == nil {
		return Void
	}
	if name := t.Name(); name != "" {
		if i := strings.IndexByte(name, '['); i > 0 {
			// Instantiated generic, e.g. Page[github.com/acme/api.User].
			if parsed, err := Parse(name); err == nil {
				if n, ok := parsed.(*Named); ok {
					n.Package = t.PkgPath()
					return n
				}
			}
			return &Named{Package: t.PkgPath(), Name: name[:i]}
		}
		return &Named{Package: t.PkgPath(), Name: name}
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return &Slice{Elem: FromReflect(t.Elem())}
	case reflect.Map:
		return &Map{Key: FromReflect(t.Key()), Elem: FromReflect(t.Elem())}
	case reflect.Pointer:
		return &Pointer{Elem: FromReflect(t.Elem())}
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return Any
		}
	}
	return &Named{Name: t.String()}
}
