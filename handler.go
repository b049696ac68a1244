package restree

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime"

	"github.com/broady/restree/typeref"
)

// Handler is the invocation target of a resource method or sub-resource
// locator. Args holds one bound value per declared parameter.
type Handler interface {
	Invoke(r *http.Request, args []any) (any, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(r *http.Request, args []any) (any, error)

// Invoke calls f(r, args).
func (f HandlerFunc) Invoke(r *http.Request, args []any) (any, error) {
	return f(r, args)
}

// Inflector handles a request directly, without declared parameters.
type Inflector func(r *http.Request) (any, error)

// Invoke calls f(r). Inflectors take no bound arguments.
func (f Inflector) Invoke(r *http.Request, _ []any) (any, error) {
	return f(r)
}

// HandlingMethod is the declared signature of a handler method, as a
// scanner or a declaration file reports it.
type HandlingMethod struct {
	// Owner is the handler type the method belongs to.
	Owner string
	Name  string
	// Designators lists the HTTP method markers declared on the method,
	// e.g. ["GET"]. More than one is an error.
	Designators []string
	// Path is the method-level path declaration; nil when absent.
	Path *string
	// Returns is the declared (possibly generic) return type.
	Returns typeref.Type
}

func (m HandlingMethod) String() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "." + m.Name
}

// Invocable binds a Handler to its declared signature and parameters.
// It is immutable once constructed.
type Invocable struct {
	handler   Handler
	method    HandlingMethod
	params    []Parameter
	inflector bool
}

// NewInvocable describes handler h with the declared method signature and
// parameters.
func NewInvocable(h Handler, method HandlingMethod, params ...Parameter) *Invocable {
	if method.Returns == nil {
		method.Returns = typeref.Void
	}
	return &Invocable{
		handler: h,
		method:  method,
		params:  append([]Parameter(nil), params...),
	}
}

// InflectorInvocable describes an inflector handler.
func InflectorInvocable(f Inflector) *Invocable {
	return &Invocable{
		handler: f,
		method: HandlingMethod{
			Owner:   "Inflector",
			Name:    funcName(f),
			Returns: typeref.Any,
		},
		inflector: true,
	}
}

// DeclaredInflector describes an inflector by its declared signature
// rather than by the Go function behind it.
func DeclaredInflector(f Inflector, method HandlingMethod, params ...Parameter) *Invocable {
	inv := NewInvocable(f, method, params...)
	inv.inflector = true
	return inv
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// FuncInvocable describes a Go function used as a handler. The function may
// take a leading context.Context (the request context) followed by one
// argument per parameter, and may return (T, error), (T), (error) or
// nothing. Parameter types not given explicitly are taken from the function.
//
// FuncInvocable panics if fn is not a function or its arity does not match
// params.
func FuncInvocable(owner, name string, fn any, params ...Parameter) *Invocable {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		panic(fmt.Sprintf("restree: handler %s.%s must be a function, got %T", owner, name, fn))
	}
	ft := fv.Type()

	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		offset = 1
	}
	if ft.NumIn()-offset != len(params) {
		panic(fmt.Sprintf("restree: handler %s.%s takes %d argument(s), %d parameter(s) declared",
			owner, name, ft.NumIn()-offset, len(params)))
	}

	bound := make([]Parameter, len(params))
	for i, p := range params {
		in := ft.In(i + offset)
		if p.GoType == nil {
			p.GoType = in
		}
		if p.Type == nil {
			p.Type = typeref.FromReflect(in)
		}
		bound[i] = p
	}

	returns := typeref.Void
	var resultIndex, errIndex = -1, -1
	for i := 0; i < ft.NumOut(); i++ {
		out := ft.Out(i)
		if out == errorType && i == ft.NumOut()-1 {
			errIndex = i
			continue
		}
		if resultIndex < 0 {
			resultIndex = i
			returns = typeref.FromReflect(out)
		}
	}

	call := func(r *http.Request, args []any) (any, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if offset == 1 {
			in = append(in, reflect.ValueOf(r.Context()))
		}
		for i, a := range args {
			t := ft.In(i + offset)
			if a == nil {
				in = append(in, reflect.Zero(t))
				continue
			}
			v := reflect.ValueOf(a)
			if !v.Type().AssignableTo(t) {
				if !v.Type().ConvertibleTo(t) {
					return nil, Errorf(CodeInvalidArgument, "argument %d: cannot use %s as %s", i+1, v.Type(), t)
				}
				v = v.Convert(t)
			}
			in = append(in, v)
		}

		out := fv.Call(in)
		var res any
		if resultIndex >= 0 {
			res = out[resultIndex].Interface()
		}
		if errIndex >= 0 {
			if err, _ := out[errIndex].Interface().(error); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	return NewInvocable(HandlerFunc(call), HandlingMethod{
		Owner:   owner,
		Name:    name,
		Returns: returns,
	}, bound...)
}

// Handler returns the invocation target.
func (inv *Invocable) Handler() Handler { return inv.handler }

// Method returns the declared handling method.
func (inv *Invocable) Method() HandlingMethod { return inv.method }

// Parameters returns the declared parameters in order.
func (inv *Invocable) Parameters() []Parameter {
	return append([]Parameter(nil), inv.params...)
}

// ResponseType returns the declared, possibly generic, response type.
func (inv *Invocable) ResponseType() typeref.Type { return inv.method.Returns }

// RawResponseType returns the erased response type.
func (inv *Invocable) RawResponseType() typeref.Type { return typeref.Erase(inv.method.Returns) }

// RequiresEntity reports whether any parameter is read from the request body.
func (inv *Invocable) RequiresEntity() bool {
	for _, p := range inv.params {
		if p.Source == SourceEntity {
			return true
		}
	}
	return false
}

// IsInflector reports whether the handler is an Inflector.
func (inv *Invocable) IsInflector() bool { return inv.inflector }

func (inv *Invocable) String() string { return inv.method.String() }

func funcName(f any) string {
	fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer())
	if fn == nil {
		return "func"
	}
	return fn.Name()
}

// notImplemented answers requests for methods declared without a handler.
var notImplemented = Inflector(func(r *http.Request) (any, error) {
	return nil, Errorf(CodeNotImplemented, "%s %s has no handler", r.Method, r.URL.Path)
})
