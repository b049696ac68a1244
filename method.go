package restree

import (
	"fmt"
)

// MethodKind distinguishes resource methods from sub-resource locators.
type MethodKind int

const (
	KindResourceMethod MethodKind = iota
	KindLocator
)

func (k MethodKind) String() string {
	if k == KindLocator {
		return "sub-resource locator"
	}
	return "resource method"
}

// ResourceMethod binds an HTTP method, or the locator marker, to an
// Invocable. An empty HTTP method marks a sub-resource locator.
type ResourceMethod struct {
	httpMethod string
	invocable  *Invocable
	consumes   []MediaType
	produces   []MediaType
	suspended  bool
	resource   string

	// badMediaTypes holds consumes/produces values that failed to parse.
	badMediaTypes []badMediaType
}

type badMediaType struct {
	value string
	err   error
}

// HTTPMethod returns the HTTP method, or "" for a locator.
func (m *ResourceMethod) HTTPMethod() string { return m.httpMethod }

// Kind returns KindLocator for methods without an HTTP method.
func (m *ResourceMethod) Kind() MethodKind {
	if m.httpMethod == "" {
		return KindLocator
	}
	return KindResourceMethod
}

// Invocable returns the bound handler description.
func (m *ResourceMethod) Invocable() *Invocable { return m.invocable }

// Consumes returns the accepted request media types. Empty means any.
func (m *ResourceMethod) Consumes() []MediaType { return append([]MediaType(nil), m.consumes...) }

// Produces returns the response media types. Empty means any.
func (m *ResourceMethod) Produces() []MediaType { return append([]MediaType(nil), m.produces...) }

// IsSuspendDeclared reports whether the method answers asynchronously.
func (m *ResourceMethod) IsSuspendDeclared() bool { return m.suspended }

// String identifies the method in diagnostics, e.g. "GET ResourceA.Get".
func (m *ResourceMethod) String() string {
	verb := m.httpMethod
	if verb == "" {
		verb = "LOCATOR"
	}
	return fmt.Sprintf("%s %s", verb, m.invocable)
}

// MethodBuilder configures one method of a Builder. Calls can be chained;
// the method is finalized when its Builder is built.
type MethodBuilder struct {
	httpMethod string
	invocable  *Invocable
	consumes   []MediaType
	produces   []MediaType
	suspended  bool
	bad        []badMediaType
}

// HandledBy binds h with the declared method signature and parameters.
func (mb *MethodBuilder) HandledBy(h Handler, method HandlingMethod, params ...Parameter) *MethodBuilder {
	mb.invocable = NewInvocable(h, method, params...)
	return mb
}

// HandledByFunc binds a Go function; see FuncInvocable.
func (mb *MethodBuilder) HandledByFunc(owner, name string, fn any, params ...Parameter) *MethodBuilder {
	mb.invocable = FuncInvocable(owner, name, fn, params...)
	return mb
}

// HandledByInflector binds an inflector.
func (mb *MethodBuilder) HandledByInflector(f Inflector) *MethodBuilder {
	mb.invocable = InflectorInvocable(f)
	return mb
}

// HandledByInvocable binds an already described invocable.
func (mb *MethodBuilder) HandledByInvocable(inv *Invocable) *MethodBuilder {
	mb.invocable = inv
	return mb
}

// Consumes sets the accepted request media types. Malformed values are
// dropped and reported when the model is validated.
func (mb *MethodBuilder) Consumes(types ...string) *MethodBuilder {
	mb.consumes = mb.parseMediaTypes(mb.consumes, types)
	return mb
}

// Produces sets the response media types. Malformed values are dropped and
// reported when the model is validated.
func (mb *MethodBuilder) Produces(types ...string) *MethodBuilder {
	mb.produces = mb.parseMediaTypes(mb.produces, types)
	return mb
}

func (mb *MethodBuilder) parseMediaTypes(dst []MediaType, types []string) []MediaType {
	for _, t := range types {
		mt, err := ParseMediaType(t)
		if err != nil {
			mb.bad = append(mb.bad, badMediaType{value: t, err: err})
			continue
		}
		dst = append(dst, mt)
	}
	return dst
}

// Suspended marks the method as answering asynchronously.
func (mb *MethodBuilder) Suspended() *MethodBuilder {
	mb.suspended = true
	return mb
}

func (mb *MethodBuilder) build(resource string) *ResourceMethod {
	inv := mb.invocable
	if inv == nil {
		inv = NewInvocable(notImplemented, HandlingMethod{Owner: resource, Name: "unbound"})
	}
	return &ResourceMethod{
		httpMethod: mb.httpMethod,
		invocable:  inv,
		consumes:   append([]MediaType(nil), mb.consumes...),
		produces:   append([]MediaType(nil), mb.produces...),
		suspended:  mb.suspended,
		resource:   resource,

		badMediaTypes: append([]badMediaType(nil), mb.bad...),
	}
}
