package restree

import (
	"fmt"
	"strings"
)

// Resource is a path-template addressed node of the routing tree.
//
// A Resource returned by Builder.Build is a declaration: it may still hold
// duplicate HTTP methods, several locators or several children with the
// same path, because conflicts are resolved by the merge into a Bag. Every
// Resource reachable from a Bag satisfies the model invariants.
//
// Resources are read-only; accessors return copies.
type Resource struct {
	path     string
	name     string
	names    []string
	methods  []*ResourceMethod
	locators []*ResourceMethod
	children []*Resource
}

// Path returns the literal path template.
func (r *Resource) Path() string { return r.path }

// Name returns the name of the first declaration of this resource.
func (r *Resource) Name() string { return r.name }

// Names returns the names of every declaration merged into this resource.
func (r *Resource) Names() []string { return append([]string(nil), r.names...) }

// ResourceMethods returns the methods bound to an HTTP method.
func (r *Resource) ResourceMethods() []*ResourceMethod {
	return append([]*ResourceMethod(nil), r.methods...)
}

// ResourceMethod returns the method bound to httpMethod, or nil.
func (r *Resource) ResourceMethod(httpMethod string) *ResourceMethod {
	for _, m := range r.methods {
		if m.httpMethod == httpMethod {
			return m
		}
	}
	return nil
}

// Locator returns the sub-resource locator, or nil.
func (r *Resource) Locator() *ResourceMethod {
	if len(r.locators) == 0 {
		return nil
	}
	return r.locators[0]
}

// AllMethods returns the resource methods followed by the locator, if any.
func (r *Resource) AllMethods() []*ResourceMethod {
	all := r.ResourceMethods()
	if l := r.Locator(); l != nil {
		all = append(all, l)
	}
	return all
}

// Children returns the child resources in declaration order.
func (r *Resource) Children() []*Resource {
	return append([]*Resource(nil), r.children...)
}

// Child returns the child with the literal path template path, or nil.
func (r *Resource) Child(path string) *Resource {
	for _, c := range r.children {
		if c.path == path {
			return c
		}
	}
	return nil
}

func (r *Resource) String() string {
	verbs := make([]string, 0, len(r.methods))
	for _, m := range r.methods {
		verbs = append(verbs, m.httpMethod)
	}
	locator := ""
	if len(r.locators) > 0 {
		locator = " +locator"
	}
	return fmt.Sprintf("Resource{%q [%s]%s children=%d}", r.path, strings.Join(verbs, " "), locator, len(r.children))
}

// Builder assembles a Resource. Building never fails; conflicting
// declarations are reported when resources are merged and validated.
type Builder struct {
	path     string
	name     string
	methods  []*MethodBuilder
	children []*childEntry
}

// childEntry is either a nested builder or a pre-built resource.
type childEntry struct {
	builder  *Builder
	resource *Resource
}

// NewBuilder returns a builder for a resource at path.
func NewBuilder(path string) *Builder {
	return &Builder{path: path}
}

// Path overrides the path template.
func (b *Builder) Path(path string) *Builder {
	b.path = path
	return b
}

// Name sets the name reported in diagnostics, typically the handler type.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// AddMethod adds a method bound to httpMethod. An empty httpMethod adds a
// sub-resource locator.
func (b *Builder) AddMethod(httpMethod string) *MethodBuilder {
	mb := &MethodBuilder{httpMethod: httpMethod}
	b.methods = append(b.methods, mb)
	return mb
}

// AddLocator adds a sub-resource locator.
func (b *Builder) AddLocator() *MethodBuilder {
	return b.AddMethod("")
}

// AddChildResource returns the builder of the child at path, creating it on
// first use. Repeated calls with the same literal path return the same
// builder.
func (b *Builder) AddChildResource(path string) *Builder {
	for _, c := range b.children {
		if c.builder != nil && c.builder.path == path {
			return c.builder
		}
	}
	child := NewBuilder(path).Name(b.name)
	b.children = append(b.children, &childEntry{builder: child})
	return child
}

// AddChild attaches an already built child resource.
func (b *Builder) AddChild(r *Resource) *Builder {
	b.children = append(b.children, &childEntry{resource: r})
	return b
}

// Build freezes the builder into a Resource declaration.
func (b *Builder) Build() *Resource {
	name := b.name
	if name == "" {
		name = b.path
	}
	r := &Resource{
		path:  b.path,
		name:  name,
		names: []string{name},
	}
	for _, mb := range b.methods {
		m := mb.build(name)
		if m.Kind() == KindLocator {
			r.locators = append(r.locators, m)
		} else {
			r.methods = append(r.methods, m)
		}
	}
	for _, c := range b.children {
		if c.builder != nil {
			r.children = append(r.children, c.builder.Build())
		} else if c.resource != nil {
			r.children = append(r.children, c.resource)
		}
	}
	return r
}
