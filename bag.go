package restree

import (
	"fmt"
	"strings"
)

// Bag is the canonical forest of root resources. Root paths are unique, and
// every resource in the forest satisfies the model invariants: at most one
// method per HTTP method, at most one locator, unique child paths.
//
// A Bag is immutable and safe for concurrent use.
type Bag struct {
	roots []*Resource
}

// RootResources returns the root resources in registration order.
func (b *Bag) RootResources() []*Resource {
	return append([]*Resource(nil), b.roots...)
}

// Root returns the root resource with the literal path template path, or nil.
func (b *Bag) Root(path string) *Resource {
	for _, r := range b.roots {
		if r.path == path {
			return r
		}
	}
	return nil
}

// Walk calls fn for every resource, parents before children, with the
// resource's full path template.
func (b *Bag) Walk(fn func(fullPath string, r *Resource)) {
	for _, r := range b.roots {
		walk("", r, fn)
	}
}

func walk(parent string, r *Resource, fn func(string, *Resource)) {
	full := JoinPath(parent, r.path)
	fn(full, r)
	for _, c := range r.children {
		walk(full, c, fn)
	}
}

// BagBuilder merges independently declared resources into a Bag.
type BagBuilder struct {
	resources []*Resource
}

// NewBagBuilder returns an empty BagBuilder.
func NewBagBuilder() *BagBuilder {
	return &BagBuilder{}
}

// Register adds resources. Registration order decides the order of roots
// and children in the Bag and which declaration is reported first on a
// conflict.
func (b *BagBuilder) Register(resources ...*Resource) *BagBuilder {
	for _, r := range resources {
		if r != nil {
			b.resources = append(b.resources, r)
		}
	}
	return b
}

// Build merges the registered resources. Conflicts are recorded in diags as
// fatal diagnostics; the first declaration of a conflicting method or
// locator is kept so that the rest of the tree can still be checked.
func (b *BagBuilder) Build(diags *Diagnostics) *Bag {
	return &Bag{roots: mergeResources("", b.resources, diags)}
}

// Merge merges resources into a Bag in one pass. The error is a
// *BuildError when the resources conflict.
func Merge(resources ...*Resource) (*Bag, error) {
	var diags Diagnostics
	bag := NewBagBuilder().Register(resources...).Build(&diags)
	return bag, diags.Err()
}

// mergeResources groups resources by literal path template, keeping the
// order in which each path was first seen, and merges every group.
func mergeResources(parent string, resources []*Resource, diags *Diagnostics) []*Resource {
	var order []string
	groups := make(map[string][]*Resource)
	for _, r := range resources {
		if _, seen := groups[r.path]; !seen {
			order = append(order, r.path)
		}
		groups[r.path] = append(groups[r.path], r)
	}

	merged := make([]*Resource, 0, len(order))
	for _, path := range order {
		merged = append(merged, mergeGroup(parent, path, groups[path], diags))
	}
	return merged
}

// mergeGroup merges resources sharing one path template. Children are
// merged recursively even for a single resource, since a declaration may
// itself hold several children with the same path.
func mergeGroup(parent, path string, group []*Resource, diags *Diagnostics) *Resource {
	full := JoinPath(parent, path)
	out := &Resource{path: path, name: group[0].name}

	var children []*Resource
	for _, r := range group {
		out.names = appendMissing(out.names, r.names...)

		for _, m := range r.methods {
			if first := out.ResourceMethod(m.httpMethod); first != nil {
				diags.Add(Diagnostic{
					Severity: SeverityFatal,
					Code:     DiagAmbiguousResourceMethod,
					Subject:  full,
					Message: fmt.Sprintf("%s and %s both handle %s %s",
						first.invocable, m.invocable, m.httpMethod, full),
					Details: map[string]any{
						"http_method": m.httpMethod,
						"first":       declaredBy(first),
						"second":      declaredBy(m),
					},
				})
				continue
			}
			out.methods = append(out.methods, m)
		}

		for _, l := range r.locators {
			if len(out.locators) > 0 {
				first := out.locators[0]
				diags.Add(Diagnostic{
					Severity: SeverityFatal,
					Code:     DiagDuplicateLocator,
					Subject:  full,
					Message: fmt.Sprintf("two sub-resource locators on the same path %s: %s and %s",
						full, first.invocable, l.invocable),
					Details: map[string]any{
						"first":  declaredBy(first),
						"second": declaredBy(l),
					},
				})
				continue
			}
			out.locators = append(out.locators, l)
		}

		children = append(children, r.children...)
	}

	out.children = mergeResources(full, children, diags)
	return out
}

func declaredBy(m *ResourceMethod) string {
	return m.resource + " " + m.String()
}

func appendMissing(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// JoinPath joins a parent path and a child path template with exactly one
// slash, always returning a path starting with "/".
func JoinPath(parent, child string) string {
	parent = strings.TrimSuffix(parent, "/")
	child = strings.Trim(child, "/")
	if child == "" {
		if parent == "" {
			return "/"
		}
		return parent
	}
	if !strings.HasPrefix(parent, "/") {
		parent = "/" + parent
	}
	return strings.TrimSuffix(parent, "/") + "/" + child
}
