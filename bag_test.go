package restree

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/broady/restree/typeref"
)

func stub(owner, name string) *Invocable {
	return NewInvocable(HandlerFunc(func(*http.Request, []any) (any, error) {
		return owner + "." + name, nil
	}), HandlingMethod{Owner: owner, Name: name, Returns: typeref.MustParse("string")})
}

func locatorStub(owner, name string, sub *Resource) *Invocable {
	return NewInvocable(HandlerFunc(func(*http.Request, []any) (any, error) {
		return sub, nil
	}), HandlingMethod{Owner: owner, Name: name, Returns: typeref.MustParse("*restree.Resource")})
}

// shape renders a resource forest with sorted verbs so that merge results
// can be compared independently of method order.
func shape(roots []*Resource) string {
	var b strings.Builder
	var render func(indent string, r *Resource)
	render = func(indent string, r *Resource) {
		var verbs []string
		for _, m := range r.ResourceMethods() {
			verbs = append(verbs, m.HTTPMethod())
		}
		sort.Strings(verbs)
		locator := ""
		if r.Locator() != nil {
			locator = " +locator"
		}
		fmt.Fprintf(&b, "%s%s [%s]%s\n", indent, r.Path(), strings.Join(verbs, " "), locator)
		for _, c := range r.Children() {
			render(indent+"  ", c)
		}
	}
	for _, r := range roots {
		render("", r)
	}
	return b.String()
}

func codes(ds []Diagnostic) []DiagnosticCode {
	var out []DiagnosticCode
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func scenarioA() *Resource {
	a := NewBuilder("a").Name("A")
	a.AddMethod("GET").HandledByInvocable(stub("A", "get"))
	child := a.AddChildResource("child")
	child.AddMethod("GET").HandledByInvocable(stub("A", "getChild"))
	child.AddLocator().HandledByInvocable(locatorStub("A", "locate", NewBuilder("").Build()))
	a.AddChildResource("child2").AddMethod("GET").HandledByInvocable(stub("A", "getChild2"))
	return a.Build()
}

func scenarioB() *Resource {
	b := NewBuilder("a").Name("B")
	b.AddMethod("POST").HandledByInvocable(stub("B", "post"))
	b.AddChildResource("child").AddMethod("POST").HandledByInvocable(stub("B", "postChild"))
	return b.Build()
}

func scenarioC() *Resource {
	c := NewBuilder("c").Name("C")
	c.AddMethod("GET").HandledByInvocable(stub("C", "get"))
	return c.Build()
}

func TestMerge_ClassesSharingPath(t *testing.T) {
	bag, err := Merge(scenarioA(), scenarioB(), scenarioC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roots := bag.RootResources()
	if len(roots) != 2 {
		t.Fatalf("expected 2 root resources, got %d:\n%s", len(roots), shape(roots))
	}

	want := "" +
		"a [GET POST]\n" +
		"  child [GET POST] +locator\n" +
		"  child2 [GET]\n" +
		"c [GET]\n"
	if got := shape(roots); got != want {
		t.Errorf("unexpected shape:\n%s\nwant:\n%s", got, want)
	}

	a := bag.Root("a")
	if names := a.Names(); len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("expected names [A B], got %v", names)
	}
	if m := a.Child("child").ResourceMethod("POST"); m == nil || m.Invocable().Method().Owner != "B" {
		t.Errorf("expected POST /a/child from B, got %v", m)
	}
}

func TestMerge_ChildBuildersSamePath(t *testing.T) {
	root := NewBuilder("root")
	root.AddChildResource("child").AddMethod("GET").HandledByInvocable(stub("R", "get"))
	root.AddChildResource("child").AddMethod("POST").HandledByInvocable(stub("R", "post"))

	bag, err := Merge(root.Build())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := shape(bag.RootResources()), "root []\n  child [GET POST]\n"; got != want {
		t.Errorf("unexpected shape:\n%s\nwant:\n%s", got, want)
	}
}

func TestMerge_TwoLocatorsSamePath(t *testing.T) {
	sub := NewBuilder("").Build()

	first := NewBuilder("child")
	first.AddLocator().HandledByInvocable(locatorStub("R", "locateJSON", sub)).Consumes("application/json")
	second := NewBuilder("child")
	second.AddLocator().HandledByInvocable(locatorStub("R", "locateXML", sub)).Consumes("application/xml")

	root := NewBuilder("root").AddChild(first.Build()).AddChild(second.Build())

	var diags Diagnostics
	bag := NewBagBuilder().Register(root.Build()).Build(&diags)

	fatals := diags.Fatals()
	if len(fatals) != 1 || fatals[0].Code != DiagDuplicateLocator {
		t.Fatalf("expected one %s diagnostic, got %v", DiagDuplicateLocator, diags.All())
	}
	if fatals[0].Subject != "/root/child" {
		t.Errorf("expected subject /root/child, got %q", fatals[0].Subject)
	}
	if !strings.Contains(fatals[0].Message, "locateJSON") || !strings.Contains(fatals[0].Message, "locateXML") {
		t.Errorf("expected both declarations in message, got %q", fatals[0].Message)
	}

	// The first declaration is kept.
	l := bag.Root("root").Child("child").Locator()
	if l == nil || l.Invocable().Method().Name != "locateJSON" {
		t.Errorf("expected first locator to be kept, got %v", l)
	}

	var buildErr *BuildError
	if err := diags.Err(); !errors.As(err, &buildErr) {
		t.Errorf("expected *BuildError, got %v", err)
	}
}

func TestMerge_AmbiguousResourceMethod(t *testing.T) {
	x := NewBuilder("x").Name("X")
	x.AddMethod("GET").HandledByInvocable(stub("X", "get"))
	y := NewBuilder("x").Name("Y")
	y.AddMethod("GET").HandledByInvocable(stub("Y", "get"))
	y.AddMethod("PUT").HandledByInvocable(stub("Y", "put"))

	bag, err := Merge(x.Build(), y.Build())

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %v", err)
	}
	if len(buildErr.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", buildErr.Diagnostics)
	}
	d := buildErr.Diagnostics[0]
	if d.Code != DiagAmbiguousResourceMethod || d.Details["http_method"] != "GET" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if !strings.Contains(d.Details["first"].(string), "X.get") || !strings.Contains(d.Details["second"].(string), "Y.get") {
		t.Errorf("expected both declarations reported, got %v", d.Details)
	}
	if got, want := shape(bag.RootResources()), "x [GET PUT]\n"; got != want {
		t.Errorf("unexpected shape %q, want %q", got, want)
	}
}

func TestMerge_VerbsAreCaseSensitive(t *testing.T) {
	x := NewBuilder("x")
	x.AddMethod("GET").HandledByInvocable(stub("X", "get"))
	y := NewBuilder("x")
	y.AddMethod("get").HandledByInvocable(stub("Y", "get"))

	if _, err := Merge(x.Build(), y.Build()); err != nil {
		t.Errorf("expected GET and get to be distinct, got %v", err)
	}
}

func TestMerge_VerblessMethodIsLocator(t *testing.T) {
	sub := NewBuilder("").Build()
	x := NewBuilder("x")
	x.AddMethod("").HandledByInvocable(locatorStub("X", "locate", sub))
	y := NewBuilder("x")
	y.AddMethod("").HandledByInvocable(locatorStub("Y", "locate", sub))

	r := x.Build()
	if r.Locator() == nil || len(r.ResourceMethods()) != 0 {
		t.Fatalf("expected verb-less method to be a locator, got %v", r)
	}
	if r.Locator().Kind() != KindLocator {
		t.Errorf("expected KindLocator, got %v", r.Locator().Kind())
	}

	_, err := Merge(r, y.Build())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) || buildErr.Diagnostics[0].Code != DiagDuplicateLocator {
		t.Errorf("expected duplicate locator, got %v", err)
	}
}

func TestMerge_TemplatesAreLiteralKeys(t *testing.T) {
	a := NewBuilder("root")
	a.AddChildResource("{a}").AddMethod("GET").HandledByInvocable(stub("A", "get"))
	b := NewBuilder("root")
	b.AddChildResource("{b}").AddMethod("GET").HandledByInvocable(stub("B", "get"))

	bag, err := Merge(a.Build(), b.Build())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := shape(bag.RootResources()), "root []\n  {a} [GET]\n  {b} [GET]\n"; got != want {
		t.Errorf("unexpected shape:\n%s\nwant:\n%s", got, want)
	}
}

func TestMerge_BatchesEqualAllAtOnce(t *testing.T) {
	all := []*Resource{scenarioA(), scenarioB(), scenarioC()}
	once, err := Merge(all...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	partitions := [][][]*Resource{
		{{all[0]}, {all[1], all[2]}},
		{{all[0], all[1]}, {all[2]}},
		{{all[0]}, {all[1]}, {all[2]}},
	}
	for i, batches := range partitions {
		var acc []*Resource
		for _, batch := range batches {
			bag, err := Merge(append(acc, batch...)...)
			if err != nil {
				t.Fatalf("partition %d: unexpected error: %v", i, err)
			}
			acc = bag.RootResources()
		}
		if got, want := shape(acc), shape(once.RootResources()); got != want {
			t.Errorf("partition %d: got\n%s\nwant\n%s", i, got, want)
		}
	}
}

func TestMerge_RemergeReportsOnlyOverlap(t *testing.T) {
	getOnly := NewBuilder("x")
	getOnly.AddMethod("GET").HandledByInvocable(stub("X", "get"))
	postOnly := NewBuilder("x")
	postOnly.AddMethod("POST").HandledByInvocable(stub("X", "post"))
	postOnly.AddChildResource("y").AddMethod("GET").HandledByInvocable(stub("X", "getY"))

	bag, err := Merge(getOnly.Build(), postOnly.Build())
	if err != nil {
		t.Fatalf("disjoint declarations should merge cleanly: %v", err)
	}

	// Merging the merged bag with itself conflicts on every verb, and only there.
	var diags Diagnostics
	NewBagBuilder().Register(bag.RootResources()...).Register(bag.RootResources()...).Build(&diags)
	got := codes(diags.All())
	if len(got) != 3 {
		t.Fatalf("expected 3 conflicts (GET, POST, GET /x/y), got %v", diags.All())
	}
	for _, c := range got {
		if c != DiagAmbiguousResourceMethod {
			t.Errorf("unexpected code %s", c)
		}
	}
}

func TestMerge_RecursesIntoLoneResource(t *testing.T) {
	// A single declaration may still hold children with the same path.
	root := NewBuilder("root")
	c1 := NewBuilder("child")
	c1.AddMethod("GET").HandledByInvocable(stub("R", "get"))
	c2 := NewBuilder("child")
	c2.AddMethod("GET").HandledByInvocable(stub("R", "get2"))
	root.AddChild(c1.Build()).AddChild(c2.Build())

	_, err := Merge(root.Build())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected conflict between sibling declarations, got %v", err)
	}
	if d := buildErr.Diagnostics[0]; d.Subject != "/root/child" {
		t.Errorf("expected subject /root/child, got %q", d.Subject)
	}
}

func TestBag_Walk(t *testing.T) {
	bag, err := Merge(scenarioA(), scenarioC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var paths []string
	bag.Walk(func(full string, r *Resource) {
		paths = append(paths, full)
	})
	want := []string{"/a", "/a/child", "/a/child2", "/c"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, paths)
	}
}

func TestBagBuilder_SkipsNil(t *testing.T) {
	var diags Diagnostics
	bag := NewBagBuilder().Register(nil, scenarioC(), nil).Build(&diags)
	if len(bag.RootResources()) != 1 || diags.Len() != 0 {
		t.Errorf("expected one root and no diagnostics, got %d roots, %v", len(bag.RootResources()), diags.All())
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"", "", "/"},
		{"", "a", "/a"},
		{"", "/a/", "/a"},
		{"/a", "b", "/a/b"},
		{"/a/", "/b", "/a/b"},
		{"/a", "", "/a"},
		{"a", "{id}", "/a/{id}"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.parent, tt.child); got != tt.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.parent, tt.child, got, tt.want)
		}
	}
}
