package restree

import (
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/broady/restree/typeref"
)

var noop = HandlerFunc(func(*http.Request, []any) (any, error) { return nil, nil })

var stringType = typeref.MustParse("string")

func validateBuilders(t *testing.T, resolver Resolver, builders ...*Builder) *Diagnostics {
	t.Helper()
	var resources []*Resource
	for _, b := range builders {
		resources = append(resources, b.Build())
	}
	bag, err := Merge(resources...)
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	var diags Diagnostics
	NewValidator(resolver).Validate(bag, &diags)
	return &diags
}

func assertCodes(t *testing.T, diags *Diagnostics, want ...DiagnosticCode) {
	t.Helper()
	got := codes(diags.All())
	if len(got) != len(want) {
		t.Fatalf("expected diagnostics %v, got %v", want, diags.All())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("diagnostic %d: expected %s, got %s (%v)", i, want[i], got[i], diags.All())
		}
	}
}

func TestValidator_GetWithFormParam(t *testing.T) {
	b := NewBuilder("form")
	b.AddMethod("GET").HandledBy(noop,
		HandlingMethod{Owner: "F", Name: "get", Returns: stringType},
		NewParameter(stringType, FormParam("name")))

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagGetConsumesFormParam)
	if !diags.HasFatal() {
		t.Error("expected form parameter on GET to be fatal")
	}
	if got := diags.All()[0].Subject; got != "GET /form (F.get)" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestValidator_GetReturnsVoid(t *testing.T) {
	b := NewBuilder("void")
	b.AddMethod("GET").HandledBy(noop, HandlingMethod{Owner: "V", Name: "get", Returns: typeref.Void})

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagGetReturnsVoid)
	if diags.HasFatal() {
		t.Error("GET returning void should only warn")
	}

	suspended := NewBuilder("void")
	suspended.AddMethod("GET").Suspended().HandledBy(noop, HandlingMethod{Owner: "V", Name: "get"})
	assertCodes(t, validateBuilders(t, nil, suspended))
}

func TestValidator_LocatorWithEntityParameter(t *testing.T) {
	entity := NewParameter(stringType)

	b := NewBuilder("loc")
	b.AddLocator().HandledBy(noop,
		HandlingMethod{Owner: "L", Name: "sub", Returns: typeref.MustParse("*restree.Resource")}, entity)
	assertCodes(t, validateBuilders(t, nil, b), DiagLocatorEntityParameter)

	void := NewBuilder("loc")
	void.AddLocator().HandledBy(noop,
		HandlingMethod{Owner: "L", Name: "sub", Returns: typeref.Void}, entity)
	diags := validateBuilders(t, nil, void)
	assertCodes(t, diags, DiagLocatorEntityParameter, DiagLocatorReturnsVoid)
	if len(diags.Fatals()) != 2 {
		t.Errorf("expected two independent fatals, got %v", diags.All())
	}
}

func TestValidator_MissingValueProviders(t *testing.T) {
	unknown := NewParameter(stringType, Encoded())
	b := NewBuilder("p")
	b.AddMethod("POST").HandledBy(noop,
		HandlingMethod{Owner: "P", Name: "post", Returns: stringType},
		unknown, NewParameter(stringType, QueryParam("q")), unknown)

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagMissingValueProvider, DiagMissingValueProvider)
	all := diags.All()
	if all[0].Details["index"] != 0 || all[1].Details["index"] != 2 {
		t.Errorf("expected indexes 0 and 2, got %v and %v", all[0].Details["index"], all[1].Details["index"])
	}
}

func TestValidator_ResolverReturningShortList(t *testing.T) {
	none := ResolverFunc(func(*Invocable) []ValueProvider { return nil })
	b := NewBuilder("p")
	b.AddMethod("POST").HandledBy(noop,
		HandlingMethod{Owner: "P", Name: "post", Returns: stringType},
		NewParameter(stringType, QueryParam("q")))

	assertCodes(t, validateBuilders(t, none, b), DiagMissingValueProvider)
}

func TestValidator_AmbiguousNonAnnotatedParameters(t *testing.T) {
	b := NewBuilder("p")
	b.AddMethod("POST").HandledBy(noop,
		HandlingMethod{Owner: "P", Name: "post", Returns: stringType},
		NewParameter(stringType), NewParameter(stringType), NewParameter(stringType, HeaderParam("h")))

	assertCodes(t, validateBuilders(t, nil, b), DiagAmbiguousNonAnnotatedParam)
}

func TestValidator_GetConsumesEntity(t *testing.T) {
	b := NewBuilder("e")
	b.AddMethod("GET").HandledBy(noop,
		HandlingMethod{Owner: "E", Name: "get", Returns: stringType},
		NewParameter(stringType))
	assertCodes(t, validateBuilders(t, nil, b), DiagGetConsumesEntity)

	// Inflectors are exempt.
	inflector := &Invocable{
		handler:   noop,
		method:    HandlingMethod{Owner: "Inflector", Name: "apply", Returns: typeref.Any},
		params:    []Parameter{NewParameter(stringType)},
		inflector: true,
	}
	i := NewBuilder("e")
	i.AddMethod("GET").HandledByInvocable(inflector)
	assertCodes(t, validateBuilders(t, nil, i))
}

func TestValidator_MultipleDesignators(t *testing.T) {
	tests := []struct {
		name        string
		designators []string
		want        []DiagnosticCode
	}{
		{"none", nil, nil},
		{"single", []string{"PUT"}, nil},
		{"repeated", []string{"PUT", "PUT"}, nil},
		{"distinct", []string{"PUT", "POST"}, []DiagnosticCode{DiagMultipleMethodDesignators}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("d")
			b.AddMethod("PUT").HandledBy(noop,
				HandlingMethod{Owner: "D", Name: "put", Designators: tt.designators, Returns: stringType})
			assertCodes(t, validateBuilders(t, nil, b), tt.want...)
		})
	}
}

func TestValidator_ResponseNotConcrete(t *testing.T) {
	page := &typeref.Named{Name: "Page", Args: []typeref.Type{&typeref.Var{Name: "T"}}}
	b := NewBuilder("g")
	b.AddMethod("GET").HandledBy(noop, HandlingMethod{Owner: "G", Name: "list", Returns: page})

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagResponseNotConcrete)
	if diags.HasFatal() {
		t.Error("non-concrete response should only warn")
	}
}

func TestValidator_EmptyPathAnnotation(t *testing.T) {
	for _, p := range []string{"", "/", "sub"} {
		path := p
		b := NewBuilder("r")
		b.AddMethod("PUT").HandledBy(noop,
			HandlingMethod{Owner: "R", Name: "put", Path: &path, Returns: stringType})

		diags := validateBuilders(t, nil, b)
		if p == "sub" {
			assertCodes(t, diags)
		} else {
			assertCodes(t, diags, DiagEmptyPathAnnotation)
		}
	}
}

func TestValidator_ParameterChecks(t *testing.T) {
	b := NewBuilder("p")
	b.AddMethod("PUT").HandledBy(noop,
		HandlingMethod{Owner: "P", Name: "put", Returns: stringType},
		NewParameter(stringType, QueryParam("q"), HeaderParam("q")),
		NewParameter(&typeref.Slice{Elem: &typeref.Wildcard{}}, QueryParam("w")))

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagAmbiguousParameter, DiagParameterNotConcrete)
	if diags.HasFatal() {
		t.Errorf("parameter checks should only warn, got %v", diags.Fatals())
	}
	if !strings.Contains(diags.All()[1].Message, "parameter at index 1") {
		t.Errorf("expected the second parameter to be named, got %q", diags.All()[1].Message)
	}
}

func TestValidator_ParameterNumbering(t *testing.T) {
	b := NewBuilder("p")
	b.AddMethod("PUT").HandledBy(noop,
		HandlingMethod{Owner: "P", Name: "put", Returns: stringType},
		NewParameter(stringType, QueryParam("q")),
		NewParameter(stringType, Encoded(), QueryParam("a"), HeaderParam("b")))

	none := ResolverFunc(func(*Invocable) []ValueProvider { return nil })
	diags := validateBuilders(t, none, b)
	assertCodes(t, diags, DiagMissingValueProvider, DiagMissingValueProvider, DiagAmbiguousParameter)
	all := diags.All()
	if all[1].Details["index"] != 1 {
		t.Fatalf("expected index 1, got %v", all[1].Details["index"])
	}
	for _, d := range all[1:] {
		if !strings.Contains(d.Message, "parameter at index 1 ") {
			t.Errorf("expected the second parameter as index 1, got %q", d.Message)
		}
	}
}

func TestValidator_MalformedMediaType(t *testing.T) {
	b := NewBuilder("m")
	b.AddMethod("POST").
		Consumes("bogus", "application/json").
		Produces("text/").
		HandledBy(noop, HandlingMethod{Owner: "M", Name: "post", Returns: stringType})

	res := b.Build()
	if got := res.ResourceMethod("POST").Consumes(); len(got) != 1 {
		t.Errorf("expected the valid media type to be kept, got %v", got)
	}

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags, DiagInvalidMediaType, DiagInvalidMediaType)
	if !diags.HasFatal() {
		t.Error("malformed media type should be fatal")
	}
	if !strings.Contains(diags.All()[0].Message, `"bogus"`) {
		t.Errorf("expected the raw value in the message, got %q", diags.All()[0].Message)
	}
}

func TestDiagnostics_GuardParameter(t *testing.T) {
	var diags Diagnostics
	diags.GuardParameter("PUT /p (P.put)", "at index 2", func() { panic("bad type") })
	assertCodes(t, &diags, DiagInternal)
	d := diags.All()[0]
	if d.Details["param"] != "at index 2" {
		t.Errorf("expected param detail, got %v", d.Details["param"])
	}
	if !strings.Contains(d.Message, "parameter at index 2") || d.Details["stack"] == nil {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

func TestValidateParameter_InjectionsForbidden(t *testing.T) {
	var diags Diagnostics
	ValidateParameter(NewParameter(stringType, QueryParam("q")), "Singleton()", "1", true, &diags)
	assertCodes(t, &diags, DiagSingletonInjectsParameter)

	diags = Diagnostics{}
	ValidateParameter(NewParameter(stringType, ContextParam()), "Singleton()", "1", true, &diags)
	assertCodes(t, &diags)
}

func TestValidator_PanickingResolver(t *testing.T) {
	panicking := ResolverFunc(func(*Invocable) []ValueProvider { panic("resolver exploded") })

	b := NewBuilder("boom")
	b.AddMethod("GET").HandledBy(noop, HandlingMethod{Owner: "B", Name: "get", Returns: typeref.Void})
	b.AddMethod("PUT").HandledBy(noop, HandlingMethod{Owner: "B", Name: "put", Returns: stringType})

	diags := validateBuilders(t, panicking, b)
	// Each method is still checked after its resolver call failed.
	assertCodes(t, diags, DiagInternal, DiagGetReturnsVoid, DiagInternal)
	d := diags.All()[0]
	if !strings.Contains(d.Message, "resolver exploded") || d.Details["stack"] == nil {
		t.Errorf("expected panic message and stack, got %+v", d)
	}
}

func TestValidator_ValidateMethod(t *testing.T) {
	b := NewBuilder("x")
	b.AddMethod("GET").HandledBy(noop, HandlingMethod{Owner: "X", Name: "get"})
	m := b.Build().ResourceMethod("GET")

	var diags Diagnostics
	NewValidator(nil).ValidateMethod(m, &diags)
	assertCodes(t, &diags, DiagGetReturnsVoid)
	if got := diags.All()[0].Subject; got != "GET X.get" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestValidator_FuncInvocables(t *testing.T) {
	type filter struct {
		Name string `schema:"name"`
	}
	b := NewBuilder("users").Name("Users")
	b.AddMethod("GET").HandledByFunc("Users", "List",
		func(f filter, limit int) ([]string, error) { return nil, nil },
		Param[filter](BeanParam()), Param[int](QueryParam("limit")))
	b.AddChildResource("{id}").AddMethod("DELETE").HandledByFunc("Users", "Delete",
		func(id string) error { return nil },
		Param[string](PathParam("id")))

	diags := validateBuilders(t, nil, b)
	assertCodes(t, diags)

	if got := b.Build().ResourceMethod("GET").Invocable().Parameters()[1].GoType; got != reflect.TypeFor[int]() {
		t.Errorf("expected int parameter, got %v", got)
	}
}
