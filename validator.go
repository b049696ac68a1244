package restree

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/broady/restree/typeref"
)

// Validator checks resource methods and sub-resource locators of a merged
// model, mostly through their parameters.
type Validator struct {
	resolver Resolver
}

// NewValidator returns a Validator that checks parameter injectability with
// resolver. A nil resolver uses DefaultResolver.
func NewValidator(resolver Resolver) *Validator {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	return &Validator{resolver: resolver}
}

// Validate checks every method and locator of bag.
func (v *Validator) Validate(bag *Bag, diags *Diagnostics) {
	bag.Walk(func(full string, r *Resource) {
		v.validateResource(full, r, diags)
	})
}

// ValidateResource checks r and its children, e.g. a resource returned by
// a sub-resource locator at request time. prefix is the path r is mounted at.
func (v *Validator) ValidateResource(prefix string, r *Resource, diags *Diagnostics) {
	walk(prefix, r, func(full string, r *Resource) {
		v.validateResource(full, r, diags)
	})
}

func (v *Validator) validateResource(full string, r *Resource, diags *Diagnostics) {
	for _, m := range r.methods {
		v.validate(methodSubject(full, m), m, diags)
	}
	for _, l := range r.locators {
		v.validate(methodSubject(full, l), l, diags)
	}
}

// ValidateMethod checks a single method.
func (v *Validator) ValidateMethod(m *ResourceMethod, diags *Diagnostics) {
	v.validate(m.String(), m, diags)
}

func (v *Validator) validate(subject string, m *ResourceMethod, diags *Diagnostics) {
	switch m.Kind() {
	case KindLocator:
		v.checkLocator(subject, m, diags)
	default:
		v.checkMethod(subject, m, diags)
	}
	for _, bad := range m.badMediaTypes {
		diags.Fatal(DiagInvalidMediaType, subject,
			"method %s declares malformed media type %q: %v", m.invocable.method, bad.value, bad.err)
	}
}

func (v *Validator) checkMethod(subject string, m *ResourceMethod, diags *Diagnostics) {
	inv := m.invocable
	sig := inv.method

	v.checkValueProviders(subject, m, diags)
	checkParameters(subject, m, diags)

	if m.httpMethod == http.MethodGet {
		if typeref.IsVoid(sig.Returns) && !m.suspended {
			diags.Warn(DiagGetReturnsVoid, subject,
				"GET method %s returns void; it should return a value or be suspended", sig)
		}
		if inv.RequiresEntity() && !inv.IsInflector() {
			diags.Warn(DiagGetConsumesEntity, subject,
				"GET method %s consumes a request entity", sig)
		}
		for _, p := range inv.params {
			if p.HasAnnotation(AnnotationForm) {
				diags.Fatal(DiagGetConsumesFormParam, subject,
					"GET method %s declares form parameter %q; form parameters require a request body", sig, p.Name)
				break
			}
		}
	}

	if designators := appendMissing(nil, sig.Designators...); len(designators) > 1 {
		diags.Fatal(DiagMultipleMethodDesignators, subject,
			"method %s declares multiple HTTP method designators: %s", sig, strings.Join(designators, ", "))
	}

	if rt := inv.ResponseType(); !typeref.IsConcrete(rt) {
		diags.Warn(DiagResponseNotConcrete, subject,
			"response type %s of method %s cannot be resolved to a concrete type", rt, sig)
	}

	if sig.Path != nil && (*sig.Path == "" || *sig.Path == "/") {
		diags.Warn(DiagEmptyPathAnnotation, subject,
			"method %s declares an empty path %q; it has no effect", sig, *sig.Path)
	}
}

func (v *Validator) checkLocator(subject string, m *ResourceMethod, diags *Diagnostics) {
	v.checkValueProviders(subject, m, diags)
	checkParameters(subject, m, diags)

	if typeref.IsVoid(m.invocable.RawResponseType()) {
		diags.Fatal(DiagLocatorReturnsVoid, subject,
			"sub-resource locator %s returns void", m.invocable.method)
	}
}

// checkValueProviders requires a value provider for every parameter.
func (v *Validator) checkValueProviders(subject string, m *ResourceMethod, diags *Diagnostics) {
	inv := m.invocable
	diags.Guard(subject, func() {
		providers := v.resolver.ValueProviders(inv)
		for i, p := range inv.params {
			if i < len(providers) && providers[i] != nil {
				continue
			}
			diags.Add(Diagnostic{
				Severity: SeverityFatal,
				Code:     DiagMissingValueProvider,
				Subject:  subject,
				Message: fmt.Sprintf("no value provider for parameter at index %d (%s) of %s",
					i, p, inv.method),
				Details: map[string]any{"index": i},
			})
		}
	})
}

// checkParameters applies the per-method parameter rules, then validates
// each parameter.
func checkParameters(subject string, m *ResourceMethod, diags *Diagnostics) {
	inv := m.invocable
	unannotated := 0
	for _, p := range inv.params {
		if m.Kind() == KindLocator && p.Source == SourceEntity {
			diags.Fatal(DiagLocatorEntityParameter, subject,
				"sub-resource locator %s has an entity parameter", inv.method)
		} else if len(p.Annotations) == 0 {
			unannotated++
			if unannotated > 1 {
				diags.Fatal(DiagAmbiguousNonAnnotatedParam, subject,
					"method %s of %s has more than one non-annotated parameter", inv.method, inv.method.Owner)
			}
		}
	}

	for i, p := range inv.params {
		ValidateParameter(p, subject, "at index "+strconv.Itoa(i), false, diags)
	}
}

// ValidateParameter checks a single parameter. subject and paramName are
// used for reporting; method parameters are named "at index N", counting
// from zero as the value provider check does. When injectionsForbidden is set, as for constructors
// of singletons that outlive a request, any request-parameter annotation is
// fatal.
//
// A parameter carrying more than one request-parameter annotation is only
// a warning: which annotation supplies the value at request time is not
// defined.
func ValidateParameter(p Parameter, subject, paramName string, injectionsForbidden bool, diags *Diagnostics) {
	diags.GuardParameter(subject, paramName, func() {
		count := 0
		for _, a := range p.Annotations {
			if !a.IsSourceAnnotation() {
				continue
			}
			if injectionsForbidden {
				diags.Fatal(DiagSingletonInjectsParameter, subject,
					"parameter %s of %s injects %s, which is not allowed outside request scope", paramName, subject, a)
				break
			}
			count++
			if count > 1 {
				diags.Warn(DiagAmbiguousParameter, subject,
					"parameter %s of %s has more than one parameter annotation", paramName, subject)
				break
			}
		}

		if !typeref.IsConcrete(p.Type) {
			diags.Warn(DiagParameterNotConcrete, subject,
				"parameter %s of type %v of %s cannot be resolved to a concrete type", paramName, p.Type, subject)
		}
	})
}

func methodSubject(full string, m *ResourceMethod) string {
	verb := m.httpMethod
	if verb == "" {
		verb = "LOCATOR"
	}
	return fmt.Sprintf("%s %s (%s)", verb, full, m.invocable)
}
