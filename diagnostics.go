package restree

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	// SeverityWarning marks a mis-declared but usable model.
	SeverityWarning Severity = iota + 1
	// SeverityFatal marks a model that must not be installed for dispatch.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// DiagnosticCode is a machine-readable diagnostic identifier.
type DiagnosticCode string

const (
	// Merge.
	DiagAmbiguousResourceMethod DiagnosticCode = "ambiguous_resource_method"
	DiagDuplicateLocator        DiagnosticCode = "duplicate_locator"

	// Method validation.
	DiagMissingValueProvider       DiagnosticCode = "missing_value_provider"
	DiagLocatorEntityParameter     DiagnosticCode = "locator_entity_parameter"
	DiagAmbiguousNonAnnotatedParam DiagnosticCode = "ambiguous_non_annotated_parameter"
	DiagGetReturnsVoid             DiagnosticCode = "get_returns_void"
	DiagGetConsumesEntity          DiagnosticCode = "get_consumes_entity"
	DiagGetConsumesFormParam       DiagnosticCode = "get_consumes_form_param"
	DiagMultipleMethodDesignators  DiagnosticCode = "multiple_http_method_designators"
	DiagResponseNotConcrete        DiagnosticCode = "response_not_concrete"
	DiagEmptyPathAnnotation        DiagnosticCode = "empty_path_annotation"
	DiagLocatorReturnsVoid         DiagnosticCode = "locator_returns_void"
	DiagInvalidMediaType           DiagnosticCode = "invalid_media_type"

	// Parameter validation.
	DiagSingletonInjectsParameter DiagnosticCode = "singleton_injects_parameter"
	DiagAmbiguousParameter        DiagnosticCode = "ambiguous_parameter"
	DiagParameterNotConcrete      DiagnosticCode = "parameter_not_concrete"

	// DiagInternal reports a failure of the validator itself.
	DiagInternal DiagnosticCode = "internal"
)

// Diagnostic is a single issue found while building a resource model.
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Code     DiagnosticCode `json:"code"`
	Subject  string         `json:"subject"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Subject, d.Message)
}

// Fatal reports whether the diagnostic blocks model installation.
func (d Diagnostic) Fatal() bool { return d.Severity == SeverityFatal }

// Diagnostics collects the diagnostics of one build pass.
// The zero value is ready to use. It is not safe for concurrent use.
type Diagnostics struct {
	list []Diagnostic
}

// Add records d.
func (ds *Diagnostics) Add(d Diagnostic) {
	ds.list = append(ds.list, d)
}

// Warn records a warning.
func (ds *Diagnostics) Warn(code DiagnosticCode, subject, format string, args ...any) {
	ds.Add(Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Fatal records a fatal diagnostic.
func (ds *Diagnostics) Fatal(code DiagnosticCode, subject, format string, args ...any) {
	ds.Add(Diagnostic{
		Severity: SeverityFatal,
		Code:     code,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Guard runs fn and converts a panic into a fatal DiagInternal diagnostic
// scoped to subject, so a failing check cannot abort the rest of the pass.
func (ds *Diagnostics) Guard(subject string, fn func()) {
	ds.guard(subject, nil, fn)
}

// GuardParameter is like Guard for the check of a single parameter; the
// diagnostic names the parameter in its "param" detail.
func (ds *Diagnostics) GuardParameter(subject, paramName string, fn func()) {
	ds.guard(subject, map[string]any{"param": paramName}, fn)
}

func (ds *Diagnostics) guard(subject string, details map[string]any, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			d := map[string]any{"stack": string(debug.Stack())}
			for k, v := range details {
				d[k] = v
			}
			msg := fmt.Sprintf("validation failed unexpectedly: %v", rec)
			if p, ok := details["param"]; ok {
				msg = fmt.Sprintf("validation of parameter %v failed unexpectedly: %v", p, rec)
			}
			ds.Add(Diagnostic{
				Severity: SeverityFatal,
				Code:     DiagInternal,
				Subject:  subject,
				Message:  msg,
				Details:  d,
			})
		}
	}()
	fn()
}

// All returns the recorded diagnostics in the order they were found.
func (ds *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(ds.list))
	copy(out, ds.list)
	return out
}

// Len returns the number of recorded diagnostics.
func (ds *Diagnostics) Len() int { return len(ds.list) }

// Fatals returns the fatal diagnostics.
func (ds *Diagnostics) Fatals() []Diagnostic { return ds.filter(SeverityFatal) }

// Warnings returns the warnings.
func (ds *Diagnostics) Warnings() []Diagnostic { return ds.filter(SeverityWarning) }

func (ds *Diagnostics) filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds.list {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// HasFatal reports whether any fatal diagnostic was recorded.
func (ds *Diagnostics) HasFatal() bool {
	for _, d := range ds.list {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// Err returns a *BuildError if any fatal diagnostic was recorded, nil otherwise.
func (ds *Diagnostics) Err() error {
	if !ds.HasFatal() {
		return nil
	}
	return &BuildError{Diagnostics: ds.All()}
}

// BuildError is returned when a build pass recorded fatal diagnostics.
// It carries every diagnostic of the pass, warnings included.
type BuildError struct {
	Diagnostics []Diagnostic
}

func (e *BuildError) Error() string {
	var fatals []string
	for _, d := range e.Diagnostics {
		if d.Fatal() {
			fatals = append(fatals, d.Subject+": "+d.Message)
		}
	}
	return fmt.Sprintf("restree: resource model has %d fatal issue(s): %s",
		len(fatals), strings.Join(fatals, "; "))
}
