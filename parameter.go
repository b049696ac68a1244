package restree

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/broady/restree/typeref"
)

// Source is where a parameter's value comes from at request time.
type Source int

const (
	SourceUnknown Source = iota
	SourcePath
	SourceQuery
	SourceHeader
	SourceCookie
	SourceMatrix
	SourceForm
	SourceBean
	SourceEntity
	SourceContext
)

func (s Source) String() string {
	switch s {
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	case SourceMatrix:
		return "matrix"
	case SourceForm:
		return "form"
	case SourceBean:
		return "bean"
	case SourceEntity:
		return "entity"
	case SourceContext:
		return "context"
	default:
		return "unknown"
	}
}

// AnnotationKind identifies a parameter annotation.
type AnnotationKind string

const (
	AnnotationPath    AnnotationKind = "path"
	AnnotationQuery   AnnotationKind = "query"
	AnnotationHeader  AnnotationKind = "header"
	AnnotationCookie  AnnotationKind = "cookie"
	AnnotationMatrix  AnnotationKind = "matrix"
	AnnotationForm    AnnotationKind = "form"
	AnnotationBean    AnnotationKind = "bean"
	AnnotationContext AnnotationKind = "context"
	AnnotationDefault AnnotationKind = "default"
	AnnotationEncoded AnnotationKind = "encoded"
)

// sourceAnnotations are the annotations that inject a request parameter.
// Form and context are deliberately absent.
var sourceAnnotations = map[AnnotationKind]bool{
	AnnotationHeader: true,
	AnnotationCookie: true,
	AnnotationMatrix: true,
	AnnotationQuery:  true,
	AnnotationPath:   true,
	AnnotationBean:   true,
}

// Annotation marks a handler parameter.
type Annotation struct {
	Kind  AnnotationKind
	Value string
}

func (a Annotation) String() string {
	if a.Value == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + ":" + a.Value
}

// IsSourceAnnotation reports whether a injects a request parameter
// (header, cookie, matrix, query, path or bean).
func (a Annotation) IsSourceAnnotation() bool {
	return sourceAnnotations[a.Kind]
}

func PathParam(name string) Annotation   { return Annotation{Kind: AnnotationPath, Value: name} }
func QueryParam(name string) Annotation  { return Annotation{Kind: AnnotationQuery, Value: name} }
func HeaderParam(name string) Annotation { return Annotation{Kind: AnnotationHeader, Value: name} }
func CookieParam(name string) Annotation { return Annotation{Kind: AnnotationCookie, Value: name} }
func MatrixParam(name string) Annotation { return Annotation{Kind: AnnotationMatrix, Value: name} }
func FormParam(name string) Annotation   { return Annotation{Kind: AnnotationForm, Value: name} }
func BeanParam() Annotation              { return Annotation{Kind: AnnotationBean} }
func ContextParam() Annotation           { return Annotation{Kind: AnnotationContext} }
func DefaultValue(v string) Annotation   { return Annotation{Kind: AnnotationDefault, Value: v} }
func Encoded() Annotation                { return Annotation{Kind: AnnotationEncoded} }

var annotationSources = map[AnnotationKind]Source{
	AnnotationPath:    SourcePath,
	AnnotationQuery:   SourceQuery,
	AnnotationHeader:  SourceHeader,
	AnnotationCookie:  SourceCookie,
	AnnotationMatrix:  SourceMatrix,
	AnnotationForm:    SourceForm,
	AnnotationBean:    SourceBean,
	AnnotationContext: SourceContext,
}

// ParseAnnotation parses the "kind" or "kind:value" form produced by
// Annotation.String.
func ParseAnnotation(s string) (Annotation, error) {
	kind, value, _ := strings.Cut(s, ":")
	switch k := AnnotationKind(kind); k {
	case AnnotationPath, AnnotationQuery, AnnotationHeader, AnnotationCookie,
		AnnotationMatrix, AnnotationForm, AnnotationDefault:
		return Annotation{Kind: k, Value: value}, nil
	case AnnotationBean, AnnotationContext, AnnotationEncoded:
		return Annotation{Kind: k}, nil
	default:
		return Annotation{}, fmt.Errorf("unknown annotation %q", s)
	}
}

// Parameter describes one handler parameter.
type Parameter struct {
	// Source is derived from the first annotation that names one.
	// An unannotated parameter is the request entity.
	Source      Source
	Name        string
	Annotations []Annotation
	// Type is the declared type.
	Type typeref.Type
	// GoType is the runtime type the value is bound to, if known.
	GoType  reflect.Type
	Default string
}

// NewParameter describes a parameter of the declared type t.
func NewParameter(t typeref.Type, annotations ...Annotation) Parameter {
	p := Parameter{
		Type:        t,
		Annotations: annotations,
		Source:      SourceUnknown,
	}
	if len(annotations) == 0 {
		p.Source = SourceEntity
	}
	for _, a := range annotations {
		if a.Kind == AnnotationDefault {
			p.Default = a.Value
			continue
		}
		if src, ok := annotationSources[a.Kind]; ok && p.Source == SourceUnknown {
			p.Source = src
			p.Name = a.Value
		}
	}
	return p
}

// Param describes a parameter bound to the Go type T, e.g.
// Param[int](QueryParam("limit")).
func Param[T any](annotations ...Annotation) Parameter {
	rt := reflect.TypeFor[T]()
	p := NewParameter(typeref.FromReflect(rt), annotations...)
	p.GoType = rt
	return p
}

// HasAnnotation reports whether the parameter carries an annotation of kind k.
func (p Parameter) HasAnnotation(k AnnotationKind) bool {
	for _, a := range p.Annotations {
		if a.Kind == k {
			return true
		}
	}
	return false
}

func (p Parameter) String() string {
	if p.Name != "" {
		return fmt.Sprintf("%v %s(%s)", p.Type, p.Source, p.Name)
	}
	return fmt.Sprintf("%v %s", p.Type, p.Source)
}
