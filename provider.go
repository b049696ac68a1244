package restree

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/spf13/cast"
)

// ValueProvider extracts one handler argument from a request.
type ValueProvider func(r *http.Request) (any, error)

// Resolver finds the value providers of an invocable's parameters. The
// result has one entry per parameter; a nil entry means the parameter cannot
// be injected.
type Resolver interface {
	ValueProviders(inv *Invocable) []ValueProvider
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(inv *Invocable) []ValueProvider

// ValueProviders calls f(inv).
func (f ResolverFunc) ValueProviders(inv *Invocable) []ValueProvider { return f(inv) }

const defaultMaxBodySize = 1 << 20

// DefaultResolver returns a ParamResolver with a 1MB body limit.
func DefaultResolver() Resolver {
	return NewParamResolver(defaultMaxBodySize)
}

// ParamResolver is the built-in Resolver. It binds path, query, header,
// cookie, matrix and form parameters by converting their string values to
// the parameter's Go type, decodes bean parameters from query and form
// values, and decodes entities as JSON. Bean and struct entity values are
// validated with `validate` struct tags.
type ParamResolver struct {
	decoder     *schema.Decoder
	validate    *validator.Validate
	maxBodySize int64
}

// NewParamResolver returns a ParamResolver. A maxBodySize of 0 disables the
// request body limit.
func NewParamResolver(maxBodySize int64) *ParamResolver {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &ParamResolver{
		decoder:     decoder,
		validate:    validator.New(),
		maxBodySize: maxBodySize,
	}
}

// ValueProviders implements Resolver.
func (pr *ParamResolver) ValueProviders(inv *Invocable) []ValueProvider {
	providers := make([]ValueProvider, len(inv.params))
	for i, p := range inv.params {
		providers[i] = pr.provider(p)
	}
	return providers
}

func (pr *ParamResolver) provider(p Parameter) ValueProvider {
	switch p.Source {
	case SourcePath:
		return stringProvider(p, func(r *http.Request) []string {
			if v, ok := mux.Vars(r)[p.Name]; ok {
				return []string{v}
			}
			return nil
		})
	case SourceQuery:
		return stringProvider(p, func(r *http.Request) []string {
			return r.URL.Query()[p.Name]
		})
	case SourceHeader:
		return stringProvider(p, func(r *http.Request) []string {
			return r.Header.Values(p.Name)
		})
	case SourceCookie:
		return stringProvider(p, func(r *http.Request) []string {
			c, err := r.Cookie(p.Name)
			if err != nil {
				return nil
			}
			return []string{c.Value}
		})
	case SourceMatrix:
		return stringProvider(p, func(r *http.Request) []string {
			path, ok := r.Context().Value(matrixPathKey).(string)
			if !ok {
				path = r.URL.EscapedPath()
			}
			return matrixValues(path, p.Name)
		})
	case SourceForm:
		return stringProvider(p, func(r *http.Request) []string {
			if err := pr.parseForm(r); err != nil {
				return nil
			}
			return r.PostForm[p.Name]
		})
	case SourceBean:
		return pr.beanProvider(p)
	case SourceEntity:
		return pr.entityProvider(p)
	case SourceContext:
		return contextProvider(p)
	default:
		return nil
	}
}

func (pr *ParamResolver) parseForm(r *http.Request) error {
	if r.PostForm != nil {
		return nil
	}
	if pr.maxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, pr.maxBodySize)
	}
	return r.ParseForm()
}

// stringProvider converts the extracted string values to the parameter's Go
// type. Slices receive every value; other types the first one. A missing
// value falls back to the declared default, then to the zero value.
func stringProvider(p Parameter, extract func(*http.Request) []string) ValueProvider {
	target := p.GoType
	if target == nil {
		target = reflect.TypeFor[string]()
	}
	return func(r *http.Request) (any, error) {
		values := extract(r)
		if len(values) == 0 && p.Default != "" {
			values = []string{p.Default}
		}

		if target.Kind() == reflect.Slice && target.Elem().Kind() != reflect.Uint8 {
			out := reflect.MakeSlice(target, 0, len(values))
			for _, s := range values {
				v, err := convertString(s, target.Elem())
				if err != nil {
					return nil, &BindError{Param: p.Name, Source: p.Source, Err: err}
				}
				out = reflect.Append(out, v)
			}
			return out.Interface(), nil
		}

		if len(values) == 0 {
			return reflect.Zero(target).Interface(), nil
		}
		v, err := convertString(values[0], target)
		if err != nil {
			return nil, &BindError{Param: p.Name, Source: p.Source, Err: err}
		}
		return v.Interface(), nil
	}
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// convertString converts s to a value of type t.
func convertString(s string, t reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	var (
		v   any
		err error
	)
	switch t.Kind() {
	case reflect.String:
		v = s
	case reflect.Bool:
		v, err = cast.ToBoolE(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Decimal only: "010" is ten, not an octal eight.
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if reflect.Zero(t).OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%q overflows %s", s, t)
		}
		v = f
	case reflect.Pointer:
		elem, err := convertString(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(s), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(t), nil
}

// matrixValues returns the values of matrix parameter name found in the
// segments of an escaped path, e.g. "/cars;color=red/engines".
func matrixValues(escapedPath, name string) []string {
	var values []string
	for _, segment := range strings.Split(escapedPath, "/") {
		parts := strings.Split(segment, ";")
		for _, param := range parts[1:] {
			k, v, _ := strings.Cut(param, "=")
			if k, err := url.PathUnescape(k); err != nil || k != name {
				continue
			}
			if uv, err := url.PathUnescape(v); err == nil {
				values = append(values, uv)
			}
		}
	}
	return values
}

// beanProvider decodes query and form values into a struct. Parameters
// whose Go type is not a struct or struct pointer have no provider.
func (pr *ParamResolver) beanProvider(p Parameter) ValueProvider {
	t := p.GoType
	if t == nil {
		return nil
	}
	isPtr := t.Kind() == reflect.Pointer
	if isPtr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return func(r *http.Request) (any, error) {
		values := url.Values{}
		for k, v := range r.URL.Query() {
			values[k] = v
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if err := pr.parseForm(r); err == nil {
				for k, v := range r.PostForm {
					values[k] = append(values[k], v...)
				}
			}
		}

		ptr := reflect.New(t)
		if err := pr.decoder.Decode(ptr.Interface(), values); err != nil {
			return nil, &BindError{Param: p.Name, Source: SourceBean, Err: err}
		}
		if err := pr.validate.Struct(ptr.Interface()); err != nil {
			return nil, err
		}
		if isPtr {
			return ptr.Interface(), nil
		}
		return ptr.Elem().Interface(), nil
	}
}

// entityProvider reads the request body. Strings and byte slices receive the
// raw body; other types are decoded from JSON.
func (pr *ParamResolver) entityProvider(p Parameter) ValueProvider {
	t := p.GoType
	return func(r *http.Request) (any, error) {
		if r.Body == nil {
			return zeroOf(t), nil
		}
		body := io.Reader(r.Body)
		if pr.maxBodySize > 0 {
			body = http.MaxBytesReader(nil, r.Body, pr.maxBodySize)
		}

		if t != nil && (t.Kind() == reflect.String || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)) {
			raw, err := io.ReadAll(body)
			if err != nil {
				return nil, &BindError{Param: p.Name, Source: SourceEntity, Err: err}
			}
			return reflect.ValueOf(raw).Convert(t).Interface(), nil
		}

		if t == nil {
			var v any
			if err := json.NewDecoder(body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
				return nil, &BindError{Param: p.Name, Source: SourceEntity, Err: err}
			}
			return v, nil
		}

		ptr := reflect.New(t)
		if err := json.NewDecoder(body).Decode(ptr.Interface()); err != nil {
			if errors.Is(err, io.EOF) {
				return ptr.Elem().Interface(), nil
			}
			return nil, &BindError{Param: p.Name, Source: SourceEntity, Err: err}
		}
		if isStruct(t) && !(t.Kind() == reflect.Pointer && ptr.Elem().IsNil()) {
			if err := pr.validate.Struct(ptr.Elem().Interface()); err != nil {
				return nil, err
			}
		}
		return ptr.Elem().Interface(), nil
	}
}

var (
	requestType = reflect.TypeFor[*http.Request]()
	headerType  = reflect.TypeFor[http.Header]()
	urlType     = reflect.TypeFor[*url.URL]()
	varsType    = reflect.TypeFor[map[string]string]()
)

// contextProvider injects request-scoped objects by Go type.
func contextProvider(p Parameter) ValueProvider {
	switch p.GoType {
	case requestType:
		return func(r *http.Request) (any, error) { return r, nil }
	case contextType:
		return func(r *http.Request) (any, error) { return context.Context(r.Context()), nil }
	case headerType:
		return func(r *http.Request) (any, error) { return r.Header, nil }
	case urlType:
		return func(r *http.Request) (any, error) { return r.URL, nil }
	case varsType:
		return func(r *http.Request) (any, error) { return mux.Vars(r), nil }
	default:
		return nil
	}
}

func isStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func zeroOf(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// DeclarationResolver returns a Resolver for models checked without Go
// types, such as resources loaded from declaration files. Every parameter
// with a known source has a provider. The providers fail when called.
func DeclarationResolver() Resolver {
	return ResolverFunc(func(inv *Invocable) []ValueProvider {
		providers := make([]ValueProvider, len(inv.params))
		for i, p := range inv.params {
			if p.Source == SourceUnknown {
				continue
			}
			providers[i] = func(*http.Request) (any, error) {
				return nil, Errorf(CodeNotImplemented, "parameter %s is declared but not bound", p)
			}
		}
		return providers
	})
}
