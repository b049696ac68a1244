// Package decl loads resource declarations from YAML or TOML documents.
//
// A declaration document describes handler classes by their signatures
// only, so that a resource model can be merged and validated without the
// handlers being compiled in:
//
//	resources:
//	  - name: Users
//	    path: users
//	    methods:
//	      - name: List
//	        method: GET
//	        returns: "[]User"
//	        params:
//	          - {name: limit, type: int, annotations: ["query:limit"]}
//	      - name: Get
//	        method: GET
//	        path: "{id}"
//	        returns: User
//	        params:
//	          - {name: id, type: string, annotations: ["path:id"]}
//
// Methods with a path are placed on the child resource of that path.
package decl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/broady/restree"
	"github.com/broady/restree/typeref"
)

// Document is the top level of a declaration file.
type Document struct {
	Resources []Resource `yaml:"resources" toml:"resources"`
}

// Resource declares a resource class.
type Resource struct {
	// Name defaults to Path.
	Name     string     `yaml:"name" toml:"name"`
	Path     string     `yaml:"path" toml:"path"`
	Methods  []Method   `yaml:"methods" toml:"methods"`
	Children []Resource `yaml:"children" toml:"children"`
}

// Method declares one handler method.
type Method struct {
	Name string `yaml:"name" toml:"name"`
	// Method is the HTTP method. A method without one, or with Locator
	// set, is a sub-resource locator.
	Method  string `yaml:"method" toml:"method"`
	Path    string `yaml:"path" toml:"path"`
	Locator bool   `yaml:"locator" toml:"locator"`
	// Designators lists the HTTP method markers of the handler method.
	// Defaults to Method.
	Designators []string `yaml:"designators" toml:"designators"`
	// PathAnnotation is the method-level path annotation as written,
	// when it differs from Path, e.g. "" or "/".
	PathAnnotation *string  `yaml:"pathAnnotation" toml:"pathAnnotation"`
	Returns        string   `yaml:"returns" toml:"returns"`
	TypeParams     []string `yaml:"typeParams" toml:"typeParams"`
	Params         []Param  `yaml:"params" toml:"params"`
	Consumes       []string `yaml:"consumes" toml:"consumes"`
	Produces       []string `yaml:"produces" toml:"produces"`
	Suspended      bool     `yaml:"suspended" toml:"suspended"`
	Inflector      bool     `yaml:"inflector" toml:"inflector"`
}

// Param declares one handler parameter.
type Param struct {
	Name        string   `yaml:"name" toml:"name"`
	Type        string   `yaml:"type" toml:"type"`
	Annotations []string `yaml:"annotations" toml:"annotations"`
}

// Load reads a declaration document. The format is chosen by extension:
// .yaml, .yml or .toml. Unknown keys are errors.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses data in the format named by ext.
func Decode(ext string, data []byte) (*Document, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode toml: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported declaration format %q", ext)
	}
	return &doc, nil
}

// LoadResources loads every file and converts its declarations.
func LoadResources(scope *typeref.Scope, paths ...string) ([]*restree.Resource, error) {
	var all []*restree.Resource
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		resources, err := doc.ToResources(scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, resources...)
	}
	return all, nil
}

// ToResources converts the document into resource declarations. Type
// expressions are resolved through scope, which may be nil.
//
// The handlers of the returned resources answer 501 Not Implemented.
func (d *Document) ToResources(scope *typeref.Scope) ([]*restree.Resource, error) {
	resources := make([]*restree.Resource, 0, len(d.Resources))
	for i := range d.Resources {
		b, err := d.Resources[i].builder(scope)
		if err != nil {
			return nil, err
		}
		resources = append(resources, b.Build())
	}
	return resources, nil
}

func (r *Resource) builder(scope *typeref.Scope) (*restree.Builder, error) {
	name := r.Name
	if name == "" {
		name = r.Path
	}
	b := restree.NewBuilder(r.Path).Name(name)
	if err := r.addTo(b, name, scope); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Resource) addTo(b *restree.Builder, owner string, scope *typeref.Scope) error {
	for i := range r.Methods {
		m := &r.Methods[i]
		target := b
		if p := strings.Trim(m.Path, "/"); p != "" {
			target = b.AddChildResource(p)
		}
		if err := m.addTo(target, owner, scope); err != nil {
			return fmt.Errorf("resource %s: %w", owner, err)
		}
	}
	for i := range r.Children {
		child := &r.Children[i]
		name := child.Name
		if name == "" {
			name = owner
		}
		cb := b.AddChildResource(child.Path).Name(name)
		if err := child.addTo(cb, name, scope); err != nil {
			return err
		}
	}
	return nil
}

func (m *Method) addTo(b *restree.Builder, owner string, scope *typeref.Scope) error {
	verb := strings.ToUpper(m.Method)
	if m.Locator && verb != "" {
		return fmt.Errorf("method %s: a locator cannot have HTTP method %s", m.Name, verb)
	}

	name := m.Name
	if name == "" {
		name = strings.ToLower(verb)
		if name == "" {
			name = "locator"
		}
	}

	mscope := scope
	if len(m.TypeParams) > 0 {
		mscope = &typeref.Scope{}
		if scope != nil {
			*mscope = *scope
		}
		mscope.Params = append(append([]string(nil), mscope.Params...), m.TypeParams...)
	}

	returns, err := typeref.ParseIn(m.Returns, mscope)
	if err != nil {
		return fmt.Errorf("method %s: returns: %w", name, err)
	}

	params := make([]restree.Parameter, 0, len(m.Params))
	for i, p := range m.Params {
		param, err := p.parameter(mscope)
		if err != nil {
			return fmt.Errorf("method %s: parameter %d: %w", name, i+1, err)
		}
		params = append(params, param)
	}

	designators := m.Designators
	if designators == nil && verb != "" {
		designators = []string{verb}
	}
	hm := restree.HandlingMethod{
		Owner:       owner,
		Name:        name,
		Designators: designators,
		Path:        m.pathAnnotation(),
		Returns:     returns,
	}

	for _, list := range [][]string{m.Consumes, m.Produces} {
		for _, s := range list {
			if _, err := restree.ParseMediaType(s); err != nil {
				return fmt.Errorf("method %s: %w", name, err)
			}
		}
	}
	mb := b.AddMethod(verb)
	mb.Consumes(m.Consumes...).Produces(m.Produces...)
	if m.Suspended {
		mb.Suspended()
	}

	subject := owner + "." + name
	if m.Inflector {
		mb.HandledByInvocable(restree.DeclaredInflector(func(r *http.Request) (any, error) {
			return nil, notImplemented(subject)
		}, hm, params...))
	} else {
		mb.HandledBy(restree.HandlerFunc(func(*http.Request, []any) (any, error) {
			return nil, notImplemented(subject)
		}), hm, params...)
	}
	return nil
}

func (m *Method) pathAnnotation() *string {
	if m.PathAnnotation != nil {
		p := *m.PathAnnotation
		return &p
	}
	if m.Path != "" {
		p := m.Path
		return &p
	}
	return nil
}

func (p Param) parameter(scope *typeref.Scope) (restree.Parameter, error) {
	t, err := typeref.ParseIn(p.Type, scope)
	if err != nil {
		return restree.Parameter{}, fmt.Errorf("type: %w", err)
	}
	if typeref.IsVoid(t) {
		return restree.Parameter{}, fmt.Errorf("parameter %q has no type", p.Name)
	}

	annotations := make([]restree.Annotation, 0, len(p.Annotations))
	for _, s := range p.Annotations {
		a, err := restree.ParseAnnotation(s)
		if err != nil {
			return restree.Parameter{}, err
		}
		annotations = append(annotations, a)
	}

	param := restree.NewParameter(t, annotations...)
	if param.Name == "" {
		param.Name = p.Name
	}
	return param, nil
}

func notImplemented(subject string) error {
	return restree.Errorf(restree.CodeNotImplemented, "%s is declared but not implemented", subject)
}
