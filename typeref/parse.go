package typeref

import (
	"fmt"
	"strings"
	"unicode"
)

// Scope controls how identifiers are resolved by ParseIn.
type Scope struct {
	// Params are the type parameter names in scope, e.g. "T" for a
	// method of a generic handler type.
	Params []string

	// Types maps identifiers to previously loaded declarations.
	// An identifier found here without explicit arguments resolves to the
	// stored type, so a generic declaration referenced bare stays generic.
	Types map[string]Type
}

func (s *Scope) isParam(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Params {
		if p == name {
			return true
		}
	}
	return false
}

// Parse parses a Go-style type expression with no type parameters in scope.
//
//	string  []User  map[string]int  *Page  Page[User]  ?  void
func Parse(s string) (Type, error) {
	return ParseIn(s, nil)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseIn parses a type expression resolving identifiers through scope.
// The empty string parses as Void.
func ParseIn(s string, scope *Scope) (Type, error) {
	p := &parser{src: s, scope: scope}
	p.skipSpace()
	if p.done() {
		return Void, nil
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type parser struct {
	src   string
	pos   int
	scope *Scope
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("typeref: parse %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) parseType() (Type, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of type")
	case c == '?':
		p.pos++
		return &Wildcard{}, nil
	case c == '*':
		p.pos++
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Pointer{Elem: elem}, nil
	case c == '[':
		p.pos++
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if elem.Kind() == KindVar {
			return &GenericArray{Elem: elem}, nil
		}
		return &Slice{Elem: elem}, nil
	case isIdentByte(c):
		return p.parseNamed()
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *parser) parseNamed() (Type, error) {
	start := p.pos
	for !p.done() && isIdentByte(p.peek()) {
		p.pos++
	}
	ident := p.src[start:p.pos]

	if ident == "map" && p.peek() == '[' {
		p.pos++
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Map{Key: key, Elem: elem}, nil
	}
	if ident == "void" {
		return Void, nil
	}

	var args []Type
	if p.peek() == '[' {
		p.pos++
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			break
		}
	}

	if p.scope.isParam(ident) {
		if len(args) > 0 {
			return nil, p.errorf("type parameter %s cannot be instantiated", ident)
		}
		return &Var{Name: ident}, nil
	}

	if p.scope != nil {
		if decl, ok := p.scope.Types[ident]; ok {
			if len(args) == 0 {
				return decl, nil
			}
			if n, ok := decl.(*Named); ok {
				return &Named{Package: n.Package, Name: n.Name, Args: args}, nil
			}
		}
	}

	pkg, name := splitQualified(ident)
	return &Named{Package: pkg, Name: name, Args: args}, nil
}

// splitQualified splits "github.com/x/y.Page" into its package path and name.
func splitQualified(ident string) (pkg, name string) {
	i := strings.LastIndexByte(ident, '.')
	if i < 0 {
		return "", ident
	}
	return ident[:i], ident[i+1:]
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == '/' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
