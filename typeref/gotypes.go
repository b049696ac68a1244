package typeref

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/packages"
)

// FromGoType converts a type checked from Go source. Unlike runtime types,
// source types may reference type parameters, so the result is not
// necessarily concrete. A generic declaration that is not instantiated
// converts to a Named whose arguments are its type parameters.
func FromGoType(t types.Type) Type {
	if t == nil {
		return Void
	}
	switch t := types.Unalias(t).(type) {
	case *types.TypeParam:
		return &Var{Name: t.Obj().Name()}
	case *types.Named:
		obj := t.Obj()
		n := &Named{Name: obj.Name()}
		if obj.Pkg() != nil {
			n.Package = obj.Pkg().Path()
		}
		if targs := t.TypeArgs(); targs.Len() > 0 {
			for i := 0; i < targs.Len(); i++ {
				n.Args = append(n.Args, FromGoType(targs.At(i)))
			}
		} else if tparams := t.TypeParams(); tparams.Len() > 0 {
			for i := 0; i < tparams.Len(); i++ {
				n.Args = append(n.Args, &Var{Name: tparams.At(i).Obj().Name()})
			}
		}
		return n
	case *types.Basic:
		return &Named{Name: t.Name()}
	case *types.Slice:
		return sliceOf(FromGoType(t.Elem()))
	case *types.Array:
		return sliceOf(FromGoType(t.Elem()))
	case *types.Map:
		return &Map{Key: FromGoType(t.Key()), Elem: FromGoType(t.Elem())}
	case *types.Pointer:
		return &Pointer{Elem: FromGoType(t.Elem())}
	case *types.Interface:
		if t.Empty() {
			return Any
		}
	}
	return &Named{Name: t.String()}
}

func sliceOf(elem Type) Type {
	if elem.Kind() == KindVar {
		return &GenericArray{Elem: elem}
	}
	return &Slice{Elem: elem}
}

// LoadPackage type-checks the packages matching pattern and returns their
// package-level type declarations, keyed both by bare name and by
// "importpath.Name". The result is suitable as Scope.Types.
func LoadPackage(dir, pattern string) (map[string]Type, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}

	decls := make(map[string]Type)
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok {
				continue
			}
			t := FromGoType(tn.Type())
			decls[pkg.PkgPath+"."+name] = t
			if _, dup := decls[name]; !dup {
				decls[name] = t
			}
		}
	}
	return decls, nil
}
