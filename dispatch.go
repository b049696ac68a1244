package restree

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

// Route is one entry of a Model's dispatch table.
type Route struct {
	// HTTPMethod is empty for a sub-resource locator.
	HTTPMethod string `json:"http_method,omitempty"`
	Path       string `json:"path"`
	Handler    string `json:"handler"`
}

// IsLocator reports whether the route dispatches through a sub-resource locator.
func (r Route) IsLocator() bool { return r.HTTPMethod == "" }

// Model is a merged and validated resource model installed for dispatch.
// It is safe for concurrent use.
type Model struct {
	bag         *Bag
	diagnostics []Diagnostic
	routes      []Route
	handler     http.Handler
}

func newModel(bag *Bag, diags []Diagnostic, d *dispatcher, middlewares []func(http.Handler) http.Handler) *Model {
	router := d.newRouter()
	routes := d.mount(router, "", bag.roots)

	var h http.Handler = d.recoverer(stripMatrix(router))
	// Apply middleware in reverse order so first added is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return &Model{
		bag:         bag,
		diagnostics: diags,
		routes:      routes,
		handler:     h,
	}
}

// Bag returns the merged resources.
func (m *Model) Bag() *Bag { return m.bag }

// Diagnostics returns the warnings (and, when fatal validation issues are
// ignored, the fatal diagnostics) of the build pass.
func (m *Model) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), m.diagnostics...)
}

// Routes returns the dispatch table in matching order.
func (m *Model) Routes() []Route {
	return append([]Route(nil), m.routes...)
}

// Handler returns an http.Handler for use with http.ListenAndServe or other
// HTTP servers. The returned handler includes all configured middleware.
//
// Example:
//
//	model, err := restree.NewApp().Register(users).Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", model.Handler())
func (m *Model) Handler() http.Handler { return m.handler }

type dispatcher struct {
	resolver           Resolver
	validator          *Validator
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptor        Interceptor
	logger             *slog.Logger
	ignoreFatal        bool
}

func (d *dispatcher) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.writeError(w, Errorf(CodeNotFound, "no resource matches %s", r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed for %s", r.Method, r.URL.Path))
	})
	return router
}

type mountEntry struct {
	path   string
	method *ResourceMethod
	// exact is set for a locator whose resource has no resource methods,
	// so the locator also answers requests for the resource path itself.
	exact bool
}

// mount adds the resources below prefix to router. Resource methods are
// registered before locators so that a locator only sees requests no
// resource method matched. Literal paths win over templates and deeper
// locators over shallower ones.
func (d *dispatcher) mount(router *mux.Router, prefix string, resources []*Resource) []Route {
	var methods, locators []mountEntry
	for _, res := range resources {
		walk(prefix, res, func(full string, r *Resource) {
			for _, m := range r.methods {
				methods = append(methods, mountEntry{path: full, method: m})
			}
			if l := r.Locator(); l != nil {
				locators = append(locators, mountEntry{path: full, method: l, exact: len(r.methods) == 0})
			}
		})
	}
	sort.SliceStable(methods, func(i, j int) bool {
		return strings.Count(methods[i].path, "{") < strings.Count(methods[j].path, "{")
	})
	sort.SliceStable(locators, func(i, j int) bool {
		return strings.Count(locators[i].path, "/") > strings.Count(locators[j].path, "/")
	})

	routes := make([]Route, 0, len(methods)+len(locators))
	for _, e := range methods {
		router.Methods(e.method.httpMethod).Path(e.path).Handler(d.methodHandler(e.path, e.method))
		routes = append(routes, Route{HTTPMethod: e.method.httpMethod, Path: e.path, Handler: e.method.invocable.String()})
	}
	for _, e := range locators {
		h := d.locatorHandler(e.path, e.method)
		if e.exact {
			router.Path(e.path).Handler(h)
		}
		router.PathPrefix(strings.TrimSuffix(e.path, "/") + "/").Handler(h)
		routes = append(routes, Route{Path: e.path, Handler: e.method.invocable.String()})
	}
	return routes
}

func (d *dispatcher) methodHandler(full string, m *ResourceMethod) http.Handler {
	providers := d.resolver.ValueProviders(m.invocable)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" && len(m.consumes) > 0 && r.ContentLength != 0 {
			mt, err := ParseMediaType(ct)
			if err != nil || !matchesAny(m.consumes, mt) {
				d.writeError(w, Errorf(CodeUnsupportedMediaType, "%s %s does not consume %s", m.httpMethod, full, ct))
				return
			}
		}

		mt, ok := negotiate(m.produces, r.Header.Get("Accept"))
		if !ok {
			d.writeError(w, Errorf(CodeNotAcceptable, "%s %s cannot produce %s", m.httpMethod, full, r.Header.Get("Accept")))
			return
		}

		res, err := d.invoke(w, r, full, m, providers)
		if err != nil {
			d.writeError(w, err)
			return
		}
		if err := writeResult(w, mt, res); err != nil {
			// Headers already sent, nothing we can do.
			d.logger.Error("failed to encode response",
				slog.String("path", full),
				slog.String("method", m.String()),
				slog.Any("error", err))
		}
	})
}

func (d *dispatcher) locatorHandler(full string, l *ResourceMethod) http.Handler {
	providers := d.resolver.ValueProviders(l.invocable)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := d.invoke(w, r, full, l, providers)
		if err != nil {
			d.writeError(w, err)
			return
		}
		sub, err := d.subRouter(full, res)
		if err != nil {
			d.writeError(w, err)
			return
		}
		sub.ServeHTTP(w, r)
	})
}

// subRouter merges and validates the resource returned by a locator mounted
// at prefix and returns a router for it.
func (d *dispatcher) subRouter(prefix string, res any) (*mux.Router, error) {
	var r *Resource
	switch v := res.(type) {
	case *Resource:
		r = v
	case *Builder:
		if v != nil {
			r = v.Build()
		}
	default:
		return nil, Errorf(CodeInternal, "sub-resource locator at %s returned %T, want *restree.Resource", prefix, res)
	}
	if r == nil {
		return nil, Errorf(CodeNotFound, "no sub-resource at %s", prefix)
	}

	var diags Diagnostics
	merged := mergeResources(prefix, []*Resource{r}, &diags)
	mergeFailed := diags.HasFatal()
	d.validator.ValidateResource(prefix, merged[0], &diags)

	var issues []string
	for _, diag := range diags.All() {
		level := slog.LevelWarn
		if diag.Fatal() {
			level = slog.LevelError
			issues = append(issues, diag.Subject+": "+diag.Message)
		}
		d.logger.Log(context.Background(), level, diag.Message,
			slog.String("code", string(diag.Code)),
			slog.String("subject", diag.Subject))
	}
	if mergeFailed || (len(issues) > 0 && !d.ignoreFatal) {
		return nil, Errorf(CodeInternal, "sub-resource at %s is invalid", prefix).
			WithDetail("diagnostics", issues)
	}

	router := d.newRouter()
	d.mount(router, prefix, merged)
	return router, nil
}

func (d *dispatcher) invoke(w http.ResponseWriter, r *http.Request, full string, m *ResourceMethod, providers []ValueProvider) (any, error) {
	ctx := newContext(r.Context(), w, r, m)
	r = r.WithContext(ctx)

	args := make([]any, len(providers))
	for i, p := range providers {
		if p == nil {
			return nil, Errorf(CodeInternal, "parameter %d of %s cannot be injected", i+1, m.invocable)
		}
		v, err := p(r)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	call := &Call{Method: m, Path: full, Request: r, Args: args}
	if d.interceptor == nil {
		return callHandler(ctx, call)
	}
	return d.interceptor(ctx, call, callHandler)
}

func callHandler(ctx context.Context, call *Call) (any, error) {
	return call.Method.invocable.handler.Invoke(call.Request.WithContext(ctx), call.Args)
}

func (d *dispatcher) writeError(w http.ResponseWriter, err error) {
	var rErr *Error
	if d.errorTransformer != nil {
		rErr = d.errorTransformer(err)
	}
	if rErr == nil {
		rErr = DefaultErrorTransformer(err)
	}
	if rErr.Code == CodeInternal {
		d.logger.Error("request failed", slog.Any("error", err))
		if d.maskInternalErrors {
			rErr = NewError(CodeInternal, "internal server error")
		}
	}
	writeError(w, rErr, d.logger)
}

func (d *dispatcher) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				d.logger.Error("PANIC recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())))
				d.writeError(w, Errorf(CodeInternal, "internal server error (panic): %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// stripMatrix removes matrix parameters from the request path before
// routing, e.g. "/cars;color=red/engines" is routed as "/cars/engines".
// The original escaped path stays available to matrix value providers.
func stripMatrix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		escaped := r.URL.EscapedPath()
		if !strings.Contains(escaped, ";") {
			next.ServeHTTP(w, r)
			return
		}

		segments := strings.Split(escaped, "/")
		for i, s := range segments {
			segments[i], _, _ = strings.Cut(s, ";")
		}
		stripped := strings.Join(segments, "/")
		path, err := url.PathUnescape(stripped)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), matrixPathKey, escaped))
		u := *r.URL
		u.Path = path
		u.RawPath = stripped
		r.URL = &u
		next.ServeHTTP(w, r)
	})
}
