package restree

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var (
	requestKey = &contextKey{"request"}
	writerKey  = &contextKey{"writer"}
	methodKey  = &contextKey{"resource_method"}
	// matrixPathKey holds the escaped request path including matrix parameters.
	matrixPathKey = &contextKey{"matrix_path"}
)

// RequestFromContext returns the HTTP request being dispatched.
func RequestFromContext(ctx context.Context) *http.Request {
	if r, ok := ctx.Value(requestKey).(*http.Request); ok {
		return r
	}
	return nil
}

// SetHeader sets an HTTP response header.
// It requires that the handler was called by a Model.
func SetHeader(ctx context.Context, key, value string) {
	if w, ok := ctx.Value(writerKey).(http.ResponseWriter); ok {
		w.Header().Set(key, value)
	}
}

// MethodFromContext returns the resource method handling the request.
func MethodFromContext(ctx context.Context) (*ResourceMethod, bool) {
	m, ok := ctx.Value(methodKey).(*ResourceMethod)
	return m, ok
}

func newContext(ctx context.Context, w http.ResponseWriter, r *http.Request, m *ResourceMethod) context.Context {
	ctx = context.WithValue(ctx, writerKey, w)
	ctx = context.WithValue(ctx, requestKey, r)
	ctx = context.WithValue(ctx, methodKey, m)
	return ctx
}
