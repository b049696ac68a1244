package restree

import (
	"context"
	"net/http"
)

// Call describes one handler invocation.
type Call struct {
	// Method is the resource method or locator being invoked.
	Method *ResourceMethod
	// Path is the full path template the method is mounted at.
	Path    string
	Request *http.Request
	// Args holds the bound parameter values. Interceptors may replace them.
	Args []any
}

// NextFunc represents the next handler in an interceptor chain.
type NextFunc func(ctx context.Context, call *Call) (res any, err error)

// Interceptor wraps handler invocation.
//
//	func timing(ctx context.Context, call *restree.Call, next restree.NextFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, call)
//	    log.Printf("%s took %v", call.Method, time.Since(start))
//	    return res, err
//	}
//
// Interceptors can:
//   - Inspect or replace call.Args before calling next
//   - Inspect or replace the result after calling next
//   - Short-circuit by returning an error without calling next
//   - Add values to ctx using context.WithValue
type Interceptor func(ctx context.Context, call *Call, next NextFunc) (res any, err error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor) Interceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, call *Call, final NextFunc) (any, error) {
		chain := final
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(ctx context.Context, call *Call) (any, error) {
				return current(ctx, call, next)
			}
		}
		return chain(ctx, call)
	}
}
