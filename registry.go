package restree

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/broady/restree/config"
)

// App collects resource declarations and builds them into a dispatchable
// Model. Registration order decides the order of merged resources.
type App struct {
	resources              []*Resource
	resolver               Resolver
	errorTransformer       ErrorTransformer
	maskInternalErrors     bool
	disableValidation      bool
	ignoreValidationErrors bool
	interceptors           []Interceptor
	middlewares            []func(http.Handler) http.Handler
	logger                 *slog.Logger
	logLevel               *slog.LevelVar
	maxRequestBodySize     int64
}

func NewApp() *App {
	return &App{
		maxRequestBodySize: defaultMaxBodySize,
	}
}

// Register adds resource declarations. Declarations sharing a path are
// merged at Build.
// It returns the app for chaining.
func (a *App) Register(resources ...*Resource) *App {
	for _, r := range resources {
		if r != nil {
			a.resources = append(a.resources, r)
		}
	}
	return a
}

// WithResolver sets the Resolver used to validate and bind parameters.
// If not set, a ParamResolver limited to the app's max request body size is used.
func (a *App) WithResolver(r Resolver) *App {
	a.resolver = r
	return a
}

// WithErrorTransformer adds a custom error transformer.
// It returns the app for chaining.
func (a *App) WithErrorTransformer(fn ErrorTransformer) *App {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors enables masking of internal error messages.
// The original error is still available to interceptors and logging.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithoutValidation skips method and parameter validation at Build.
// Merge conflicts are still fatal.
func (a *App) WithoutValidation() *App {
	a.disableValidation = true
	return a
}

// WithIgnoreValidationErrors makes Build log fatal validation issues and
// return the model anyway. Merge conflicts are still fatal.
func (a *App) WithIgnoreValidationErrors() *App {
	a.ignoreValidationErrors = true
	return a
}

// WithInterceptor adds an interceptor around every handler invocation.
// Interceptors execute in the order they were added.
func (a *App) WithInterceptor(i Interceptor) *App {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the model's handler.
// Middleware is applied in the order added (first added is outermost).
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger for the app.
// If not set, slog.Default() will be used.
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the maximum entity and form body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
// It has no effect when a custom Resolver is set.
func (a *App) WithMaxRequestBodySize(size int64) *App {
	a.maxRequestBodySize = size
	return a
}

// WithConfig applies cfg. A nil cfg is ignored. A configured log level
// applies to the default logger only; a logger set with WithLogger keeps
// its own level.
func (a *App) WithConfig(cfg *config.Config) *App {
	if cfg == nil {
		return a
	}
	a.disableValidation = cfg.DisableValidation
	a.ignoreValidationErrors = cfg.IgnoreValidationErrors
	a.maskInternalErrors = cfg.MaskInternalErrors
	a.maxRequestBodySize = cfg.MaxRequestBodySize
	if cfg.LogLevel != "" {
		a.logLevel = new(slog.LevelVar)
		a.logLevel.Set(cfg.SlogLevel())
	}
	return a
}

func (a *App) getLogger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	if a.logLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: a.logLevel}))
	}
	return slog.Default()
}

func (a *App) getResolver() Resolver {
	if a.resolver == nil {
		return NewParamResolver(a.maxRequestBodySize)
	}
	return a.resolver
}

// Build merges the registered resources, validates the result and returns
// the dispatchable Model. Every diagnostic found is logged. The error is a
// *BuildError when the pass recorded a fatal diagnostic; all issues of the
// pass are reported together.
func (a *App) Build() (*Model, error) {
	pass := uuid.NewString()
	logger := a.getLogger().With(slog.String("build_pass", pass))
	resolver := a.getResolver()

	var diags Diagnostics
	bag := NewBagBuilder().Register(a.resources...).Build(&diags)
	mergeFailed := diags.HasFatal()

	if a.disableValidation {
		logger.Debug("resource validation disabled")
	} else {
		NewValidator(resolver).Validate(bag, &diags)
	}

	for _, d := range diags.All() {
		level := slog.LevelWarn
		if d.Fatal() {
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, d.Message,
			slog.String("code", string(d.Code)),
			slog.String("subject", d.Subject))
	}

	fatals := len(diags.Fatals())
	logger.Info("resource model built",
		slog.Int("roots", len(bag.roots)),
		slog.Int("warnings", len(diags.Warnings())),
		slog.Int("fatals", fatals))

	if mergeFailed || (fatals > 0 && !a.ignoreValidationErrors) {
		return nil, diags.Err()
	}
	if fatals > 0 {
		logger.Warn("installing resource model despite fatal validation issues")
	}

	return newModel(bag, diags.All(), &dispatcher{
		resolver:           resolver,
		validator:          NewValidator(resolver),
		errorTransformer:   a.errorTransformer,
		maskInternalErrors: a.maskInternalErrors,
		interceptor:        chainInterceptors(a.interceptors),
		logger:             a.getLogger(),
		ignoreFatal:        a.ignoreValidationErrors,
	}, a.middlewares), nil
}
