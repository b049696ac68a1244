// Package restree builds, merges and validates REST resource models and
// dispatches HTTP requests to them.
//
// A resource is a node addressed by a path template such as "users" or
// "{id}". It holds at most one method per HTTP method, at most one
// sub-resource locator and any number of child resources:
//
//	users := restree.NewBuilder("users").Name("Users")
//	users.AddMethod("GET").HandledByFunc("Users", "List", listUsers,
//	    restree.Param[int](restree.QueryParam("limit"), restree.DefaultValue("20")))
//	users.AddChildResource("{id}").AddMethod("GET").HandledByFunc("Users", "Get", getUser,
//	    restree.Param[string](restree.PathParam("id")))
//
// Declarations of the same path made in different places are merged into
// one resource by a BagBuilder. Path templates are compared as literal
// text, so "{id}" and "{userID}" stay distinct. Two methods for the same
// HTTP method, or two locators, on one merged resource are fatal.
//
// The Validator then checks each method against its declared signature and
// the Resolver that supplies parameter values, and records warnings and
// fatal issues as Diagnostics. Validation never stops at the first issue.
//
// App runs both passes and mounts the result on a router:
//
//	model, err := restree.NewApp().
//	    WithLogger(logger).
//	    WithInterceptor(middleware.LoggingInterceptor(logger)).
//	    Register(users.Build()).
//	    Build()
//	if err != nil {
//	    log.Fatal(err) // a *BuildError listing every fatal diagnostic
//	}
//	http.ListenAndServe(":8080", model.Handler())
//
// A locator's handler returns a *Resource (or *Builder) at request time.
// The returned resource is merged and validated like a root resource and
// serves the rest of the path.
//
// Failed requests are answered with a JSON error envelope:
//
//	{"error": {"code": "not_found", "message": "no resource matches /x"}}
package restree
