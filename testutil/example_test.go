package testutil_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/broady/restree"
	"github.com/broady/restree/testutil"
)

type ExampleRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type ExampleResponse struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}

type SearchParams struct {
	Query string `schema:"query"`
	Limit int    `schema:"limit"`
}

func exampleHandler(ctx context.Context, req *ExampleRequest) (*ExampleResponse, error) {
	return &ExampleResponse{
		Message: "Hello, " + req.Name,
		ID:      123,
	}, nil
}

func exampleModel(t *testing.T) http.Handler {
	t.Helper()
	greetings := restree.NewBuilder("greetings").Name("Greetings")
	greetings.AddMethod(http.MethodPost).
		Consumes("application/json").
		HandledByFunc("Greetings", "Create", exampleHandler, restree.Param[*ExampleRequest]())
	greetings.AddMethod(http.MethodGet).
		HandledByFunc("Greetings", "Search", func(p *SearchParams) (*SearchParams, error) {
			return p, nil
		}, restree.Param[*SearchParams](restree.BeanParam()))
	greetings.AddChildResource("{id}").AddMethod(http.MethodGet).
		HandledByFunc("Greetings", "Get", func(id int, lang string) (*ExampleResponse, error) {
			return &ExampleResponse{Message: "hello in " + lang, ID: id}, nil
		}, restree.Param[int](restree.PathParam("id")), restree.Param[string](restree.HeaderParam("Accept-Language")))

	model, err := restree.NewApp().Register(greetings.Build()).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return model.Handler()
}

// TestRequestBuilder demonstrates the fluent API for building requests
func TestRequestBuilder(t *testing.T) {
	w := testutil.NewRequest().
		POST("/greetings").
		WithJSON(&ExampleRequest{Name: "Alice", Email: "alice@example.com"}).
		Serve(exampleModel(t))

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &ExampleResponse{
		Message: "Hello, Alice",
		ID:      123,
	})
}

// TestRequestBuilder_Validation demonstrates validation error handling
func TestRequestBuilder_Validation(t *testing.T) {
	w := testutil.NewRequest().
		POST("/greetings").
		WithJSON(&ExampleRequest{Name: "Alice", Email: "invalid-email"}).
		Serve(exampleModel(t))

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp := testutil.AssertJSONError(t, w, string(restree.CodeInvalidArgument))
	if errResp.Details["Email"] == nil {
		t.Errorf("expected details for Email, got %v", errResp.Details)
	}
}

// TestRequestBuilder_GET demonstrates GET request with query parameters
func TestRequestBuilder_GET(t *testing.T) {
	w := testutil.NewRequest().
		GET("/greetings").
		WithQuery("query", "test").
		WithQuery("limit", "10").
		Serve(exampleModel(t))

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &SearchParams{Query: "test", Limit: 10})
}

// TestRequestBuilder_Headers demonstrates path and header parameters
func TestRequestBuilder_Headers(t *testing.T) {
	w := testutil.NewRequest().
		GET("/greetings/7").
		WithHeader("Accept-Language", "de").
		Serve(exampleModel(t))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp ExampleResponse
	testutil.DecodeJSON(t, w, &resp)
	if resp.ID != 7 || resp.Message != "hello in de" {
		t.Errorf("unexpected response %+v", resp)
	}
}

// TestRequestBuilder_NotFound demonstrates the error envelope for unknown paths
func TestRequestBuilder_NotFound(t *testing.T) {
	w := testutil.NewRequest().GET("/nowhere").Serve(exampleModel(t))

	testutil.AssertStatus(t, w, http.StatusNotFound)
	testutil.AssertJSONError(t, w, string(restree.CodeNotFound))
	testutil.AssertHeader(t, w, "Content-Type", "application/json")
}
