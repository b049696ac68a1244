package restree

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Response lets a handler choose the status code and headers of its answer.
// Handlers may return *Response in place of a bare entity.
type Response struct {
	Status int
	Header http.Header
	Entity any
}

// errorResponse is the envelope type for error responses.
type errorResponse struct {
	Error *Error `json:"error"`
}

// encodeErrorResponse writes an error response.
func encodeErrorResponse(w io.Writer, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}

// negotiate picks the response media type from produces for an Accept
// header. An empty produces list always answers JSON. ok is false when
// nothing in produces is acceptable.
func negotiate(produces []MediaType, accept string) (mt MediaType, ok bool) {
	if len(produces) == 0 {
		return MediaTypeJSON, true
	}

	var accepted []MediaType
	for _, part := range strings.Split(accept, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if a, err := ParseMediaType(part); err == nil {
			accepted = append(accepted, a)
		}
	}

	for _, p := range produces {
		if matchesAny(accepted, p) {
			if p.IsWildcard() {
				return MediaTypeJSON, true
			}
			return p, true
		}
	}
	return MediaType{}, false
}

// writeResult writes a handler result. A nil result answers 204 No Content.
func writeResult(w http.ResponseWriter, mt MediaType, result any) error {
	status := http.StatusOK
	if resp, ok := result.(*Response); ok {
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if resp.Status != 0 {
			status = resp.Status
		}
		result = resp.Entity
	}

	if result == nil {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		return nil
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", mt.String())
	}
	w.WriteHeader(status)

	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		if mt.Subtype != "json" {
			_, err := io.WriteString(w, v)
			return err
		}
	case fmt.Stringer:
		if mt.Type == "text" {
			_, err := io.WriteString(w, v.String())
			return err
		}
	}
	return json.NewEncoder(w).Encode(result)
}
