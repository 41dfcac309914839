package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// OpenAPIValidator checks requests and responses against the API document.
type OpenAPIValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator loads the document at specPath or fails the test.
func NewOpenAPIValidator(t *testing.T, specPath string) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator(specPath)
	if err != nil {
		t.Fatalf("load OpenAPI validator: %v", err)
	}
	return v
}

// LoadOpenAPIValidator loads and validates the document at specPath.
// Use this in TestMain where *testing.T is not available.
func LoadOpenAPIValidator(specPath string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI spec from %s: %w", specPath, err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate OpenAPI spec: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{
		doc:    doc,
		router: router,
	}, nil
}

// skip reports paths that serve files or plain text rather than the API.
func (v *OpenAPIValidator) skip(path string) bool {
	switch {
	case path == "/healthz", path == "/readyz", path == "/api/openapi.yaml":
		return true
	case strings.HasPrefix(path, "/images/"):
		return true
	}
	return false
}

// Check validates one exchange. reqBody and respBody are the raw bodies;
// req.Body is not read.
func (v *OpenAPIValidator) Check(req *http.Request, reqBody []byte, status int, header http.Header, respBody []byte) error {
	if v.skip(req.URL.Path) {
		return nil
	}

	// the document has no servers, so routes are matched on the path alone
	routeReq, err := http.NewRequest(req.Method, req.URL.Path, nil)
	if err != nil {
		return fmt.Errorf("create route request: %w", err)
	}
	route, pathParams, err := v.router.FindRoute(routeReq)
	if err != nil {
		return fmt.Errorf("no route for %s %s: %w", req.Method, req.URL.Path, err)
	}

	validationReq := req.Clone(context.Background())
	validationReq.Body = io.NopCloser(bytes.NewReader(reqBody))

	requestInput := &openapi3filter.RequestValidationInput{
		Request:    validationReq,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	var errs []error
	// rejected requests are exercised on purpose; only validate what the
	// server accepted
	if status < http.StatusBadRequest {
		if err := openapi3filter.ValidateRequest(context.Background(), requestInput); err != nil {
			errs = append(errs, fmt.Errorf("request: %w", err))
		}
	}

	responseInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: requestInput,
		Status:                 status,
		Header:                 header,
		Body:                   io.NopCloser(bytes.NewReader(respBody)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(context.Background(), responseInput); err != nil {
		errs = append(errs, fmt.Errorf("response (status %d, body %s): %w", status, truncateBody(respBody), err))
	}

	return errors.Join(errs...)
}

// ValidatingTransport is an http.RoundTripper that checks every exchange
// against the document and reports mismatches as test errors.
type ValidatingTransport struct {
	Base      http.RoundTripper
	Validator *OpenAPIValidator
	T         *testing.T
}

// RoundTrip implements http.RoundTripper.
func (vt *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	base := vt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	if err := vt.Validator.Check(req, reqBody, resp.StatusCode, resp.Header, respBody); err != nil {
		vt.T.Errorf("OpenAPI validation failed for %s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// truncateBody truncates a response body for error reporting.
func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
