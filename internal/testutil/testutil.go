package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
)

// TestServer drives an http.Handler in-process
type TestServer struct {
	Handler http.Handler
}

func NewTestServer(handler http.Handler) *TestServer {
	return &TestServer{Handler: handler}
}

// Request represents a test HTTP request
type Request struct {
	Method      string
	Path        string
	Body        interface{}
	Headers     map[string]string
	QueryParams map[string]string
}

// Response represents a test HTTP response
type Response struct {
	*httptest.ResponseRecorder
	Body map[string]interface{}
}

// MakeRequest creates and executes a test HTTP request
func (ts *TestServer) MakeRequest(t *testing.T, req Request) *Response {
	t.Helper()

	var body *bytes.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(bodyBytes)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq := httptest.NewRequest(req.Method, req.Path, body)

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if req.QueryParams != nil {
		q := httpReq.URL.Query()
		for key, value := range req.QueryParams {
			q.Add(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	// Set default content type for JSON requests
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	ts.Handler.ServeHTTP(recorder, httpReq)

	var responseBody map[string]interface{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &responseBody); err != nil {
			t.Logf("Failed to decode response body: %v", err)
		}
	}

	return &Response{
		ResponseRecorder: recorder,
		Body:             responseBody,
	}
}

// AsIdentity sends the request with development identity headers, for
// servers wired with auth.DevProvider
func (ts *TestServer) AsIdentity(t *testing.T, req Request, id access.Identity) *Response {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers[auth.DevRoleHeader] = id.Role
	if id.UserID != "" {
		req.Headers[auth.DevUserHeader] = id.UserID
	}
	return ts.MakeRequest(t, req)
}

// AuthenticatedRequest creates a request with a bearer token
func (ts *TestServer) AuthenticatedRequest(t *testing.T, req Request, token string) *Response {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers["Authorization"] = "Bearer " + token
	return ts.MakeRequest(t, req)
}

// Staff returns an authenticated identity for role
func Staff(role, userID string) access.Identity {
	return access.Identity{IsAuthenticated: true, Role: role, UserID: userID}
}

// TimeNow returns a consistent time for testing
func TimeNow() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// NewUUID returns a deterministic UUID for testing
func NewUUID() uuid.UUID {
	return uuid.MustParse("12345678-1234-5678-9012-123456789012")
}

// ErrorCode extracts error.code from an error envelope
func ErrorCode(resp *Response) string {
	envelope, _ := resp.Body["error"].(map[string]interface{})
	code, _ := envelope["code"].(string)
	return code
}

// ErrorContext extracts error.context from an error envelope
func ErrorContext(resp *Response) map[string]interface{} {
	envelope, _ := resp.Body["error"].(map[string]interface{})
	ctx, _ := envelope["context"].(map[string]interface{})
	return ctx
}
