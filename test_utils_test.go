package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tectiv3/gemini-web/llm"
	"github.com/tectiv3/gemini-web/uploads"
)

// MockGenerator is a mock for the model
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// CreateTestServer creates a server backed by a temp upload dir and the given model
func CreateTestServer(t *testing.T, model llm.Generator) *Server {
	conf := config{Provider: "dummy", UploadDir: t.TempDir()}
	applyDefaults(&conf)

	store, err := uploads.New(conf.UploadDir)
	require.NoError(t, err)

	return &Server{conf: conf, model: model, store: store}
}

// CreateJSONRequest creates a POST /chat request with a JSON body
func CreateJSONRequest(t *testing.T, body interface{}) *http.Request {
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateUploadRequest creates a multipart POST /chat request. An empty filename
// leaves out the file part.
func CreateUploadRequest(t *testing.T, filename, mimeType string, data []byte, fields map[string]string) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		if mimeType != "" {
			header.Set("Content-Type", mimeType)
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// Serve runs the request through the full mux
func Serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.setupWebServer().ServeHTTP(w, req)
	return w
}

// AssertJSONResponse asserts that the response has expected status and JSON content
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, err := json.Marshal(expectedBody)
		assert.NoError(t, err)

		var expectedBodyNormalized interface{}
		err = json.Unmarshal(expectedJSON, &expectedBodyNormalized)
		assert.NoError(t, err)

		assert.Equal(t, expectedBodyNormalized, actualBody)
	}
}

// AssertErrorResponse asserts that the response contains an error message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	assert.Contains(t, response, "error")
	if expectedError != "" {
		assert.Equal(t, expectedError, response["error"])
	}
}

// DecodeResponse decodes a JSON response body into a string map
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// promptContains matches a prompt whose text contains every fragment
func promptContains(fragments ...string) interface{} {
	return mock.MatchedBy(func(p llm.Prompt) bool {
		for _, f := range fragments {
			if !strings.Contains(p.Text, f) {
				return false
			}
		}
		return true
	})
}

// RunConcurrentTests runs a function concurrently for testing race conditions
func RunConcurrentTests(t *testing.T, numGoroutines int, testFunc func(t *testing.T, goroutineID int)) {
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer func() { done <- true }()
			testFunc(t, goroutineID)
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}
}
