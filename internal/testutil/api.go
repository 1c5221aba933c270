// Package testutil provides a fake inventory API and fixtures for tests.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/config"
	"github.com/erp/chemstock/internal/infrastructure/session"
)

// RecordedRequest is a request received by FakeAPI
type RecordedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
	Form        url.Values // multipart text fields
	Files       map[string][]byte
}

// JSON decodes the recorded body into v
func (r RecordedRequest) JSON(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), "request body: %s", r.Body)
}

// FakeAPI is an httptest server answering canned responses per route.
type FakeAPI struct {
	Server  *httptest.Server
	Session *session.Store

	mux      *http.ServeMux
	mu       sync.Mutex
	requests []RecordedRequest
}

// NewFakeAPI starts a server closed at the end of the test. The session is
// preloaded with a valid token pair.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		mux:     http.NewServeMux(),
		Session: session.New(session.NewMemoryStore()),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve(t)))
	t.Cleanup(f.Server.Close)

	require.NoError(t, f.Session.SetTokens(context.Background(), "test-access", "test-refresh"))
	return f
}

func (f *FakeAPI) serve(t *testing.T) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.Query(),
			ContentType: r.Header.Get("Content-Type"),
		}
		if strings.HasPrefix(rec.ContentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(10 << 20); err == nil {
				rec.Form = url.Values(r.MultipartForm.Value)
				rec.Files = map[string][]byte{}
				for name, headers := range r.MultipartForm.File {
					file, err := headers[0].Open()
					if err != nil {
						continue
					}
					rec.Files[name], _ = io.ReadAll(file)
					_ = file.Close()
				}
			}
		} else {
			rec.Body, _ = io.ReadAll(r.Body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		f.mux.ServeHTTP(w, r)
	}
}

// Handle registers a canned JSON answer for pattern, e.g. "GET /api/facilities/"
func (f *FakeAPI) Handle(pattern string, status int, body interface{}) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// HandleFunc registers a custom handler for pattern
func (f *FakeAPI) HandleFunc(pattern string, fn http.HandlerFunc) {
	f.mux.HandleFunc(pattern, fn)
}

// Requests returns the recorded requests matching method and path
func (f *FakeAPI) Requests(method, path string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RecordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the last request to method and path, failing the test if none
func (f *FakeAPI) Last(t *testing.T, method, path string) RecordedRequest {
	t.Helper()
	reqs := f.Requests(method, path)
	require.NotEmpty(t, reqs, "no %s %s request recorded", method, path)
	return reqs[len(reqs)-1]
}

// Count returns the number of requests to method and path
func (f *FakeAPI) Count(method, path string) int {
	return len(f.Requests(method, path))
}

// Client returns an apiclient bound to the server and the fake session
func (f *FakeAPI) Client(t *testing.T, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	opts = append([]apiclient.Option{apiclient.WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := apiclient.New(config.APIConfig{BaseURL: f.Server.URL, Timeout: 5 * time.Second}, f.Session, opts...)
	require.NoError(t, err)
	return c
}

// WriteJSON writes body as a JSON response. A string body is written raw.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	if s, ok := body.(string); ok {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, s)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
