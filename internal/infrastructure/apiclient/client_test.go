package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/chemstock/internal/infrastructure/config"
	"github.com/erp/chemstock/internal/infrastructure/session"
	"github.com/erp/chemstock/internal/infrastructure/telemetry"
)

// fakeAPI accepts the bearer token in valid and answers the refresh endpoint
// with newAccess/newRefresh.
type fakeAPI struct {
	mu         sync.Mutex
	valid      string
	newAccess  string
	newRefresh string
	refreshErr int // status to answer refresh with, 0 = success

	refreshCalls atomic.Int32
	apiCalls     atomic.Int32
	lastRefresh  string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"), "refresh carries no bearer")

		var body refreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.lastRefresh = body.Refresh
		status := f.refreshErr
		f.valid = f.newAccess
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
			return
		}
		resp := map[string]string{"access": f.newAccess}
		if f.newRefresh != "" {
			resp["refresh"] = f.newRefresh
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		f.mu.Lock()
		valid := f.valid
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"name":"Склад №1"}]`))
	})
	return mux
}

func newTestClient(t *testing.T, baseURL string, store *session.Store, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, UserAgent: "chemctl/test"}, store, opts...)
	require.NoError(t, err)
	return c
}

func newStore(t *testing.T, access, refresh string) *session.Store {
	t.Helper()
	store := session.New(session.NewMemoryStore())
	if access != "" || refresh != "" {
		require.NoError(t, store.SetTokens(context.Background(), access, refresh))
	}
	return store
}

type facility struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.APIConfig{}, newStore(t, "", ""))
	assert.Error(t, err)

	_, err = New(config.APIConfig{BaseURL: "http://localhost:8000"}, nil)
	assert.Error(t, err)
}

func TestDo_AttachesBearerAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/facilities/", r.URL.Path)
		assert.Equal(t, "warehouse", r.URL.Query().Get("type"))
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		assert.Equal(t, "chemctl/test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[{"id":1,"name":"Склад №1"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/", newStore(t, "a1", "r1"))
	items, err := GetList[facility](context.Background(), c, "/facilities/", url.Values{"type": {"warehouse"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Склад №1", items[0].Name)
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "", ""))
	require.NoError(t, c.Delete(context.Background(), "/facilities/3/"))
}

func TestDo_RefreshesAndRetriesOnce(t *testing.T) {
	api := &fakeAPI{valid: "fresh", newAccess: "fresh", newRefresh: "r2"}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	store := newStore(t, "stale", "r1")
	metrics := telemetry.NewMetrics()
	c := newTestClient(t, server.URL, store, WithMetrics(metrics))

	var out []facility
	require.NoError(t, c.Get(context.Background(), "/facilities/", nil, &out))
	assert.Len(t, out, 1)

	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, int32(2), api.apiCalls.Load())
	assert.Equal(t, "r1", api.lastRefresh)

	st, err := store.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", st.AccessToken)
	assert.Equal(t, "r2", st.RefreshToken)
	assert.True(t, st.IsAuthenticated)

	n, err := testutil.GatherAndCount(metrics.Registry(), telemetry.MetricTokenRefreshTotal)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// GET 401, GET 200 and the refresh POST
	n, err = testutil.GatherAndCount(metrics.Registry(), telemetry.MetricRequestsTotal)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDo_RefreshWithoutRotationKeepsRefreshToken(t *testing.T) {
	api := &fakeAPI{valid: "fresh", newAccess: "fresh"}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	store := newStore(t, "stale", "r1")
	c := newTestClient(t, server.URL, store)

	require.NoError(t, c.Get(context.Background(), "/facilities/", nil, nil))

	refresh, err := store.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)
}

func TestDo_NoRefreshTokenExpiresSession(t *testing.T) {
	api := &fakeAPI{valid: "fresh", newAccess: "fresh"}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	store := newStore(t, "stale", "")
	var hookErr error
	c := newTestClient(t, server.URL, store, WithSessionExpiredHook(func(_ context.Context, err error) {
		hookErr = err
	}))

	err := c.Get(context.Background(), "/facilities/", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr, "original 401 is preserved")
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	assert.Equal(t, int32(0), api.refreshCalls.Load())
	assert.ErrorIs(t, hookErr, ErrSessionExpired)

	st, err := store.State(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
}

func TestDo_RefreshFailureExpiresSession(t *testing.T) {
	api := &fakeAPI{valid: "fresh", newAccess: "fresh", refreshErr: http.StatusUnauthorized}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	store := newStore(t, "stale", "r1")
	hookCalls := 0
	c := newTestClient(t, server.URL, store, WithSessionExpiredHook(func(context.Context, error) {
		hookCalls++
	}))

	err := c.Get(context.Background(), "/facilities/", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.URL, "/auth/jwt/refresh/")
	assert.Equal(t, "Token is invalid or expired", firstFieldErrors(t, apiErr)["detail"])

	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, int32(1), api.apiCalls.Load(), "original request is not resent")

	st, err := store.State(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
}

func TestDo_CancelDuringRefreshKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"access":"fresh"}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newStore(t, "stale", "r1")
	hookCalls := 0
	c := newTestClient(t, server.URL, store, WithSessionExpiredHook(func(context.Context, error) {
		hookCalls++
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/facilities/", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Zero(t, hookCalls)

	st, err := store.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", st.RefreshToken)
	assert.Equal(t, "stale", st.AccessToken)
}

func TestDo_CoalescedRefreshOutlivesCancelledCaller(t *testing.T) {
	refreshStarted := make(chan struct{})
	var once sync.Once
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		once.Do(func() { close(refreshStarted) })
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"access":"fresh"}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newStore(t, "stale", "r1")
	c := newTestClient(t, server.URL, store, WithCoalescedRefresh(true))

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() { firstErr <- c.Get(first, "/facilities/", nil, nil) }()

	select {
	case <-refreshStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never started")
	}

	secondErr := make(chan error, 1)
	go func() { secondErr <- c.Get(context.Background(), "/facilities/", nil, nil) }()
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), refreshCalls.Load())

	st, err := store.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", st.AccessToken)
	assert.Equal(t, "r1", st.RefreshToken)
}

func firstFieldErrors(t *testing.T, e *APIError) map[string]string {
	t.Helper()
	out := map[string]string{}
	for k, v := range e.FieldErrors() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func TestDo_SecondUnauthorizedIsReturned(t *testing.T) {
	var refreshCalls, apiCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_, _ = w.Write([]byte(`{"access":"fresh","refresh":"r2"}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newStore(t, "stale", "r1")
	c := newTestClient(t, server.URL, store)

	err := c.Get(context.Background(), "/facilities/", nil, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), apiCalls.Load())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", access, "session is kept after a successful refresh")
}

func TestDo_NoAuthSkipsRefresh(t *testing.T) {
	api := &fakeAPI{valid: "fresh", newAccess: "fresh"}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "stale", "r1"))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/facilities/", NoAuth: true})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(0), api.refreshCalls.Load())
}

func concurrentUnauthorized(t *testing.T, workers int, coalesce bool) int32 {
	t.Helper()

	var arrived sync.WaitGroup
	arrived.Add(workers)
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"access":"fresh"}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer stale" {
			arrived.Done()
			arrived.Wait()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "stale", "r1"), WithCoalescedRefresh(coalesce))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Get(context.Background(), "/inventory/", nil, nil))
		}()
	}
	wg.Wait()
	return refreshCalls.Load()
}

func TestDo_ConcurrentUnauthorizedRefreshIndependently(t *testing.T) {
	assert.Equal(t, int32(4), concurrentUnauthorized(t, 4, false))
}

func TestDo_ConcurrentUnauthorizedCoalesced(t *testing.T) {
	assert.Equal(t, int32(1), concurrentUnauthorized(t, 4, true))
}

func TestDo_MultipartIsReplayedAfterRefresh(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/jwt/refresh/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access":"fresh"}`))
	})
	mux.HandleFunc("/api/reports/upload-transactions/", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "7", r.FormValue("project_id"))

		f, hdr, err := r.FormFile("report_file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "report.xlsx", hdr.Filename)
		assert.Equal(t, "xlsx-bytes", string(data))

		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "stale", "r1"))
	form := NewForm().Set("project_id", "7").File("report_file", "report.xlsx", []byte("xlsx-bytes"))

	var out map[string]string
	require.NoError(t, c.PostForm(context.Background(), "/reports/upload-transactions/", form, &out))
	assert.Equal(t, "ok", out["message"])
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDo_AuthScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/users/me/", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":5,"username":"ivanov"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "a1", "r1"))
	var out struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, c.Auth(context.Background(), Request{Method: http.MethodGet, Path: "/users/me/"}, &out))
	assert.Equal(t, "ivanov", out.Username)
}

func TestDo_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, newStore(t, "a1", "r1"), WithRateLimit(0.001, 1))
	require.NoError(t, c.Get(context.Background(), "/chemicals/", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/chemicals/", nil, nil)
	assert.Error(t, err)
}

func TestAPIError_Detail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail only", 403, `{"detail":"You do not have permission to perform this action."}`, "You do not have permission to perform this action."},
		{"error only", 400, `{"error":"Недостаточно остатков"}`, "Недостаточно остатков"},
		{"field errors sorted", 400, `{"quantity":["Ensure this value is greater than 0."],"chemical":["This field is required.","Invalid pk."]}`,
			"chemical: This field is required., Invalid pk.\nquantity: Ensure this value is greater than 0."},
		{"nested", 400, `{"items":[{"quantity":["Required."]}]}`, "items: quantity: Required."},
		{"array", 400, `["first","second"]`, "first, second"},
		{"html page", 500, "<!DOCTYPE html><html><body>Server Error</body></html>", "internal server error"},
		{"plain text", 502, "  bad gateway upstream \n", "bad gateway upstream"},
		{"empty", 404, "", "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &APIError{StatusCode: tt.status, Body: []byte(tt.body)}
			assert.Equal(t, tt.want, e.Detail())
		})
	}
}

func TestMessage(t *testing.T) {
	err := &SessionExpiredError{Cause: &APIError{StatusCode: 401, Body: []byte(`{"detail":"expired"}`)}}
	assert.Equal(t, "expired", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestDecodeList(t *testing.T) {
	items, err := DecodeList[facility]([]byte(`[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = DecodeList[facility]([]byte(`{"count":1,"next":null,"previous":null,"results":[{"id":9}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(9), items[0].ID)

	items, err = DecodeList[facility](nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = DecodeList[facility]([]byte(`{"results":"nope"}`))
	assert.Error(t, err)
}

func TestForm(t *testing.T) {
	form := NewForm().Set("a", "1").SetNonEmpty("skip", "").SetNonEmpty("b", "2")
	v, ok := form.Value("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = form.Value("skip")
	assert.False(t, ok)

	data, ct, err := form.Encode()
	require.NoError(t, err)
	assert.Contains(t, ct, "multipart/form-data; boundary=")
	assert.Contains(t, string(data), `name="a"`)

	assert.Error(t, form.FileFromPath("doc", "/nonexistent/file.pdf"))
}
