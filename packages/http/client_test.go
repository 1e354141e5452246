package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietClient(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithLogger(zerolog.Nop())}, opts...)...)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// inlineTransport completes on the caller's goroutine before RoundTrip returns.
func inlineTransport(res TransportResult) Transport {
	return TransportFunc(func(ctx context.Context, req *Request, done func(TransportResult)) {
		done(res)
	})
}

func TestClient_GetSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/a/b", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello", "items": [1, 2]}`))
	}))
	defer server.Close()

	u, err := BuildURL(server.URL, []string{"a", "b"}, map[string]string{"q": "1"})
	require.NoError(t, err)

	out := quietClient().GetSync(context.Background(), u, RequestOptions{})

	require.True(t, out.Success)
	assert.Nil(t, out.Err)
	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, KindNone, out.Kind())
	assert.NoError(t, out.Failure())
	assert.True(t, out.IsJSON())
	assert.Equal(t, "hello", out.JSON("message").String())
	assert.Equal(t, int64(2), out.JSON("items.#").Int())
	assert.NotEmpty(t, out.RequestID)
}

func TestClient_PostSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name": "test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	out := quietClient().PostSync(context.Background(), mustURL(t, server.URL), RequestOptions{
		Body:        []byte(`{"name": "test"}`),
		ContentType: "application/json",
	})

	require.True(t, out.Success)
	assert.Equal(t, 201, out.StatusCode)
	assert.Equal(t, int64(123), out.JSON("id").Int())
}

func TestClient_PutSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	out := quietClient().PutSync(context.Background(), mustURL(t, server.URL), RequestOptions{Body: []byte("x")})

	assert.True(t, out.Success)
	assert.Equal(t, 204, out.StatusCode)
	assert.Empty(t, out.Body)
}

func TestClient_PostFormSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContentTypeForm, r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "a b@c.com", r.PostForm.Get("email"))
		assert.Equal(t, "p w", r.PostForm.Get("password"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	out := quietClient().PostFormSync(context.Background(), mustURL(t, server.URL),
		map[string]string{"email": "a b@c.com", "password": "p w"}, nil)

	assert.True(t, out.Success)
}

func TestClient_NonSuccessStatusKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "no such user"}`))
	}))
	defer server.Close()

	out := quietClient().GetSync(context.Background(), mustURL(t, server.URL), RequestOptions{})

	assert.False(t, out.Success)
	assert.Nil(t, out.Err)
	assert.Equal(t, 404, out.StatusCode)
	assert.True(t, out.IsClientError())
	assert.Equal(t, KindNonSuccessStatus, out.Kind())
	assert.Equal(t, "no such user", out.JSON("error").String())

	err := out.Failure()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonSuccessStatus))
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_RedirectIsNotSuccessWhenNotFollowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := quietClient(WithTransport(NewNetTransport(WithFollowRedirects(false))))
	out := client.GetSync(context.Background(), mustURL(t, server.URL+"/redirect"), RequestOptions{})

	assert.False(t, out.Success)
	assert.Equal(t, 302, out.StatusCode)
	assert.True(t, out.IsRedirect())
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	out := quietClient().GetSync(context.Background(), mustURL(t, server.URL+"/redirect"), RequestOptions{})

	require.True(t, out.Success)
	assert.Equal(t, "final", out.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestClient_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	client := quietClient(WithTransport(NewNetTransport(WithMaxRedirects(3))))
	out := client.GetSync(context.Background(), mustURL(t, server.URL+"/redirect"), RequestOptions{})

	assert.Equal(t, 302, out.StatusCode)
	assert.Equal(t, 3, redirectCount)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	out := quietClient(WithTimeout(50*time.Millisecond)).GetSync(context.Background(), mustURL(t, server.URL), RequestOptions{})

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, KindTransport, out.Kind())
	assert.True(t, errors.Is(out.Err, ErrTransport))
	assert.Contains(t, out.Err.Error(), "context deadline exceeded")
}

func TestClient_DefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "per-call", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := quietClient(
		WithDefaultHeaders(map[string]string{
			"Authorization": "test-token",
			"User-Agent":    "default-agent",
		}),
		WithRequestIDHeader("X-Request-ID"),
	)
	out := client.GetSync(context.Background(), mustURL(t, server.URL), RequestOptions{
		Headers: map[string]string{"User-Agent": "per-call"},
	})

	require.True(t, out.Success)
}

func TestClient_RequestIDHeaderMatchesOutcome(t *testing.T) {
	var seen string
	transport := TransportFunc(func(ctx context.Context, req *Request, done func(TransportResult)) {
		seen = req.Header("X-Request-ID")
		done(TransportResult{StatusCode: 200})
	})

	out := quietClient(WithTransport(transport), WithRequestIDHeader("X-Request-ID")).
		GetSync(context.Background(), mustURL(t, "https://x.test/"), RequestOptions{})

	assert.Equal(t, out.RequestID, seen)
}

func TestClient_HeaderNamesMatchCaseInsensitively(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"per-call"}, r.Header.Values("User-Agent"))
		assert.Equal(t, []string{ContentTypeForm}, r.Header.Values("Content-Type"))
		assert.Equal(t, []string{"Bearer call"}, r.Header.Values("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := quietClient(
		WithDefaultHeader("user-agent", "default-agent"),
		WithDefaultHeader("authorization", "Bearer default"),
	)
	out := client.PostSync(context.Background(), mustURL(t, server.URL), RequestOptions{
		Body: []byte("a=1"),
		Headers: map[string]string{
			"User-Agent":    "per-call",
			"content-type":  "text/plain",
			"AUTHORIZATION": "Bearer call",
		},
		ContentType: ContentTypeForm,
	})

	require.True(t, out.Success)
}

func TestClient_RequestIDHeaderIsCanonical(t *testing.T) {
	var req *Request
	transport := TransportFunc(func(ctx context.Context, r *Request, done func(TransportResult)) {
		req = r
		done(TransportResult{StatusCode: 200})
	})

	out := quietClient(
		WithTransport(transport),
		WithDefaultHeader("X-Request-ID", "stale"),
		WithRequestIDHeader("x-request-id"),
	).GetSync(context.Background(), mustURL(t, "https://x.test/"), RequestOptions{})

	require.NotNil(t, req)
	assert.Equal(t, out.RequestID, req.Header("X-Request-Id"))
	assert.Len(t, req.Headers(), 1)
}

func TestClient_NilContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var ctx context.Context
	for _, opts := range [][]ClientOption{nil, {WithTimeout(time.Second)}} {
		out := quietClient(opts...).GetSync(ctx, mustURL(t, server.URL), RequestOptions{})
		assert.True(t, out.Success)
	}
}

type recordingDoer struct {
	requests []*http.Request
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	return &http.Response{
		StatusCode: http.StatusAccepted,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(bytes.NewBufferString("queued")),
	}, nil
}

func TestNetTransport_WithDoer(t *testing.T) {
	doer := &recordingDoer{}
	client := quietClient(WithTransport(NewNetTransport(WithDoer(doer))))

	out := client.PutSync(context.Background(), mustURL(t, "https://x.test/items/1"), RequestOptions{
		Body:    []byte("x"),
		Headers: map[string]string{"x-trace": "abc"},
	})

	require.Len(t, doer.requests, 1)
	assert.Equal(t, "PUT", doer.requests[0].Method)
	assert.Equal(t, "abc", doer.requests[0].Header.Get("X-Trace"))
	assert.True(t, out.Success)
	assert.Equal(t, 202, out.StatusCode)
	assert.Equal(t, "queued", out.BodyString())
	assert.Equal(t, "text/plain", out.ContentType())
}

func TestClient_PostFormAsync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "go", r.PostForm.Get("q"))
		assert.Equal(t, "1", r.Header.Get("X-Page"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	done := make(chan Outcome, 1)
	quietClient().PostFormAsync(context.Background(), mustURL(t, server.URL),
		map[string]string{"q": "go"}, map[string]string{"X-Page": "1"},
		func(o Outcome) { done <- o })

	out := <-done
	assert.False(t, out.Success)
	assert.True(t, out.IsServerError())
	assert.False(t, out.IsClientError())
	assert.Equal(t, KindNonSuccessStatus, out.Kind())
}

func TestClient_AsyncCallbackOnce_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	var calls atomic.Int32
	done := make(chan Outcome, 2)
	quietClient().GetAsync(context.Background(), mustURL(t, server.URL), RequestOptions{}, func(o Outcome) {
		calls.Add(1)
		done <- o
	})

	out := <-done
	assert.True(t, out.Success)
	assert.Equal(t, "ok", out.BodyString())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AsyncCallbackOnce_NetworkFailure(t *testing.T) {
	// Grab a port nothing is listening on.
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	var calls atomic.Int32
	done := make(chan Outcome, 2)
	quietClient().PostAsync(context.Background(), mustURL(t, addr), RequestOptions{}, func(o Outcome) {
		calls.Add(1)
		done <- o
	})

	out := <-done
	assert.False(t, out.Success)
	assert.Equal(t, 0, out.StatusCode)
	assert.Equal(t, KindTransport, out.Kind())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AsyncDropsDuplicateCompletions(t *testing.T) {
	transport := TransportFunc(func(ctx context.Context, req *Request, done func(TransportResult)) {
		go func() {
			done(TransportResult{StatusCode: 200})
			done(TransportResult{StatusCode: 500})
			done(TransportResult{Err: errors.New("late")})
		}()
	})

	var calls atomic.Int32
	first := make(chan Outcome, 3)
	quietClient(WithTransport(transport)).GetAsync(context.Background(), mustURL(t, "https://x.test/"), RequestOptions{}, func(o Outcome) {
		calls.Add(1)
		first <- o
	})

	out := <-first
	assert.True(t, out.Success)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AsyncInvalidInputStillCallsBack(t *testing.T) {
	client := quietClient(WithTransport(inlineTransport(TransportResult{StatusCode: 200})))

	var got []Outcome
	client.RequestAsync(context.Background(), nil, MethodGet, RequestOptions{}, func(o Outcome) {
		got = append(got, o)
	})
	client.RequestAsync(context.Background(), mustURL(t, "https://x.test/"), Method("DELETE"), RequestOptions{}, func(o Outcome) {
		got = append(got, o)
	})

	require.Len(t, got, 2)
	for _, o := range got {
		assert.False(t, o.Success)
		assert.Equal(t, KindInvalidRequest, o.Kind())
		assert.True(t, errors.Is(o.Failure(), ErrInvalidRequest))
	}
	assert.Contains(t, got[1].Err.Error(), `unsupported method "DELETE"`)
}

func TestClient_SyncWithInlineCompletion(t *testing.T) {
	client := quietClient(WithTransport(inlineTransport(TransportResult{
		StatusCode: 200,
		Body:       []byte("inline"),
	})))

	finished := make(chan Outcome, 1)
	go func() {
		finished <- client.GetSync(context.Background(), mustURL(t, "https://x.test/"), RequestOptions{})
	}()

	select {
	case out := <-finished:
		assert.True(t, out.Success)
		assert.Equal(t, "inline", out.BodyString())
	case <-time.After(2 * time.Second):
		t.Fatal("GetSync hung on a transport that completes inline")
	}
}

func TestClient_SyncMatchesAsync(t *testing.T) {
	results := []TransportResult{
		{StatusCode: 200, Body: []byte("ok")},
		{StatusCode: 503, Body: []byte("busy")},
		{Err: errors.New("connection refused")},
	}

	for _, res := range results {
		client := quietClient(WithTransport(inlineTransport(res)))
		u := mustURL(t, "https://x.test/a")

		syncOut := client.PutSync(context.Background(), u, RequestOptions{})

		asyncCh := make(chan Outcome, 1)
		client.PutAsync(context.Background(), u, RequestOptions{}, func(o Outcome) { asyncCh <- o })
		asyncOut := <-asyncCh

		assert.Equal(t, asyncOut.Success, syncOut.Success)
		assert.Equal(t, asyncOut.StatusCode, syncOut.StatusCode)
		assert.Equal(t, asyncOut.Body, syncOut.Body)
		assert.Equal(t, asyncOut.Kind(), syncOut.Kind())
		assert.Equal(t, asyncOut.URL, syncOut.URL)
	}
}

func TestClient_ConcurrentSyncCallsAreIsolated(t *testing.T) {
	// Echo the path back after a jittered delay so completions interleave.
	transport := TransportFunc(func(ctx context.Context, req *Request, done func(TransportResult)) {
		go func() {
			time.Sleep(time.Duration(len(req.URL().Path)%3) * time.Millisecond)
			done(TransportResult{StatusCode: 200, Body: []byte(req.URL().Path)})
		}()
	})
	client := quietClient(WithTransport(transport))

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/caller/%d", i)
			out := client.GetSync(context.Background(), mustURL(t, "https://x.test"+path), RequestOptions{})
			if out.BodyString() != path {
				errs <- fmt.Sprintf("caller %d got %q", i, out.BodyString())
			}
		}(i)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent GetSync calls deadlocked")
	}
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestClient_LogsFailures(t *testing.T) {
	tests := []struct {
		name     string
		res      TransportResult
		contains []string
		logged   bool
	}{
		{
			name:     "non-2xx with text body",
			res:      TransportResult{StatusCode: 404, Body: []byte("user not found")},
			contains: []string{`"status":"404"`, `"body":"user not found"`, `"kind":"non_success_status"`},
			logged:   true,
		},
		{
			name:     "transport error",
			res:      TransportResult{Err: errors.New("dial tcp: refused")},
			contains: []string{`"status":"unknown"`, `"error":"dial tcp: refused"`},
			logged:   true,
		},
		{
			name:     "binary body omitted",
			res:      TransportResult{StatusCode: 500, Body: []byte{0xff, 0xfe, 0x00}},
			contains: []string{`"status":"500"`},
			logged:   true,
		},
		{
			name:   "success is silent",
			res:    TransportResult{StatusCode: 200, Body: []byte("fine")},
			logged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			client := NewClient(
				WithLogger(zerolog.New(&buf)),
				WithTransport(inlineTransport(tt.res)),
			)
			client.GetSync(context.Background(), mustURL(t, "https://x.test/"), RequestOptions{})

			if !tt.logged {
				assert.Empty(t, buf.String())
				return
			}
			line := buf.String()
			assert.Contains(t, line, "http request failed")
			for _, c := range tt.contains {
				assert.Contains(t, line, c)
			}
			if len(tt.res.Body) > 0 && tt.res.Body[0] == 0xff {
				assert.NotContains(t, line, `"body"`)
			}
		})
	}
}
