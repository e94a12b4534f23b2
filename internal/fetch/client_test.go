package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chartdeck/chartdeck/internal/retry"
)

func testRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:     srv.URL,
		Timeout:     5 * time.Second,
		RetryConfig: testRetryConfig(),
	})
}

func TestFetchFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/folders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"data":{"folders":[
			{"id":"1","name":"week1","files":[{"fileName":"AAPL/D.json"}]},
			{"id":"2","name":"week2","files":[]}
		]}}`))
	}))
	defer srv.Close()

	folders, err := newTestClient(srv).FetchFolders(context.Background())
	if err != nil {
		t.Fatalf("FetchFolders: %v", err)
	}
	if len(folders) != 2 || folders[0].Name != "week1" {
		t.Fatalf("folders = %+v", folders)
	}
	if len(folders[0].Files) != 1 || folders[0].Files[0].FileName != "AAPL/D.json" {
		t.Errorf("files = %+v", folders[0].Files)
	}
}

func TestFetchFolders_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"folders":[]}}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchFolders(context.Background()); err != nil {
		t.Fatalf("FetchFolders after retries: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server calls = %d, want 3", n)
	}
}

func TestFetchFolders_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchFolders(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestFetchFolders_EnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"folder root missing"}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchFolders(context.Background()); err == nil {
		t.Fatal("expected error for success:false envelope")
	}
}

func TestFetchManifest_SelectsFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"folders":[
			{"name":"week1","files":[{"fileName":"AAPL/D.json"}]}
		]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	folder, err := c.FetchManifest(context.Background(), "week1")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if folder.Name != "week1" || len(folder.Files) != 1 {
		t.Errorf("folder = %+v", folder)
	}

	if _, err := c.FetchManifest(context.Background(), "nope"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("missing folder error = %v, want ErrFolderNotFound", err)
	}
}

func TestFetchFile_NestedAndFlatPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("file") {
		case "AAPL/D.json":
			w.Write([]byte(`{"success":true,"data":{"data":[{"Close":1.5}],"fileName":"AAPL/D.json","folder":"week1"}}`))
		case "AAPL/points.json":
			w.Write([]byte(`{"success":true,"data":{"entry":101.2}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)

	nested, err := c.FetchFile(context.Background(), "AAPL/D.json", "week1")
	if err != nil {
		t.Fatalf("nested payload: %v", err)
	}
	if string(nested) != `[{"Close":1.5}]` {
		t.Errorf("nested payload = %s", nested)
	}

	flat, err := c.FetchFile(context.Background(), "AAPL/points.json", "week1")
	if err != nil {
		t.Fatalf("flat payload: %v", err)
	}
	if string(flat) != `{"entry":101.2}` {
		t.Errorf("flat payload = %s", flat)
	}
}

func TestFetchFile_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"no such file"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchFile(context.Background(), "AAPL/D.json", "week1")
	if err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestClient_SendsAuthToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{"folders":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.SetAuthToken("tok123")
	if _, err := c.FetchFolders(context.Background()); err != nil {
		t.Fatalf("FetchFolders: %v", err)
	}
}
