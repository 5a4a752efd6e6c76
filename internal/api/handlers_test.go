package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/geocached/internal/cache"
	"github.com/mohammed-shakir/geocached/internal/hotness/expdecay"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

type env struct {
	srv   *httptest.Server
	store *cache.Store[json.RawMessage]
}

func newEnv(t *testing.T) *env {
	t.Helper()
	hot := expdecay.New(time.Minute)
	store, err := cache.New[json.RawMessage](cache.WithHotness(hot), cache.WithResultCache(16))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	n := 0
	h := NewRouter(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		IDs: objectid.GeneratorFunc(func() string {
			n++
			return "gen-" + string(rune('0'+n))
		}),
		Hot:     hot,
		HotTopN: 5,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store}
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestObjectLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/objects",
		`{"id":"hello","lat":23.23234,"lon":-123.34324,"payload":{"name":"hello"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("Location") != "/objects/hello" {
		t.Fatalf("location header=%q", resp.Header.Get("Location"))
	}

	resp, body = e.do(t, http.MethodPost, "/objects", `{"id":"hello","lat":1,"lon":1}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodGet, "/objects/hello", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status=%d", resp.StatusCode)
	}
	var obj objectResponse
	if err := json.Unmarshal(body, &obj); err != nil {
		t.Fatal(err)
	}
	if obj.GeoHash != "9k0k1m24" || string(obj.Payload) != `{"name":"hello"}` {
		t.Fatalf("object=%+v payload=%s", obj, obj.Payload)
	}

	resp, _ = e.do(t, http.MethodPut, "/objects/hello/location", `{"lat":11.232323,"lon":90.1312}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("move status=%d", resp.StatusCode)
	}
	if en, _ := e.store.Locate("hello"); en.GeoHash != "w1bpfuz9" {
		t.Fatalf("moved to %s", en.GeoHash)
	}

	resp, _ = e.do(t, http.MethodDelete, "/objects/hello", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/objects/hello", ""},
		{http.MethodDelete, "/objects/hello", ""},
		{http.MethodPut, "/objects/hello/location", `{"lat":1,"lon":1}`},
	} {
		if resp, _ := e.do(t, tc.method, tc.path, tc.body); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s after delete: status=%d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodPost, "/objects", `{"lat":10,"lon":10}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var out map[string]string
	_ = json.Unmarshal(body, &out)
	if out["id"] != "gen-1" {
		t.Fatalf("id=%q", out["id"])
	}
	if p, _ := e.store.Retrieve("gen-1"); string(p) != "null" {
		t.Fatalf("payload=%s", p)
	}
}

func TestCreate_RejectsBadInput(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{
		`{"lat":10}`,
		`{"lat":91,"lon":0}`,
		`{"lat":0,"lon":181}`,
		`{"lat":0,"lon":0,"extra":true}`,
		`not json`,
		`{"id":"a/b","lat":1,"lon":1}`,
		`{"id":"..","lat":1,"lon":1}`,
		`{"id":"a?b","lat":1,"lon":1}`,
	} {
		resp, _ := e.do(t, http.MethodPost, "/objects", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d want 400", body, resp.StatusCode)
		}
	}
	if e.store.Size() != 0 {
		t.Fatal("bad input reached the store")
	}
}

func TestQuery(t *testing.T) {
	e := newEnv(t)
	for _, b := range []string{
		`{"id":"id1","lat":23.23234,"lon":-123.34324,"payload":"hello"}`,
		`{"id":"id2","lat":34.1232,"lon":-23.34324,"payload":"world"}`,
		`{"id":"id3","lat":77.2323,"lon":123.34324,"payload":"denny"}`,
	} {
		if resp, body := e.do(t, http.MethodPost, "/objects", b); resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed: %d %s", resp.StatusCode, body)
		}
	}

	resp, body := e.do(t, http.MethodGet, "/query?lat=23.23234&lon=-123.34324&radius=1000", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var out queryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || out.Objects[0].ID != "id1" || string(out.Objects[0].Payload) != `"hello"` {
		t.Fatalf("query=%s", body)
	}
	if out.Objects[0].DistanceM > 1e-6 {
		t.Fatalf("distance=%g want 0", out.Objects[0].DistanceM)
	}

	for _, q := range []string{
		"lat=1&lon=1",
		"lat=x&lon=1&radius=1",
		"lat=95&lon=1&radius=1",
		"lat=1&lon=1&radius=-5",
		"lat=1&lon=1&radius=NaN",
	} {
		if resp, _ := e.do(t, http.MethodGet, "/query?"+q, ""); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, resp.StatusCode)
		}
	}
}

func TestStats_ReportsHotCells(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/objects", `{"id":"a","lat":23.23234,"lon":-123.34324}`)
	e.do(t, http.MethodGet, "/query?lat=23.23234&lon=-123.34324&radius=500", "")

	resp, body := e.do(t, http.MethodGet, "/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out statsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Entries != 1 || out.Cells != 1 || out.Precision != cache.DefaultPrecision {
		t.Fatalf("stats=%s", body)
	}
	if len(out.Hot) != 1 || out.Hot[0].Cell != "9k0k1m24" {
		t.Fatalf("hot=%+v", out.Hot)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)
	if resp, _ := e.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz=%d", resp.StatusCode)
	}
	if resp, _ := e.do(t, http.MethodGet, "/readyz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz=%d", resp.StatusCode)
	}
}
