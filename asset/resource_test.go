package asset

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLocalResource(t *testing.T) {
	_, thisFile, _, _ := runtime.Caller(0)
	res, err := NewResource(thisFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.IsRemote() || res.Ext() != ".go" {
		t.Fatalf("unexpected local resource %s (remote: %t, ext: %q)", res.Path(), res.IsRemote(), res.Ext())
	}
}

func TestHttpResource(t *testing.T) {
	_, thisFile, _, _ := runtime.Caller(0)
	thisDir := filepath.Dir(thisFile)

	server := httptest.NewServer(http.FileServer(http.Dir(thisDir)))
	defer server.Close()

	fetchURL := server.URL + "/" + filepath.Base(thisFile) + "?rev=2"
	res, err := NewResource(fetchURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	if !res.IsRemote() || res.Ext() != ".go" {
		t.Fatalf("unexpected remote resource %s (remote: %t, ext: %q)", res.Path(), res.IsRemote(), res.Ext())
	}

	fetchURL = server.URL + "/file-not-found.toml"
	_, err = NewResource(fetchURL, nil)
	if !errors.Is(err, ErrFetchFailed) || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected a 404 fetch error; got %v", err)
	}
}

func TestRelativeResources(t *testing.T) {
	serverHits := 0
	serverFn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHits++
		switch r.URL.Path {
		case "/foo/base.toml", "/foo/override.yaml":
			w.Write([]byte("OK"))
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(serverFn)
	defer server.Close()

	res1, err := NewResource(server.URL+"/foo/base.toml", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res1.Close()
	res2, err := NewResource("override.yaml", res1)
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Close()

	if serverHits != 2 {
		t.Fatalf("expected server to receive 2 requests; got %d", serverHits)
	}
}

func TestResourceErrors(t *testing.T) {
	type spec struct {
		path   string
		expErr error
	}
	specs := []spec{
		{"gopher://digging.toml", ErrUnsupportedScheme},
		{"http://localhost:1/opts.toml", ErrFetchFailed},
	}

	for index, s := range specs {
		if _, err := NewResource(s.path, nil); !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}
}

func TestResourceFromStream(t *testing.T) {
	res := NewResourceFromStream("embedded.json", strings.NewReader(`{"seed": 7}`))
	defer res.Close()

	data, err := io.ReadAll(res)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"seed": 7}` || res.Ext() != ".json" || res.IsRemote() {
		t.Fatalf("unexpected stream resource %q (%s)", data, res.Path())
	}
}
