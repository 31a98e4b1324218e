package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLoaderSendsNoCacheHeaders(t *testing.T) {
	var cacheControl, pragma string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl = r.Header.Get("Cache-Control")
		pragma = r.Header.Get("Pragma")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1","title":"Blue","tags":["blue"]}]`))
	}))
	defer srv.Close()

	items, err := HTTPLoader{URL: srv.URL, Client: srv.Client()}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "no-cache", cacheControl)
	assert.Equal(t, "no-cache", pragma)
}

func TestHTTPLoaderNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := HTTPLoader{URL: srv.URL, Client: srv.Client()}.Fetch(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestHTTPLoaderNotConfigured(t *testing.T) {
	_, err := HTTPLoader{}.Fetch(context.Background())
	require.ErrorIs(t, err, ErrFeedNotConfigured)
}

func TestDecodeShapes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantIDs []string
		wantErr bool
	}{
		{name: "array", body: `[{"id":"a"},{"id":"b"}]`, wantIDs: []string{"a", "b"}},
		{name: "items object", body: `{"items":[{"id":"c"}],"version":2}`, wantIDs: []string{"c"}},
		{name: "empty array", body: `[]`, wantIDs: []string{}},
		{name: "duplicate ids", body: `[{"id":"a"},{"id":"a"}]`, wantIDs: []string{"a", "a"}},
		{name: "one unparsable year", body: `[{"id":"a","year":2020},{"id":"b","year":"c. 2019"}]`, wantIDs: []string{"a", "b"}},
		{name: "object without items", body: `{"artworks":[]}`, wantErr: true},
		{name: "items not array", body: `{"items":{"id":"a"}}`, wantErr: true},
		{name: "scalar", body: `42`, wantErr: true},
		{name: "malformed", body: `[{"id":`, wantErr: true},
		{name: "non-object entries", body: `["a","b"]`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := Decode([]byte(tc.body))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"artworks":[]}`))
	assert.True(t, errors.Is(err, ErrUnexpectedShape))
}

func TestLoaderFor(t *testing.T) {
	assert.IsType(t, HTTPLoader{}, LoaderFor("https://cdn.example/art.json", nil, 0))

	path := filepath.Join(t.TempDir(), "art.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[{"id":"f1","sold":true}]}`), 0o600))
	loader := LoaderFor("file://"+path, nil, 0)
	require.IsType(t, FileLoader{}, loader)

	items, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Sold)
}
