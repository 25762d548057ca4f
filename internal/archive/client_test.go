package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dandi-batch/internal/backoff"
	"dandi-batch/internal/common"
)

// fakeArchive sirve un dandiset con assets paginados.
func fakeArchive(t *testing.T, assets []common.Asset) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var pageCalls atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/dandisets/000939/{$}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"identifier":                    "000939",
			"most_recent_published_version": map[string]string{"version": "0.240327.2229", "name": "Head direction"},
			"draft_version":                 map[string]string{"version": "draft", "name": "Head direction"},
		})
	})
	mux.HandleFunc("GET /api/dandisets/000939/versions/0.240327.2229/info/{$}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "0.240327.2229", "name": "Head direction"})
	})
	mux.HandleFunc("GET /api/dandisets/000939/versions/{version}/assets/{$}", func(w http.ResponseWriter, r *http.Request) {
		pageCalls.Add(1)
		assert.Equal(t, "path", r.URL.Query().Get("order"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		start := (page - 1) * size
		end := min(start+size, len(assets))

		var next *string
		if end < len(assets) {
			n := fmt.Sprintf("http://%s%s?order=path&page_size=%d&page=%d", r.Host, r.URL.Path, size, page+1)
			next = &n
		}
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(assets),
			"next":    next,
			"results": assets[start:end],
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &pageCalls
}

func makeAssets(n int) []common.Asset {
	out := make([]common.Asset, n)
	for i := range out {
		out[i] = common.Asset{AssetID: fmt.Sprintf("a-%03d", i), Path: fmt.Sprintf("sub-%03d/sub-%03d.nwb", i, i), Size: int64(i)}
	}
	return out
}

func TestClient_GetDandiset(t *testing.T) {
	srv, _ := fakeArchive(t, nil)
	c := NewClient(srv.URL + "/api")

	t.Run("ultima version publicada", func(t *testing.T) {
		ds, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939"})
		require.NoError(t, err)
		assert.Equal(t, "0.240327.2229", ds.Version)
		assert.Equal(t, "Head direction", ds.Name)
	})

	t.Run("version explicita", func(t *testing.T) {
		ds, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939", Version: "0.240327.2229"})
		require.NoError(t, err)
		assert.Equal(t, "0.240327.2229", ds.Version)
	})

	t.Run("draft", func(t *testing.T) {
		ds, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939", Version: "draft"})
		require.NoError(t, err)
		assert.Equal(t, "draft", ds.Version)
	})

	t.Run("no existe", func(t *testing.T) {
		_, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "999999"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("version inexistente", func(t *testing.T) {
		_, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939", Version: "0.1.0"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClient_WalkAssets_FollowsPagination(t *testing.T) {
	assets := makeAssets(25)
	srv, calls := fakeArchive(t, assets)
	c := NewClient(srv.URL+"/api", WithPageSize(10))

	var got []common.Asset
	err := c.WalkAssets(context.Background(), common.Dandiset{Identifier: "000939", Version: "draft"}, func(a common.Asset) error {
		got = append(got, a)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, assets, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_WalkAssets_StopEarly(t *testing.T) {
	srv, calls := fakeArchive(t, makeAssets(25))
	c := NewClient(srv.URL+"/api", WithPageSize(10))

	got, err := c.ListAssets(context.Background(), common.Dandiset{Identifier: "000939"}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, int32(1), calls.Load(), "no deberia pedir mas paginas despues de ErrStop")
}

func TestClient_WalkAssets_CallbackError(t *testing.T) {
	srv, _ := fakeArchive(t, makeAssets(3))
	c := NewClient(srv.URL + "/api")

	boom := errors.New("boom")
	err := c.WalkAssets(context.Background(), common.Dandiset{Identifier: "000939"}, func(common.Asset) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporal", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"identifier": "000939"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetries(3, backoff.Constant(0)))
	ds, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939"})
	require.NoError(t, err)
	assert.Equal(t, "draft", ds.Version)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetries(3, backoff.Constant(0)))
	_, err := c.GetDandiset(context.Background(), common.Dandiset{Identifier: "000939"})

	var serr *common.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}
