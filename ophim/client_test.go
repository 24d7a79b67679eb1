package ophim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBody = `{
  "status": true,
  "items": [
    {"_id": "a1", "name": "Phim Một", "slug": "phim-mot", "origin_name": "Movie One", "year": 2023, "modified": {"time": "2024-01-02T03:04:05.000Z"}},
    {"_id": "a2", "name": "Phim Hai", "slug": "phim-hai", "origin_name": "Movie Two", "year": "2021"}
  ],
  "pathImage": "https://img.ophim.live/uploads/movies/",
  "pagination": {"totalItems": 48, "totalItemsPerPage": 24, "currentPage": 1, "totalPages": 2}
}`

const detailBody = `{
  "status": true,
  "msg": "",
  "movie": {
    "_id": "a1",
    "name": "Phim Một",
    "slug": "phim-mot",
    "origin_name": "Movie One",
    "content": "<p>Chuyện phim</p>",
    "type": "series",
    "status": "completed",
    "year": 2023,
    "view": "1520",
    "actor": ["An", "Bình"],
    "director": ["Chi"],
    "category": [{"id": "c1", "name": "Hành Động", "slug": "hanh-dong"}],
    "country": [{"id": "k1", "name": "Hàn Quốc", "slug": "han-quoc"}]
  },
  "episodes": [
    {"server_name": "Vietsub #1", "server_data": [
      {"name": "1", "slug": "tap-1", "filename": "ep1", "link_embed": "https://e/1", "link_m3u8": "https://h/1.m3u8"},
      {"name": "2", "slug": "tap-2", "filename": "ep2", "link_embed": "https://e/2", "link_m3u8": ""}
    ]},
    {"server_name": "Thuyết Minh", "server_data": [
      {"name": "1", "slug": "tap-1", "filename": "ep1", "link_embed": "", "link_m3u8": "https://h/tm1.m3u8"}
    ]}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestFetchMovieList(t *testing.T) {
	var gotPath, gotPage, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listBody))
	})

	page, err := c.FetchMovieList(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "/danh-sach/phim-moi-cap-nhat", gotPath)
	assert.Equal(t, "1", gotPage)
	assert.Equal(t, DefaultUserAgent, gotUA)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 48, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "phim-mot", page.Items[0].Slug)
	assert.Equal(t, int64(2021), page.Items[1].Year.Value)
}

func TestFetchMovieList_RejectsPageZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.FetchMovieList(context.Background(), 0)
	assert.Error(t, err)
}

func TestFetchMovieDetail(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(detailBody))
	})

	d, err := c.FetchMovieDetail(context.Background(), "phim-mot")
	require.NoError(t, err)

	assert.Equal(t, "/phim/phim-mot", gotPath)
	assert.Equal(t, "Phim Một", d.Movie.Name)
	assert.Equal(t, int64(1520), d.Movie.View.Value)
	assert.True(t, d.Movie.View.Valid)
	assert.Equal(t, 3, d.EpisodeCount())
	assert.Equal(t, "Thuyết Minh", d.Episodes[1].ServerName)
}

func TestFetchMovieDetail_StatusFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": false, "msg": "Movie not found"}`))
	})

	_, err := c.FetchMovieDetail(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Movie not found", apiErr.Msg)
}

func TestFetch_HTTPStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.FetchMovieList(context.Background(), 3)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.URL, "page=3")
}

func TestFetch_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := c.FetchMovieDetail(context.Background(), "phim-mot")

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.URL, "/phim/phim-mot")
}

func TestFetch_RepeatedCallsDoNotShareCallbacks(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(listBody))
	})

	for i := 0; i < 3; i++ {
		page, err := c.FetchMovieList(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchMovieList(ctx, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestFlexInt(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  int64
	}{
		{`2023`, true, 2023},
		{`"2023"`, true, 2023},
		{`" 42 "`, true, 42},
		{`12.0`, true, 12},
		{`""`, false, 0},
		{`"N/A"`, false, 0},
		{`null`, false, 0},
		{`{"x":1}`, false, 0},
	}

	for _, tc := range cases {
		var f FlexInt
		require.NoError(t, json.Unmarshal([]byte(tc.in), &f), tc.in)
		assert.Equal(t, tc.valid, f.Valid, tc.in)
		assert.Equal(t, tc.want, f.Value, tc.in)
	}
}

func TestFlexInt_InsideRecord(t *testing.T) {
	var info MovieInfo
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","year":"unknown","view":7}`), &info))

	assert.Nil(t, info.Year.Int())
	require.NotNil(t, info.View.Int64())
	assert.Equal(t, int64(7), *info.View.Int64())
}
