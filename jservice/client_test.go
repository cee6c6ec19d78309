package jservice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/triviaboard/trivia"
)

const categoryBody = `{
  "id": 11496,
  "title": "acting families",
  "clues_count": 3,
  "clues": [
    {"id": 1, "answer": "the Barrymores", "question": "Lionel, Ethel & John", "value": 200, "category_id": 11496},
    {"id": 2, "answer": "the Baldwins", "question": "Alec, Billy, Daniel & Stephen", "value": null, "category_id": 11496},
    {"id": 3, "answer": "<i>the Fondas</i>", "question": "Henry, Jane & Peter", "value": 600, "category_id": 11496}
  ]
}`

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", append([]Option{WithRetryDelay(time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	return c
}

func TestListCategories(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/categories", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		assert.Equal(t, "triviaboard/test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"a","clues_count":5},{"id":2,"title":"b","clues_count":5},{"id":3,"title":"c","clues_count":5}]`))
	}), WithUserAgent("triviaboard/test"))

	cats, err := c.ListCategories(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []trivia.CategorySummary{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"}}, cats)
}

func TestCategory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/category", r.URL.Path)
		assert.Equal(t, "11496", r.URL.Query().Get("id"))

		_, _ = w.Write([]byte(categoryBody))
	}))

	cat, err := c.Category(context.Background(), 11496)
	require.NoError(t, err)
	assert.Equal(t, 11496, cat.ID)
	assert.Equal(t, "acting families", cat.Title)
	require.Len(t, cat.Clues, 3)
	assert.Equal(t, trivia.RawClue{ID: 3, Question: "Henry, Jane & Peter", Answer: "<i>the Fondas</i>"}, cat.Clues[2])
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(categoryBody))
	}), WithAttempts(3))

	cat, err := c.Category(context.Background(), 11496)
	require.NoError(t, err)
	assert.Len(t, cat.Clues, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithAttempts(2))

	_, err := c.ListCategories(context.Background(), 6)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}), WithAttempts(5))

	_, err := c.Category(context.Background(), 1)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.False(t, se.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoesNotRetryMalformedBody(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id": "not a number"`))
	}), WithAttempts(5))

	_, err := c.Category(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelledContext(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListCategories(ctx, 6)
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestNewRejectsBadURLs(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/api", "http://", "://nope"} {
		_, err := New(u)
		assert.Error(t, err, u)
	}
}

func TestBuildsBoardThroughClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":11496,"title":"acting families"}]`))
	})
	mux.HandleFunc("/api/category", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(categoryBody))
	})
	c := newTestClient(t, mux)

	board, err := trivia.NewBuilder(c).BuildBoard(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"acting families"}, board.Titles())
	assert.Equal(t, 3, board.Clues(0))

	_, err = trivia.NewBuilder(c).BuildBoard(context.Background(), 1, 4)
	assert.ErrorIs(t, err, trivia.ErrDataSource)
}

func TestClientOwnsHTTPClient(t *testing.T) {
	a, err := New(DefaultBaseURL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	b, err := New(DefaultBaseURL)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, a.httpClient.Timeout)
	assert.Equal(t, 10*time.Second, b.httpClient.Timeout)
	assert.NotSame(t, a.httpClient, b.httpClient)
}
