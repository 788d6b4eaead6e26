package search

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	e, err := New(Config{Addresses: []string{srv.URL}, Index: "books", FailureThreshold: 2, OpenTimeout: time.Minute})
	require.NoError(t, err)
	return e
}

func TestSearchBooks(t *testing.T) {
	var body map[string]any
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/books/_search"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[{"_id":"3"},{"_id":"1"}]}}`))
	})

	total, ids, err := e.SearchBooks(context.Background(), "go", 10, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, []uint{3, 1}, ids)

	mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
	require.Equal(t, "go", mm["query"])
	require.Equal(t, "AUTO", mm["fuzziness"])
	require.EqualValues(t, 10, body["from"])
}

func TestIndexBook(t *testing.T) {
	var path string
	var doc bookDoc
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &doc))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := e.IndexBook(context.Background(), &models.Book{ID: 42, Title: "Dune", Author: "Herbert", Price: decimal.RequireFromString("9.5")})
	require.NoError(t, err)
	require.Equal(t, "/books/_doc/42", path)
	require.Equal(t, "Dune", doc.Title)
	require.Equal(t, "9.50", doc.Price)
}

func TestRemoveMissingBookIsNotAnError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	})

	require.NoError(t, e.RemoveBook(context.Background(), 7))
	require.NoError(t, e.RemoveBook(context.Background(), 8))
	require.Equal(t, gobreaker.StateClosed, e.breaker.State())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	for range 2 {
		_, _, err := e.SearchBooks(context.Background(), "go", 0, 10)
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, e.breaker.State())

	_, _, err := e.SearchBooks(context.Background(), "go", 0, 10)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 2, calls.Load())
}

// bulkHandler answers a _bulk request, rejecting the documents whose ids are listed in reject.
func bulkHandler(t *testing.T, path *string, docs *[]bookDoc, reject ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*path = r.URL.Path
		var items []string
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var action map[string]struct {
				ID string `json:"_id"`
			}
			require.NoError(t, json.Unmarshal(sc.Bytes(), &action))
			id := action["index"].ID
			require.True(t, sc.Scan())
			var doc bookDoc
			require.NoError(t, json.Unmarshal(sc.Bytes(), &doc))
			*docs = append(*docs, doc)

			item := fmt.Sprintf(`{"index":{"_id":%q,"status":201,"result":"created"}}`, id)
			for _, bad := range reject {
				if bad == id {
					item = fmt.Sprintf(`{"index":{"_id":%q,"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad price"}}}`, id)
				}
			}
			items = append(items, item)
		}
		_, _ = fmt.Fprintf(w, `{"took":1,"errors":%t,"items":[%s]}`, len(reject) > 0, strings.Join(items, ","))
	}
}

func TestIndexBooksBulk(t *testing.T) {
	var path string
	var docs []bookDoc
	e := newTestEngine(t, bulkHandler(t, &path, &docs))

	books := []models.Book{
		{ID: 1, Title: "Dune", Author: "Herbert", Price: decimal.RequireFromString("9.5")},
		{ID: 2, Title: "Война и мир", Author: "Толстой", Price: decimal.RequireFromString("12")},
	}
	require.NoError(t, e.IndexBooks(context.Background(), books))
	require.Equal(t, "/books/_bulk", path)
	require.Len(t, docs, 2)
	require.Equal(t, "Dune", docs[0].Title)
	require.Equal(t, "12.00", docs[1].Price)
	require.EqualValues(t, 2, docs[1].ID)

	require.NoError(t, e.IndexBooks(context.Background(), nil))
}

func TestIndexBooksReportsRejectedItems(t *testing.T) {
	var path string
	var docs []bookDoc
	e := newTestEngine(t, bulkHandler(t, &path, &docs, "2"))

	books := []models.Book{
		{ID: 1, Title: "Dune", Author: "Herbert", Price: decimal.RequireFromString("9.5")},
		{ID: 2, Title: "Neuromancer", Author: "Gibson", Price: decimal.RequireFromString("8")},
	}
	err := e.IndexBooks(context.Background(), books)
	require.ErrorContains(t, err, "1 of 2 books failed")
	require.Len(t, docs, 2)
}

func TestIndexBooksSkipsWhileBreakerOpen(t *testing.T) {
	var bulkCalls atomic.Int32
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_bulk") {
			bulkCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})
	for range 2 {
		_, _, _ = e.SearchBooks(context.Background(), "go", 0, 10)
	}

	err := e.IndexBooks(context.Background(), []models.Book{{ID: 1, Title: "Dune"}})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Zero(t, bulkCalls.Load())
}
