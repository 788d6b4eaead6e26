// Package search keeps an Elasticsearch index of the catalog for free-text book search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/elastic/go-elasticsearch/v9/esutil"
	"github.com/sony/gobreaker/v2"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
)

var errNotFound = errors.New("search: document not found")

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string

	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Engine struct {
	es      *elasticsearch.Client
	index   string
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type bookDoc struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	ISBN        string    `json:"isbn"`
	Price       string    `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "title":       {"type": "text"},
      "author":      {"type": "text"},
      "description": {"type": "text"},
      "isbn":        {"type": "keyword"},
      "price":       {"type": "scaled_float", "scaling_factor": 100},
      "created_at":  {"type": "date"}
    }
  }
}`

func New(cfg Config) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("search: new client: %w", err)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}
	index := cfg.Index
	if index == "" {
		index = "books"
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "elasticsearch",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
	})

	return &Engine{es: client, index: index, breaker: cb}, nil
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	_, err := e.do(func() (*esapi.Response, error) {
		return e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return err
	}

	_, err = e.do(func() (*esapi.Response, error) {
		return e.es.Indices.Create(e.index,
			e.es.Indices.Create.WithContext(ctx),
			e.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
		)
	})
	return err
}

func newBookDoc(b *models.Book) bookDoc {
	return bookDoc{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		ISBN:        b.ISBN,
		Price:       b.Price.StringFixed(2),
		CreatedAt:   b.CreatedAt,
	}
}

func (e *Engine) IndexBook(ctx context.Context, b *models.Book) error {
	body, err := json.Marshal(newBookDoc(b))
	if err != nil {
		return err
	}

	_, err = e.do(func() (*esapi.Response, error) {
		return e.es.Index(e.index, bytes.NewReader(body),
			e.es.Index.WithContext(ctx),
			e.es.Index.WithDocumentID(docID(b.ID)),
		)
	})
	return err
}

// IndexBooks loads books through the bulk API. Rejected items are logged; any rejection fails the call.
func (e *Engine) IndexBooks(ctx context.Context, books []models.Book) error {
	if len(books) == 0 {
		return nil
	}
	if e.breaker.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}

	log := logging.FromContext(ctx)
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        e.es,
		Index:         e.index,
		NumWorkers:    1,
		FlushBytes:    1 << 20,
		FlushInterval: time.Second,
		OnError: func(_ context.Context, err error) {
			log.Warn("search_bulk_failed", "error", err)
		},
	})
	if err != nil {
		return fmt.Errorf("search: bulk indexer: %w", err)
	}

	onFailure := func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		if err == nil {
			err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
		}
		log.Warn("search_bulk_item_failed", "book_id", item.DocumentID, "status", res.Status, "error", err)
	}

	for i := range books {
		body, err := json.Marshal(newBookDoc(&books[i]))
		if err != nil {
			_ = bi.Close(ctx)
			return err
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: docID(books[i].ID),
			Body:       bytes.NewReader(body),
			OnFailure:  onFailure,
		})
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("search: bulk add: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("search: bulk close: %w", err)
	}
	if st := bi.Stats(); st.NumFailed > 0 {
		return fmt.Errorf("search: %d of %d books failed to index", st.NumFailed, st.NumAdded)
	}
	return nil
}

func (e *Engine) RemoveBook(ctx context.Context, id uint) error {
	_, err := e.do(func() (*esapi.Response, error) {
		return e.es.Delete(e.index, docID(id), e.es.Delete.WithContext(ctx))
	})
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func (e *Engine) SearchBooks(ctx context.Context, q string, from, size int) (int64, []uint, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"title^2", "author", "description"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
		"from":    from,
		"size":    size,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return 0, nil, err
	}

	raw, err := e.do(func() (*esapi.Response, error) {
		return e.es.Search(
			e.es.Search.WithContext(ctx),
			e.es.Search.WithIndex(e.index),
			e.es.Search.WithBody(&buf),
			e.es.Search.WithTrackTotalHits(true),
		)
	})
	if err != nil {
		return 0, nil, err
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, nil, fmt.Errorf("search: decode response: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return r.Hits.Total.Value, ids, nil
}

// do runs one request through the breaker and returns the response body of a successful call.
func (e *Engine) do(call func() (*esapi.Response, error)) ([]byte, error) {
	return e.breaker.Execute(func() ([]byte, error) {
		res, err := call()
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		if res.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		if res.IsError() {
			return nil, fmt.Errorf("search: elasticsearch returned %s", res.Status())
		}
		return body, nil
	})
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
