package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/util"
)

// maxPrice is the largest value a numeric(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// BookIndex is the full-text search backend. Catalog writes keep it in sync on a best-effort basis.
type BookIndex interface {
	IndexBook(ctx context.Context, b *models.Book) error
	RemoveBook(ctx context.Context, id uint) error
	SearchBooks(ctx context.Context, q string, from, size int) (total int64, ids []uint, err error)
}

// bookBulkIndexer is implemented by backends that accept a whole batch in one request.
type bookBulkIndexer interface {
	IndexBooks(ctx context.Context, books []models.Book) error
}

const defaultReindexBatch = 500

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  BookIndex
	Events EventPublisher
}

type BookQuery struct {
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	PerPage  int
}

type BookPage struct {
	Items []models.Book
	Meta  util.Meta
}

type BookInput struct {
	Title           string
	Author          string
	Price           decimal.Decimal
	Description     string
	PublicationDate *time.Time
	ISBN            string
}

type BookPatch struct {
	Title           *string
	Author          *string
	Price           *decimal.Decimal
	Description     *string
	PublicationDate *time.Time
	ISBN            *string
}

func (s *CatalogService) ListBooks(ctx context.Context, q BookQuery) (*BookPage, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, fmt.Errorf("min_price is greater than max_price: %w", ErrValidation)
	}

	filter := repo.BookFilter{Search: q.Search, MinPrice: q.MinPrice, MaxPrice: q.MaxPrice}
	total, err := s.Repo.CountBooks(ctx, filter)
	if err != nil {
		return nil, err
	}

	_, size := util.Calculate(q.Page, q.PerPage)
	page := util.ClampPage(q.Page, size, total)
	offset, limit := util.Calculate(page, size)

	items, err := s.Repo.FindBooks(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	return &BookPage{Items: items, Meta: util.NewMeta(page, size, total)}, nil
}

func (s *CatalogService) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.Repo.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return book, nil
}

func (s *CatalogService) CreateBook(ctx context.Context, p Principal, in BookInput) (*models.Book, error) {
	if err := p.requireAdmin(); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		Price:           in.Price,
		Description:     in.Description,
		PublicationDate: in.PublicationDate,
		ISBN:            strings.TrimSpace(in.ISBN),
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}

	if err := s.Repo.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	s.reindex(ctx, book)
	publish(ctx, s.Events, TopicBooks, book.ID, map[string]any{
		"type":    "book.created",
		"book_id": book.ID,
		"by":      p.UserID,
		"price":   book.Price.StringFixed(2),
	})
	return book, nil
}

func (s *CatalogService) UpdateBook(ctx context.Context, p Principal, id uint, patch BookPatch) (*models.Book, error) {
	if err := p.requireAdmin(); err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		book.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Author != nil {
		book.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.Price != nil {
		book.Price = *patch.Price
	}
	if patch.Description != nil {
		book.Description = *patch.Description
	}
	if patch.PublicationDate != nil {
		book.PublicationDate = patch.PublicationDate
	}
	if patch.ISBN != nil {
		book.ISBN = strings.TrimSpace(*patch.ISBN)
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}

	if err := s.Repo.SaveBook(ctx, book); err != nil {
		return nil, err
	}

	s.reindex(ctx, book)
	publish(ctx, s.Events, TopicBooks, book.ID, map[string]any{
		"type":    "book.updated",
		"book_id": book.ID,
		"by":      p.UserID,
		"price":   book.Price.StringFixed(2),
	})
	return book, nil
}

func (s *CatalogService) DeleteBook(ctx context.Context, p Principal, id uint) error {
	if err := p.requireAdmin(); err != nil {
		return err
	}

	if err := s.Repo.DeleteBook(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("book %d: %w", id, ErrNotFound)
		case errors.Is(err, repo.ErrBookInUse), errors.Is(err, gorm.ErrForeignKeyViolated):
			return fmt.Errorf("book %d is part of existing orders: %w", id, ErrConflict)
		default:
			return err
		}
	}

	if s.Index != nil {
		if err := s.Index.RemoveBook(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_remove_failed", "book_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, TopicBooks, id, map[string]any{
		"type":    "book.deleted",
		"book_id": id,
		"by":      p.UserID,
	})
	return nil
}

// SearchBooks asks the search backend first and falls back to the catalog query when it is missing or failing.
func (s *CatalogService) SearchBooks(ctx context.Context, q string, page, perPage int) (*BookPage, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("query is required: %w", ErrValidation)
	}

	if s.Index != nil {
		if page < 1 {
			page = 1
		}
		from, size := util.Calculate(page, perPage)
		total, ids, err := s.Index.SearchBooks(ctx, q, from, size)
		if err == nil {
			if last := util.ClampPage(page, size, total); last != page {
				page = last
				from, _ = util.Calculate(page, size)
				total, ids, err = s.Index.SearchBooks(ctx, q, from, size)
			}
		}
		if err == nil {
			items, err := s.Repo.GetBooksByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			// Hits for books deleted since they were indexed are dropped from the page and the total.
			total -= int64(len(ids) - len(items))
			if total < int64(from+len(items)) {
				total = int64(from + len(items))
			}
			return &BookPage{Items: items, Meta: util.NewMeta(page, size, total)}, nil
		}
		logging.FromContext(ctx).Warn("search_backend_failed", "error", err)
	}

	return s.ListBooks(ctx, BookQuery{Search: q, Page: page, PerPage: perPage})
}

// Reindex pushes the whole catalog to the search backend, batchSize books at a time.
// A rejected batch is logged and skipped; the returned count covers the batches that went through.
func (s *CatalogService) Reindex(ctx context.Context, batchSize int) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultReindexBatch
	}

	log := logging.FromContext(ctx)
	indexed := 0
	err := s.Repo.EachBookBatch(ctx, batchSize, func(books []models.Book) error {
		if err := s.indexBatch(ctx, books); err != nil {
			log.Warn("search_reindex_batch_failed", "first_book_id", books[0].ID, "size", len(books), "error", err)
			return nil
		}
		indexed += len(books)
		return nil
	})
	return indexed, err
}

func (s *CatalogService) indexBatch(ctx context.Context, books []models.Book) error {
	if bulk, ok := s.Index.(bookBulkIndexer); ok {
		return bulk.IndexBooks(ctx, books)
	}
	var errs []error
	for i := range books {
		if err := s.Index.IndexBook(ctx, &books[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *CatalogService) reindex(ctx context.Context, b *models.Book) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexBook(ctx, b); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "book_id", b.ID, "error", err)
	}
}

func validateBook(b *models.Book) error {
	switch {
	case b.Title == "":
		return fmt.Errorf("title is required: %w", ErrValidation)
	case len(b.Title) > 200:
		return fmt.Errorf("title is longer than 200 characters: %w", ErrValidation)
	case b.Author == "":
		return fmt.Errorf("author is required: %w", ErrValidation)
	case len(b.Author) > 100:
		return fmt.Errorf("author is longer than 100 characters: %w", ErrValidation)
	case len(b.ISBN) > 20:
		return fmt.Errorf("isbn is longer than 20 characters: %w", ErrValidation)
	case b.Price.IsNegative():
		return fmt.Errorf("price cannot be negative: %w", ErrValidation)
	case !b.Price.Equal(b.Price.Round(2)):
		return fmt.Errorf("price has more than two decimal places: %w", ErrValidation)
	case b.Price.GreaterThan(maxPrice):
		return fmt.Errorf("price exceeds %s: %w", maxPrice, ErrValidation)
	}
	return nil
}
