// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"libradesk/internal/domain"
	"libradesk/internal/store"
)

// service implements the Service interface.
type service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(st *store.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:  st,
		logger: logger.With("component", "catalog"),
	}
}

// AddBook creates a new, available book in the catalog.
func (s *service) AddBook(ctx context.Context, fields BookFields) (*domain.Book, error) {
	if err := fields.validateNew(); err != nil {
		return nil, err
	}

	var book domain.Book
	err := s.store.Update(ctx, "add_book", func(tx *store.Tx) error {
		b, err := fields.apply(domain.Book{ID: tx.NewBookID(), Available: true})
		if err != nil {
			return err
		}
		tx.InsertBook(b)
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book added", "book_id", book.ID, "title", book.Title)
	return &book, nil
}

// GetBook retrieves a book from the catalog by its ID.
func (s *service) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book, ok := s.store.Snapshot().Book(id)
	if !ok {
		return nil, fmt.Errorf("%w: book with ID %s", domain.ErrNotFound, id)
	}
	return &book, nil
}

// ListBooks returns the catalog in insertion order.
func (s *service) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.store.Snapshot().Books, nil
}

// ListAvailableBooks returns the books that can be lent right now.
func (s *service) ListAvailableBooks(ctx context.Context) ([]domain.Book, error) {
	return s.store.Snapshot().AvailableBooks(), nil
}

// UpdateBook merges the supplied fields into an existing book.
func (s *service) UpdateBook(ctx context.Context, id string, fields BookFields) (*domain.Book, error) {
	var book domain.Book
	err := s.store.Update(ctx, "update_book", func(tx *store.Tx) error {
		current, ok := tx.View().Book(id)
		if !ok {
			return fmt.Errorf("%w: book with ID %s", domain.ErrNotFound, id)
		}
		b, err := fields.apply(current)
		if err != nil {
			return err
		}
		book = b
		return tx.ReplaceBook(b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book updated", "book_id", id)
	return &book, nil
}

// RemoveBook deletes a book that is not currently lent.
func (s *service) RemoveBook(ctx context.Context, id string) error {
	err := s.store.Update(ctx, "remove_book", func(tx *store.Tx) error {
		book, ok := tx.View().Book(id)
		if !ok {
			return fmt.Errorf("%w: book with ID %s", domain.ErrNotFound, id)
		}
		if !book.Available {
			return fmt.Errorf("%w: book %s is on loan", domain.ErrConflict, id)
		}
		return tx.DeleteBook(id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "book removed", "book_id", id)
	return nil
}
