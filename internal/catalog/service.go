// internal/catalog/service.go
package catalog

import (
	"context"

	"libradesk/internal/domain"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, fields BookFields) (*domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
	ListAvailableBooks(ctx context.Context) ([]domain.Book, error)
	UpdateBook(ctx context.Context, id string, fields BookFields) (*domain.Book, error)
	RemoveBook(ctx context.Context, id string) error
}
