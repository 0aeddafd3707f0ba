// internal/membership/service.go
package membership

import (
	"context"

	"libradesk/internal/domain"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterUser(ctx context.Context, fields UserFields) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id string, fields UserFields) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}
