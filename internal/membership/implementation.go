// internal/membership/implementation.go
package membership

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

// NewService creates a new membership service instance.
func NewService(st *store.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:  st,
		logger: logger.With("component", "membership"),
	}
}

// RegisterUser creates a new user.
func (s *service) RegisterUser(ctx context.Context, fields UserFields) (*domain.User, error) {
	if err := fields.validateNew(); err != nil {
		return nil, err
	}

	var user domain.User
	err := s.store.Update(ctx, "register_user", func(tx *store.Tx) error {
		u, err := fields.apply(domain.User{ID: tx.NewUserID()})
		if err != nil {
			return err
		}
		tx.InsertUser(u)
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &user, nil
}

// GetUser retrieves a user by their ID.
func (s *service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, ok := s.store.Snapshot().User(id)
	if !ok {
		return nil, fmt.Errorf("%w: user with ID %s", domain.ErrNotFound, id)
	}
	return &user, nil
}

// ListUsers returns all users in registration order.
func (s *service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Snapshot().Users, nil
}

// UpdateUser merges the supplied fields into an existing user.
func (s *service) UpdateUser(ctx context.Context, id string, fields UserFields) (*domain.User, error) {
	var user domain.User
	err := s.store.Update(ctx, "update_user", func(tx *store.Tx) error {
		current, ok := tx.View().User(id)
		if !ok {
			return fmt.Errorf("%w: user with ID %s", domain.ErrNotFound, id)
		}
		u, err := fields.apply(current)
		if err != nil {
			return err
		}
		user = u
		return tx.ReplaceUser(u)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated", "user_id", id)
	return &user, nil
}

// DeleteUser removes a user that holds no active loan.
func (s *service) DeleteUser(ctx context.Context, id string) error {
	err := s.store.Update(ctx, "delete_user", func(tx *store.Tx) error {
		view := tx.View()
		if _, ok := view.User(id); !ok {
			return fmt.Errorf("%w: user with ID %s", domain.ErrNotFound, id)
		}
		if view.HasActiveLoanForUser(id) {
			return fmt.Errorf("%w: user %s has active loans", domain.ErrConflict, id)
		}
		return tx.DeleteUser(id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}
