// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"libradesk/internal/domain"
	"libradesk/internal/store"
)

// service implements the Service interface.
type service struct {
	store    *store.Store
	logger   *slog.Logger
	created  metric.Int64Counter
	returned metric.Int64Counter
}

// NewService creates a new circulation service instance. A nil meter uses
// the global meter provider.
func NewService(st *store.Store, logger *slog.Logger, meter metric.Meter) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if meter == nil {
		meter = otel.Meter("libradesk/circulation")
	}

	created, err := meter.Int64Counter("libradesk.loans.created",
		metric.WithDescription("Loans created"))
	if err != nil {
		return nil, fmt.Errorf("failed to create loans.created counter: %w", err)
	}
	returned, err := meter.Int64Counter("libradesk.loans.returned",
		metric.WithDescription("Loans returned"))
	if err != nil {
		return nil, fmt.Errorf("failed to create loans.returned counter: %w", err)
	}

	return &service{
		store:    st,
		logger:   logger.With("component", "circulation"),
		created:  created,
		returned: returned,
	}, nil
}

// CreateLoan lends a book to a user. The new loan and the book's changed
// availability are committed together.
func (s *service) CreateLoan(ctx context.Context, userID, bookID string) (*domain.Loan, error) {
	userID, bookID = strings.TrimSpace(userID), strings.TrimSpace(bookID)
	if userID == "" || bookID == "" {
		return nil, fmt.Errorf("%w: a user and a book must be selected", domain.ErrValidation)
	}

	var loan domain.Loan
	err := s.store.Update(ctx, "create_loan", func(tx *store.Tx) error {
		view := tx.View()
		if _, ok := view.User(userID); !ok {
			return fmt.Errorf("%w: user with ID %s", domain.ErrNotFound, userID)
		}
		book, ok := view.Book(bookID)
		if !ok {
			return fmt.Errorf("%w: book with ID %s", domain.ErrNotFound, bookID)
		}
		if !book.Available {
			return fmt.Errorf("%w: book %s is not available", domain.ErrConflict, bookID)
		}

		loan = domain.Loan{
			ID:       tx.NewLoanID(),
			UserID:   userID,
			BookID:   bookID,
			LoanDate: tx.Now(),
			Status:   domain.LoanActive,
		}
		book.Available = false
		if err := tx.ReplaceBook(book); err != nil {
			return err
		}
		tx.InsertLoan(loan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1)
	s.logger.InfoContext(ctx, "loan created", "loan_id", loan.ID, "user_id", userID, "book_id", bookID)
	return &loan, nil
}

// ReturnLoan closes an active loan and makes its book available again. A
// loan whose book has since been removed is still returned.
func (s *service) ReturnLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	var (
		loan        domain.Loan
		bookMissing bool
	)
	err := s.store.Update(ctx, "return_loan", func(tx *store.Tx) error {
		view := tx.View()
		l, ok := view.Loan(loanID)
		if !ok {
			return fmt.Errorf("%w: loan with ID %s", domain.ErrNotFound, loanID)
		}
		if !l.IsActive() {
			return fmt.Errorf("%w: loan %s was already returned", domain.ErrConflict, loanID)
		}

		now := tx.Now()
		l.Status = domain.LoanReturned
		l.ReturnDate = &now
		if err := tx.ReplaceLoan(l); err != nil {
			return err
		}

		if book, ok := view.Book(l.BookID); ok {
			book.Available = true
			if err := tx.ReplaceBook(book); err != nil {
				return err
			}
		} else {
			bookMissing = true
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bookMissing {
		s.logger.WarnContext(ctx, "returned loan references a missing book", "loan_id", loan.ID, "book_id", loan.BookID)
	}
	s.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "loan returned", "loan_id", loan.ID, "book_id", loan.BookID)
	return &loan, nil
}

// ListLoans returns every loan in insertion order with display names.
func (s *service) ListLoans(ctx context.Context) ([]LoanView, error) {
	snap := s.store.Snapshot()
	views := make([]LoanView, 0, len(snap.Loans))
	for _, l := range snap.Loans {
		v := LoanView{Loan: l, UserName: UserNotFoundLabel, BookTitle: BookNotFoundLabel}
		if u, ok := snap.User(l.UserID); ok {
			v.UserName = u.Name
		}
		if b, ok := snap.Book(l.BookID); ok {
			v.BookTitle = b.Title
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Snapshot().Stats(), nil
}
