// internal/circulation/service.go
package circulation

import (
	"context"

	"libradesk/internal/domain"
	"libradesk/internal/store"
)

// Service defines the interface for the circulation service.
type Service interface {
	CreateLoan(ctx context.Context, userID, bookID string) (*domain.Loan, error)
	ReturnLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]LoanView, error)
	Stats(ctx context.Context) (store.Stats, error)
}
