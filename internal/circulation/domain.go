// internal/circulation/domain.go
package circulation

import "libradesk/internal/domain"

// Labels shown in place of a name or title whose record no longer exists.
const (
	UserNotFoundLabel = "user not found"
	BookNotFoundLabel = "book not found"
)

// LoanView is a loan with its borrower's name and the book's title resolved
// for display.
type LoanView struct {
	domain.Loan
	UserName  string `json:"userName"`
	BookTitle string `json:"bookTitle"`
}
