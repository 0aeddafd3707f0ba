// Package domain holds the entity records shared by the store and the
// membership, catalog and circulation services.
package domain

import "time"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// User is a registered library member.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Book is a catalogued title. Available is owned by the loan workflow.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int    `json:"year"`
	Genre     string `json:"genre"`
	Available bool   `json:"available"`
}

// Loan records a book lent to a user.
type Loan struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	BookID     string     `json:"bookId"`
	LoanDate   time.Time  `json:"loanDate"`
	Status     LoanStatus `json:"status"`
	ReturnDate *time.Time `json:"returnDate"`
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.Status == LoanActive
}
