package store

import "libradesk/internal/domain"

// Snapshot is a consistent view of the three collections, in insertion order.
type Snapshot struct {
	Users []domain.User
	Books []domain.Book
	Loans []domain.Loan
}

// Stats summarizes the collections for the dashboard.
type Stats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalBooks     int `json:"totalBooks"`
	AvailableBooks int `json:"availableBooks"`
	ActiveLoans    int `json:"activeLoans"`
}

// User looks a user up by id.
func (s Snapshot) User(id string) (domain.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

// Book looks a book up by id.
func (s Snapshot) Book(id string) (domain.Book, bool) {
	for _, b := range s.Books {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Book{}, false
}

// Loan looks a loan up by id.
func (s Snapshot) Loan(id string) (domain.Loan, bool) {
	for _, l := range s.Loans {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Loan{}, false
}

// HasActiveLoanForUser reports whether userID holds an unreturned loan.
func (s Snapshot) HasActiveLoanForUser(userID string) bool {
	for _, l := range s.Loans {
		if l.UserID == userID && l.IsActive() {
			return true
		}
	}
	return false
}

// ActiveLoansForBook counts unreturned loans of bookID.
func (s Snapshot) ActiveLoansForBook(bookID string) int {
	n := 0
	for _, l := range s.Loans {
		if l.BookID == bookID && l.IsActive() {
			n++
		}
	}
	return n
}

// AvailableBooks returns the books that can be lent right now.
func (s Snapshot) AvailableBooks() []domain.Book {
	out := make([]domain.Book, 0, len(s.Books))
	for _, b := range s.Books {
		if b.Available {
			out = append(out, b)
		}
	}
	return out
}

// Stats counts users, books, available books and active loans.
func (s Snapshot) Stats() Stats {
	st := Stats{
		TotalUsers: len(s.Users),
		TotalBooks: len(s.Books),
	}
	for _, b := range s.Books {
		if b.Available {
			st.AvailableBooks++
		}
	}
	for _, l := range s.Loans {
		if l.IsActive() {
			st.ActiveLoans++
		}
	}
	return st
}

// Violations lists the books whose availability disagrees with their loans:
// a book must be unavailable exactly when one active loan references it.
func (s Snapshot) Violations() []string {
	var out []string
	for _, b := range s.Books {
		active := s.ActiveLoansForBook(b.ID)
		switch {
		case active > 1:
			out = append(out, b.ID+": more than one active loan")
		case active == 1 && b.Available:
			out = append(out, b.ID+": available while lent")
		case active == 0 && !b.Available:
			out = append(out, b.ID+": unavailable without an active loan")
		}
	}
	return out
}
